package report

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yairfalse/nodefacts/pkg/attrs"
)

// Inspect returns the display form of v: strings quoted and escaped,
// sequences as [a, b], mappings as {"k"=>v}, nil as nil.
func Inspect(v any) string {
	var b strings.Builder
	inspect(&b, v)
	return b.String()
}

func inspect(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("nil")
	case string:
		quote(b, x)
	case attrs.Map:
		b.WriteByte('{')
		for i, p := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			quote(b, p.Key)
			b.WriteString("=>")
			inspect(b, p.Value)
		}
		b.WriteByte('}')
	case map[string]any:
		inspect(b, attrs.FromMap(x))
	case []any:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			inspect(b, e)
		}
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			quote(b, e)
		}
		b.WriteByte(']')
	default:
		if s, ok := attrs.Text(v); ok {
			b.WriteString(s)
			return
		}
		if m, ok := attrs.Mapping(v); ok {
			inspect(b, m)
			return
		}
		if elems, ok := attrs.Sequence(v); ok {
			inspect(b, elems)
			return
		}
		fmt.Fprintf(b, "%v", v)
	}
}

// quote writes s double-quoted in the escape form report consumers already
// match on: \e for ESC, \# before interpolation markers, \uXXXX for other
// unprintable runes and \xXX for invalid bytes.
func quote(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(b, `\x%02X`, s[i])
			i++
			continue
		}
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case '\v':
			b.WriteString(`\v`)
		case '\b':
			b.WriteString(`\b`)
		case '\a':
			b.WriteString(`\a`)
		case 0x1b:
			b.WriteString(`\e`)
		case '#':
			if next := s[i+size:]; next != "" && strings.ContainsRune("{$@", rune(next[0])) {
				b.WriteByte('\\')
			}
			b.WriteByte('#')
		default:
			switch {
			case strconv.IsPrint(r):
				b.WriteRune(r)
			case r < 0x10000:
				fmt.Fprintf(b, `\u%04X`, r)
			default:
				fmt.Fprintf(b, `\u{%X}`, r)
			}
		}
		i += size
	}
	b.WriteByte('"')
}

// IsBlank reports whether a resource field is left out of the resource
// report: nil, false, and empty strings, sequences or mappings.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return !x
	case string:
		return x == ""
	case attrs.Map:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	default:
		if m, ok := attrs.Mapping(v); ok {
			return len(m) == 0
		}
		if elems, ok := attrs.Sequence(v); ok {
			return len(elems) == 0
		}
		return false
	}
}

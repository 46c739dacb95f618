package attrs

import (
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Decode parses a YAML or JSON document whose root is a mapping.
// An empty document yields an empty Map.
func Decode(data []byte) (Map, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse attributes: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Map{}, nil
	}
	return FromNode(&doc)
}

// FromNode converts a decoded YAML node into a tree whose root must be a
// mapping. Null roots yield an empty Map.
func FromNode(node *yaml.Node) (Map, error) {
	v, err := convertNode(node)
	if err != nil {
		return nil, err
	}
	switch root := v.(type) {
	case nil:
		return Map{}, nil
	case Map:
		return root, nil
	default:
		return nil, fmt.Errorf("attribute root must be a mapping, got %T", v)
	}
}

// ValueFromNode converts any YAML node into a tree value.
func ValueFromNode(node *yaml.Node) (any, error) {
	return convertNode(node)
}

func convertNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return convertNode(node.Content[0])
	case yaml.AliasNode:
		return convertNode(node.Alias)
	case yaml.MappingNode:
		return convertMapping(node)
	case yaml.SequenceNode:
		seq := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := convertNode(child)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return seq, nil
	case yaml.ScalarNode:
		return convertScalar(node)
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %v", node.Line, node.Kind)
	}
}

func convertMapping(node *yaml.Node) (Map, error) {
	m := make(Map, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		if keyNode.Kind == yaml.AliasNode {
			keyNode = keyNode.Alias
		}
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
		}
		v, err := convertNode(node.Content[i+1])
		if err != nil {
			return nil, err
		}
		m = m.Set(keyNode.Value, v)
	}
	return m, nil
}

func convertScalar(node *yaml.Node) (any, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: decode bool: %w", node.Line, err)
		}
		return b, nil
	case "!!int":
		var n int64
		if err := node.Decode(&n); err == nil {
			return n, nil
		}
		var u uint64
		if err := node.Decode(&u); err == nil {
			return u, nil
		}
		// Out of range for both; keep the literal.
		return node.Value, nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: decode float: %w", node.Line, err)
		}
		return f, nil
	default:
		return node.Value, nil
	}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

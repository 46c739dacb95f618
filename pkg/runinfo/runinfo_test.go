package runinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRun_ElapsedTime(t *testing.T) {
	start := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		run  Run
		want time.Duration
	}{
		{"explicit", Run{StartTime: start, EndTime: start.Add(time.Minute), Elapsed: 5 * time.Second}, 5 * time.Second},
		{"explicit zero", Run{StartTime: start, EndTime: start.Add(time.Minute), ElapsedSet: true}, 0},
		{"derived", Run{StartTime: start, EndTime: start.Add(90 * time.Second)}, 90 * time.Second},
		{"missing end", Run{StartTime: start}, 0},
		{"empty", Run{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.run.ElapsedTime())
		})
	}
}

func TestCountUpdated(t *testing.T) {
	resources := []Resource{
		{Type: "package", Name: "nginx", Updated: true},
		{Type: "service", Name: "nginx"},
		{Type: "template", Name: "/etc/nginx/nginx.conf", Updated: true},
	}

	assert.Equal(t, 2, CountUpdated(resources))
	assert.Equal(t, 0, CountUpdated(nil))
}

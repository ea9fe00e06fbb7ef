package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		parts []string
		want  string
	}{
		{"base only", "http://localhost:8080", nil, "http://localhost:8080"},
		{"simple", "http://localhost:8080", []string{"preview", "abc"}, "http://localhost:8080/preview/abc"},
		{"trailing slash on base", "http://localhost:8080/", []string{"/assets/main.js"}, "http://localhost:8080/assets/main.js"},
		{"many slashes", "http://localhost:8080///", []string{"//a//b"}, "http://localhost:8080/a/b"},
		{"relative", "/assets/", []string{"main.js"}, "/assets/main.js"},
		{"keeps other schemes", "file:///tmp", []string{"x"}, "file://tmp/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Join(tt.base, tt.parts...))
		})
	}
}

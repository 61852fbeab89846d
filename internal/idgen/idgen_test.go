package idgen

import (
	"regexp"
	"strings"
	"testing"
)

func TestNew_Shape(t *testing.T) {
	for _, tc := range []struct {
		name   string
		gen    func() (string, error)
		prefix string
	}{
		{"Profile", Profile, ProfilePrefix},
		{"Node", Node, NodePrefix},
		{"Edge", Edge, EdgePrefix},
	} {
		t.Run(tc.name, func(t *testing.T) {
			id, err := tc.gen()
			if err != nil {
				t.Fatalf("%s() error: %v", tc.name, err)
			}
			if !strings.HasPrefix(id, tc.prefix) {
				t.Errorf("%s() = %q, want prefix %q", tc.name, id, tc.prefix)
			}
			if got, want := len(id), len(tc.prefix)+Length; got != want {
				t.Errorf("%s() length = %d, want %d", tc.name, got, want)
			}
		})
	}
}

func TestNew_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^x[a-zA-Z0-9]{10}$`)
	for i := 0; i < 100; i++ {
		id, err := New("x")
		if err != nil {
			t.Fatalf("New() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("New() = %q, outside the alphabet", id)
		}
	}
}

func TestNew_Unique(t *testing.T) {
	const count = 5000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := Node()
		if err != nil {
			t.Fatalf("Node() error: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d generations", id, i)
		}
		seen[id] = struct{}{}
	}
}

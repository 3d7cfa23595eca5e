package id_test

import (
	"testing"

	"github.com/xraph/taskq/id"
)

func TestGenerated(t *testing.T) {
	tests := []struct {
		name   string
		gen    func() string
		prefix string
	}{
		{"job", id.Job, id.PrefixJob},
		{"process", id.Process, id.PrefixProcess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.gen()
			if !id.HasPrefix(got, tt.prefix) {
				t.Errorf("%q is not a %s id", got, tt.prefix)
			}
		})
	}
}

func TestHasPrefix_Rejects(t *testing.T) {
	tests := []string{
		"",
		"job_not-a-suffix",
		id.Process(),
		"42",
	}
	for _, s := range tests {
		if id.HasPrefix(s, id.PrefixJob) {
			t.Errorf("HasPrefix(%q, job) = true, want false", s)
		}
	}
}

func TestJob_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 1000 {
		s := id.Job()
		if seen[s] {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = true
	}
}

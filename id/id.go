// Package id generates identifiers for jobs posted to backends without
// native ids (memory, Redis) and for worker processes spawned by the runner.
//
// Identifiers are TypeIDs: "job_01h2xcejqtf2nbrexx3vqjhp41". The suffix is
// UUIDv7-based, so ids generated by one process sort by creation time.
package id

import (
	"strings"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixJob     = "job"
	PrefixProcess = "proc"
)

// New returns a fresh identifier with the given prefix. It panics on a
// prefix typeid rejects; the prefixes above are valid.
func New(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic("id: " + err.Error())
	}
	return tid.String()
}

// Job returns a job identifier.
func Job() string { return New(PrefixJob) }

// Process returns a worker process tag.
func Process() string { return New(PrefixProcess) }

// HasPrefix reports whether s is a well-formed identifier carrying prefix.
func HasPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix+"_") {
		return false
	}
	_, err := typeid.Parse(s)
	return err == nil
}

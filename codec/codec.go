// Package codec converts jobs to the transport-neutral record handed to
// backends and back. Two codecs ship: JSON (the default, human-readable in
// a database row or Redis list) and msgpack (compact binary).
package codec

import (
	"fmt"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
)

// Envelope is the record a backend stores for one job. Regular jobs set
// Route; callable jobs set Task to the task descriptor bytes.
type Envelope struct {
	Kind  job.Kind `json:"type" msgpack:"type"`
	Route string   `json:"route,omitempty" msgpack:"route,omitempty"`
	Task  []byte   `json:"task,omitempty" msgpack:"task,omitempty"`
	Data  job.Data `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Codec serializes envelopes.
type Codec interface {
	// Encode serializes an envelope to bytes.
	Encode(e *Envelope) ([]byte, error)

	// Decode deserializes bytes into an envelope. Errors wrap
	// taskq.ErrMalformedPayload.
	Decode(data []byte) (*Envelope, error)

	// Name returns the codec identifier.
	Name() string
}

// Codec names used in configuration.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
)

// Get returns a codec by name. The empty name selects JSON.
func Get(name string) (Codec, error) {
	switch name {
	case NameJSON, "":
		return JSON{}, nil
	case NameMsgpack:
		return Msgpack{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", taskq.ErrUnknownCodec, name)
	}
}

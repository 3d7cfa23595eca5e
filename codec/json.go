package codec

import (
	"encoding/json"
	"fmt"

	"github.com/xraph/taskq"
)

// JSON encodes envelopes as JSON objects: {"type":0,"route":"...","data":{...}}.
// Task descriptors appear base64-encoded under "task".
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Encode(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func (JSON) Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: json: %v", taskq.ErrMalformedPayload, err)
	}
	return &e, nil
}

func (JSON) Name() string { return NameJSON }

package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/taskq"
)

// Msgpack encodes envelopes as MessagePack. Integers in Data decode as
// int64 or uint64 and floats as float64.
type Msgpack struct{}

var _ Codec = Msgpack{}

func (Msgpack) Encode(e *Envelope) ([]byte, error) {
	return msgpack.Marshal(e)
}

func (Msgpack) Decode(data []byte) (*Envelope, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var e Envelope
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: msgpack: %v", taskq.ErrMalformedPayload, err)
	}
	return &e, nil
}

func (Msgpack) Name() string { return NameMsgpack }

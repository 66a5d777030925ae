package packet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoPayload is returned by Decode for a message that carries none.
var ErrNoPayload = errors.New("message has no payload")

// Reader is one decoded inbound envelope. The payload stays raw until a
// handler decodes it into its own type.
type Reader struct {
	enc     Encoding
	typ     string
	json    json.RawMessage
	msgpack msgpack.RawMessage
}

type jsonEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type msgpackEnvelope struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// NewReader parses the envelope of one inbound frame.
func NewReader(enc Encoding, data []byte) (*Reader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty message")
	}
	r := &Reader{enc: enc}
	switch enc {
	case EncodingJSON:
		var env jsonEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode json envelope: %w", err)
		}
		r.typ, r.json = env.Type, env.Payload
	case EncodingMsgpack:
		var env msgpackEnvelope
		if err := msgpack.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decode msgpack envelope: %w", err)
		}
		r.typ, r.msgpack = env.Type, env.Payload
	default:
		return nil, fmt.Errorf("unknown encoding %d", enc)
	}
	if r.typ == "" {
		return nil, fmt.Errorf("message without type")
	}
	return r, nil
}

func (r *Reader) Type() string { return r.typ }

// Empty reports whether the message carried no payload (or a null one).
func (r *Reader) Empty() bool {
	switch r.enc {
	case EncodingMsgpack:
		return len(r.msgpack) == 0 || (len(r.msgpack) == 1 && r.msgpack[0] == 0xc0)
	default:
		return len(r.json) == 0 || string(r.json) == "null"
	}
}

// Decode unmarshals the payload into v.
func (r *Reader) Decode(v any) error {
	if r.Empty() {
		return ErrNoPayload
	}
	var err error
	if r.enc == EncodingMsgpack {
		err = msgpack.Unmarshal(r.msgpack, v)
	} else {
		err = json.Unmarshal(r.json, v)
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", r.typ, err)
	}
	return nil
}

package packet

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding selects the wire format of a session.
type Encoding int

const (
	EncodingJSON    Encoding = iota // text frames
	EncodingMsgpack                 // binary frames
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingMsgpack:
		return "msgpack"
	default:
		return fmt.Sprintf("Unknown(%d)", int(e))
	}
}

// ParseEncoding maps a query value to an Encoding. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "json":
		return EncodingJSON, nil
	case "msgpack":
		return EncodingMsgpack, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

// Envelope is the outbound message shape.
type Envelope struct {
	Type    string `json:"type" msgpack:"type"`
	Payload any    `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Encode marshals one outbound message.
func Encode(enc Encoding, typ string, payload any) ([]byte, error) {
	env := Envelope{Type: typ, Payload: payload}
	var (
		data []byte
		err  error
	)
	switch enc {
	case EncodingJSON:
		data, err = json.Marshal(env)
	case EncodingMsgpack:
		data, err = msgpack.Marshal(env)
	default:
		return nil, fmt.Errorf("unknown encoding %d", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return data, nil
}

// Frames caches one message per encoding so a broadcast marshals at most
// twice regardless of the number of receivers.
type Frames struct {
	Type    string
	Payload any
	cache   [2][]byte
}

func NewFrames(typ string, payload any) *Frames {
	return &Frames{Type: typ, Payload: payload}
}

// For returns the encoded message for enc.
func (f *Frames) For(enc Encoding) ([]byte, error) {
	if enc < 0 || int(enc) >= len(f.cache) {
		return nil, fmt.Errorf("unknown encoding %d", enc)
	}
	if b := f.cache[enc]; b != nil {
		return b, nil
	}
	b, err := Encode(enc, f.Type, f.Payload)
	if err != nil {
		return nil, err
	}
	f.cache[enc] = b
	return b, nil
}

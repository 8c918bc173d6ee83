package plug

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Codec turns typed values into frame payloads and back. Both sides of a
// channel must agree on the codec, the same way they agree on the Channel
// definition itself.
type Codec interface {
	// Marshal encodes v into a payload.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes a payload into the value pointed to by v.
	Unmarshal(data []byte, v any) error
	// Name returns a short codec identifier, e.g. "json".
	Name() string
}

// DefaultCodec is used when no codec is set explicitly.
var DefaultCodec Codec = JSONCodec{}

// JSONCodec encodes payloads with encoding/json.
type JSONCodec struct{}

// Marshal implements Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name implements Codec.
func (JSONCodec) Name() string { return "json" }

// GobCodec encodes payloads with encoding/gob. Each payload is a
// self-contained gob stream.
type GobCodec struct{}

// Marshal implements Codec.
func (GobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements Codec.
func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name implements Codec.
func (GobCodec) Name() string { return "gob" }

// ProtoCodec encodes payloads with google.golang.org/protobuf. Channel
// request and response types must be pointers to generated message types.
// The connection handshake has no generated type; it travels as a
// wrapperspb.StringValue holding the channel name.
type ProtoCodec struct{}

// Marshal implements Codec.
func (ProtoCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case proto.Message:
		return proto.Marshal(m)
	case handshake:
		return proto.Marshal(wrapperspb.String(m.Name))
	}
	return nil, errors.Errorf("proto codec: %T does not implement proto.Message", v)
}

// Unmarshal implements Codec.
func (ProtoCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case proto.Message:
		return proto.Unmarshal(data, m)
	case *handshake:
		var s wrapperspb.StringValue
		if err := proto.Unmarshal(data, &s); err != nil {
			return err
		}
		m.Name = s.Value
		return nil
	}
	// Read() passes a pointer to the In type parameter, so a message
	// type *M arrives here as **M. Allocate the message if needed.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		if ev := rv.Elem(); ev.Kind() == reflect.Pointer {
			if ev.IsNil() {
				ev.Set(reflect.New(ev.Type().Elem()))
			}
			if m, ok := ev.Interface().(proto.Message); ok {
				return proto.Unmarshal(data, m)
			}
		}
	}
	return errors.Errorf("proto codec: %T does not point to a proto.Message", v)
}

// Name implements Codec.
func (ProtoCodec) Name() string { return "proto" }

package messages

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
	"github.com/dkeye/Signalling/internal/domain"
	"github.com/go-viper/mapstructure/v2"
)

// As returns msg as *T. Typed values are returned as-is; generic records are
// decoded field by field using their json names.
func As[T any](msg domain.Message) (*T, error) {
	if v, ok := any(msg).(*T); ok {
		return v, nil
	}
	g, ok := msg.(domain.Generic)
	if !ok {
		return nil, fmt.Errorf("unexpected %T for %q message", msg, msg.MessageType())
	}

	out := new(T)
	if err := decodeInto(g, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Shape decodes a generic record into the shape registered for its type.
// Typed messages and records of unregistered types are returned unchanged.
func (r *Registry) Shape(msg domain.Message) (domain.Message, error) {
	g, ok := msg.(domain.Generic)
	if !ok {
		return msg, nil
	}
	factory, ok := r.Lookup(g.MessageType())
	if !ok {
		return msg, nil
	}
	out := factory()
	if err := decodeInto(g, out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeInto(g domain.Generic, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(unmarshalerHook),
		WeaklyTypedInput: true,
		Squash:           true,
		TagName:          "json",
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(g)); err != nil {
		return fmt.Errorf("failed to decode %q message: %w", g.MessageType(), err)
	}
	return nil
}

// unmarshalerHook hands fields whose type has its own JSON form (pion's
// ICEServer, ICECredentialType) back to that type's UnmarshalJSON.
func unmarshalerHook(from, to reflect.Type, data any) (any, error) {
	if from == to {
		return data, nil
	}
	if _, ok := reflect.New(to).Interface().(json.Unmarshaler); !ok {
		return data, nil
	}
	raw, err := sonic.ConfigStd.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := reflect.New(to)
	if err := sonic.ConfigStd.Unmarshal(raw, out.Interface()); err != nil {
		return nil, err
	}
	return out.Elem().Interface(), nil
}

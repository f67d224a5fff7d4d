package domain

// MessageType is the discriminator carried in the "type" field of every frame.
type MessageType string

// Message is any signalling record that can name its own type.
type Message interface {
	MessageType() MessageType
}

// Base is embedded by concrete message shapes.
type Base struct {
	Type MessageType `json:"type"`
}

func (b Base) MessageType() MessageType { return b.Type }

// Generic is a decoded inbound record holding every field of its frame.
type Generic map[string]any

func (g Generic) MessageType() MessageType {
	t, _ := g["type"].(string)
	return MessageType(t)
}

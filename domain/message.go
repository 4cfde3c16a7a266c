package domain

// Message is a typed, validated message. An instance only exists after the
// syntax layer accepted the raw payload, or because the code constructed it
// directly; raw data never becomes a Message without passing validation.
type Message interface {
	TypeName() string
}

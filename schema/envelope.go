package schema

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	errs "stockflow/errors"
)

// Envelope is the inbound wire shape: {"type_name": ..., "payload": {...}}.
// MessageID is taken from the envelope when present, otherwise generated, and
// only used for log correlation.
type Envelope struct {
	MessageID string
	TypeName  string
	Payload   []byte
}

// ParseEnvelope validates the envelope shape without touching the payload;
// payload validation belongs to the schema of the named type.
func ParseEnvelope(raw []byte) (Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return Envelope{}, fmt.Errorf("%w: not valid JSON", errs.ErrInvalidEnvelope)
	}
	name := gjson.GetBytes(raw, "type_name")
	if !name.Exists() || name.Type != gjson.String || name.String() == "" {
		return Envelope{}, fmt.Errorf("%w: missing type_name", errs.ErrInvalidEnvelope)
	}
	payload := gjson.GetBytes(raw, "payload")
	if !payload.Exists() || !payload.IsObject() {
		return Envelope{}, fmt.Errorf("%w: missing payload object", errs.ErrInvalidEnvelope)
	}

	id := gjson.GetBytes(raw, "message_id").String()
	if id == "" {
		id = uuid.NewString()
	}
	return Envelope{MessageID: id, TypeName: name.String(), Payload: []byte(payload.Raw)}, nil
}

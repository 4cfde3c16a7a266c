// Package schema maps message-type names to field schemas and turns raw
// payloads into typed messages. All structural failures for one payload are
// collected before returning so callers get a complete diagnostic in one pass.
// Unknown fields in the payload are ignored (tolerant reader).
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"stockflow/domain"
	errs "stockflow/errors"
)

// validate is shared by all schemas. Field names in reports come from the
// json tag, not the Go field name.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError names one offending field and the rule it violated.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type Kind int

const (
	String Kind = iota
	Int
	Time
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "an integer"
	case Time:
		return "an RFC 3339 timestamp"
	default:
		return "a string"
	}
}

// Field is one parsing/validation rule of a schema: presence and type
// coercion live here, value predicates live in the validate tags of the
// message struct the schema binds to.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema binds a field list to a constructor for the typed message the
// payload decodes into. New must return a pointer so unmarshalling can fill
// it in.
type Schema struct {
	Fields []Field
	New    func() domain.Message
}

// Registry maps type names to schemas. It is built once at startup, frozen,
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	schemas map[string]Schema
	frozen  bool
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

func (r *Registry) Register(name string, s Schema) error {
	if r.frozen {
		return fmt.Errorf("%w: schema %s", errs.ErrRegistryFrozen, name)
	}
	if _, ok := r.schemas[name]; ok {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateSchema, name)
	}
	r.schemas[name] = s
	return nil
}

func (r *Registry) Freeze() {
	r.frozen = true
}

// Decode parses raw against the schema registered under name. It returns
// either a typed message, the full list of field errors, or an error when the
// type name itself is unknown (never conflated with field-level failures).
func (r *Registry) Decode(name string, raw []byte) (domain.Message, []FieldError, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", errs.ErrUnknownMessageType, name)
	}

	if !gjson.ValidBytes(raw) {
		return nil, []FieldError{{Field: "payload", Reason: "must be a JSON object"}}, nil
	}

	var fieldErrs []FieldError
	coercionFailed := false
	for _, f := range s.Fields {
		res := gjson.GetBytes(raw, f.Name)
		if !res.Exists() {
			if f.Required {
				fieldErrs = append(fieldErrs, FieldError{Field: f.Name, Reason: "is required"})
			}
			continue
		}
		if reason, ok := checkKind(f.Kind, res); !ok {
			fieldErrs = append(fieldErrs, FieldError{Field: f.Name, Reason: reason})
			coercionFailed = true
		}
	}
	// With a coercion failure the payload cannot be unmarshalled, so the
	// predicate pass is skipped; the structural report is already complete.
	if coercionFailed {
		return nil, fieldErrs, nil
	}

	msg := s.New()
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal %s payload: %w", name, err)
	}

	fieldErrs = append(fieldErrs, predicateErrors(msg, fieldErrs)...)
	if len(fieldErrs) > 0 {
		return nil, fieldErrs, nil
	}
	return msg, nil, nil
}

// predicateErrors runs the validate tags and reports every violation, except
// for fields the structural pass already flagged.
func predicateErrors(msg domain.Message, already []FieldError) []FieldError {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "payload", Reason: err.Error()}}
	}

	seen := make(map[string]bool, len(already))
	for _, fe := range already {
		seen[fe.Field] = true
	}
	var out []FieldError
	for _, fe := range verrs {
		if seen[fe.Field()] {
			continue
		}
		out = append(out, FieldError{Field: fe.Field(), Reason: tagReason(fe)})
	}
	return out
}

func checkKind(k Kind, res gjson.Result) (string, bool) {
	switch k {
	case String:
		if res.Type != gjson.String {
			return "must be a string", false
		}
	case Int:
		if res.Type != gjson.Number {
			return "must be an integer", false
		}
		if res.Num != math.Trunc(res.Num) {
			return "must be an integer", false
		}
	case Time:
		if res.Type != gjson.String {
			return "must be an RFC 3339 timestamp", false
		}
		if _, err := time.Parse(time.RFC3339, res.String()); err != nil {
			return "must be an RFC 3339 timestamp", false
		}
	}
	return "", true
}

func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	default:
		return fmt.Sprintf("violates rule %q", fe.Tag())
	}
}

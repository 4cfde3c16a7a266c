package bus

import (
	"fmt"

	"stockflow/contract"
	errs "stockflow/errors"
)

type Role int

const (
	RoleCommand Role = iota + 1
	RoleEvent
)

type registration struct {
	role     Role
	handlers []contract.Handler
}

// HandlerRegistry binds type names to handlers. Commands get exactly one
// handler, enforced here at registration time, never at dispatch time.
// Events get zero or more, invoked in registration order. The registry is
// frozen after startup and read lock-free afterwards.
type HandlerRegistry struct {
	entries map[string]registration
	frozen  bool
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{entries: make(map[string]registration)}
}

func (r *HandlerRegistry) RegisterCommand(name string, h contract.Handler) error {
	if r.frozen {
		return fmt.Errorf("%w: command %s", errs.ErrRegistryFrozen, name)
	}
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateHandler, name)
	}
	r.entries[name] = registration{role: RoleCommand, handlers: []contract.Handler{h}}
	return nil
}

func (r *HandlerRegistry) RegisterEvent(name string, hs ...contract.Handler) error {
	if r.frozen {
		return fmt.Errorf("%w: event %s", errs.ErrRegistryFrozen, name)
	}
	entry := r.entries[name]
	if entry.role == RoleCommand {
		return fmt.Errorf("%w: %s is a command", errs.ErrDuplicateHandler, name)
	}
	entry.role = RoleEvent
	entry.handlers = append(entry.handlers, hs...)
	r.entries[name] = entry
	return nil
}

func (r *HandlerRegistry) Freeze() {
	r.frozen = true
}

func (r *HandlerRegistry) lookup(name string) (registration, bool) {
	entry, ok := r.entries[name]
	return entry, ok
}

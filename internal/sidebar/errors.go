package sidebar

import (
	"errors"
	"fmt"
)

var (
	ErrNotSidebarScript = errors.New("not a sidebar items script")
	ErrMalformedEntry   = errors.New("entry is not a [name, description] pair")
	ErrDuplicateName    = errors.New("duplicate name")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyDescription = errors.New("empty description")
	ErrUnknownKind      = errors.New("unknown item kind")
)

// EntryError locates a problem with one entry (or one kind when Name and
// Index are unset).
type EntryError struct {
	Kind  Kind
	Name  string
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%s[%d]: %v", e.Kind, e.Index, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

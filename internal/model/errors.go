package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrStore      = errors.New("store error")
	ErrProvider   = errors.New("completion provider error")
)

// TurnError carries a client-safe reply alongside the internal cause of a
// failed chat turn. Kind is one of the sentinel errors above and drives the
// HTTP status; Reply is what the caller is shown.
type TurnError struct {
	Kind  error
	Reply string
	cause error
}

func NewTurnError(kind error, reply string, cause error) *TurnError {
	return &TurnError{Kind: kind, Reply: reply, cause: cause}
}

func (e *TurnError) Error() string {
	if e.cause != nil {
		return e.Kind.Error() + ": " + e.cause.Error()
	}
	return e.Kind.Error()
}

func (e *TurnError) Unwrap() error { return e.cause }

// Is reports membership in the taxonomy so errors.Is(err, model.ErrStore)
// works without unwrapping to the cause.
func (e *TurnError) Is(target error) bool { return target == e.Kind }

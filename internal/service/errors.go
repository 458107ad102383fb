package service

import "errors"

// Error kinds. Every error returned by AuthService matches exactly one of
// them via errors.Is, except internal failures such as a hashing error.
var (
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStore        = errors.New("store error")
)

const (
	MsgEmailInUse          = "email already registered"
	MsgUsernameUnavailable = "username not available"
	MsgInvalidUsername     = "invalid username"
	MsgInvalidPassword     = "invalid password"
	MsgInvalidCredentials  = "invalid username or password"
	MsgUnauthorized        = "unauthorized"
	MsgInternal            = "internal server error"
)

type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Message returns the client-safe text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return MsgInternal
}

func validationErr(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func conflictErr(msg string, cause error) error {
	return &Error{Kind: ErrConflict, Message: msg, Err: cause}
}

func unauthorizedErr(msg string, cause error) error {
	return &Error{Kind: ErrUnauthorized, Message: msg, Err: cause}
}

func storeErr(cause error) error {
	return &Error{Kind: ErrStore, Message: MsgInternal, Err: cause}
}

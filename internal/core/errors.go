package core

import "errors"

// ErrMissingID is returned when an operation needs a persisted entry and
// receives one without an id. Callers are expected never to trigger it.
var ErrMissingID = errors.New("entry has no id")

// BusinessRuleError is a domain rule violation. Its message is meant for the
// end user.
type BusinessRuleError struct {
	Message string
}

func NewBusinessRuleError(msg string) error {
	return &BusinessRuleError{Message: msg}
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

// AuthenticationError reports a failed login.
type AuthenticationError struct {
	Message string
}

func NewAuthenticationError(msg string) error {
	return &AuthenticationError{Message: msg}
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// IsUserFacing reports whether err carries a message that can be shown to
// the client as is.
func IsUserFacing(err error) (string, bool) {
	var br *BusinessRuleError
	if errors.As(err, &br) {
		return br.Message, true
	}
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return ae.Message, true
	}
	return "", false
}

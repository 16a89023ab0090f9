package insightx

import "errors"

// TokenState is the terminal outcome of validating a token.
type TokenState uint8

const (
	StateValid TokenState = iota
	StateInvalidSignature
	StateExpired
	StateMalformed
	StateRevoked
	StateInactiveSubject
)

func (s TokenState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalidSignature:
		return "invalid_signature"
	case StateExpired:
		return "expired"
	case StateMalformed:
		return "malformed"
	case StateRevoked:
		return "revoked"
	case StateInactiveSubject:
		return "inactive_subject"
	default:
		return "unknown"
	}
}

// StateOf maps a Validate result to its terminal state. Any error it does not
// recognise is treated as malformed, so no error ever maps to StateValid.
func StateOf(err error) TokenState {
	switch {
	case err == nil:
		return StateValid
	case errors.Is(err, ErrTokenRevoked):
		return StateRevoked
	case errors.Is(err, ErrTokenBadSignature):
		return StateInvalidSignature
	case errors.Is(err, ErrTokenExpired):
		return StateExpired
	case errors.Is(err, ErrSubjectInactive):
		return StateInactiveSubject
	default:
		return StateMalformed
	}
}

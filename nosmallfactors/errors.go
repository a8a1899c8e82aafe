package nosmallfactors

import (
	"errors"
	"fmt"
)

var (
	// ErrProofVerificationFailed indicates a proof was rejected
	ErrProofVerificationFailed = errors.New("nosmallfactors: proof verification failed")

	// ErrMalformedProof indicates the proof or its public inputs are
	// structurally invalid. It matches ErrProofVerificationFailed.
	ErrMalformedProof = fmt.Errorf("%w: malformed input", ErrProofVerificationFailed)

	// ErrInvalidParameter indicates an invalid prover input
	ErrInvalidParameter = errors.New("nosmallfactors: invalid parameter")
)

// Error wraps an underlying error with the operation that failed
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("nosmallfactors.%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// errorf wraps sentinel with a formatted reason.
func errorf(op string, sentinel error, format string, args ...interface{}) error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)),
	}
}

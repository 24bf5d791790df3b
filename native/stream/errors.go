package stream

import "errors"

var errNilState = errors.New("stream engine: state not configured")

var (
	ErrUnauthorized      = errors.New("stream: unauthorized")
	ErrNotFound          = errors.New("stream: stream not found")
	ErrStillActive       = errors.New("stream: stream still active")
	ErrInvalidParam      = errors.New("stream: invalid parameter")
	ErrNothingToWithdraw = errors.New("stream: nothing to withdraw")
)

// Abort codes mirror the numeric error space of the deployed contract. They
// are wire-level identifiers and must stay stable across releases.
const (
	CodeUnauthorized     uint32 = 0
	CodeInvalidSignature uint32 = 1 // reserved, signature-gated updates are out of scope
	CodeStillActive      uint32 = 2
	CodeInvalidStreamID  uint32 = 3
	CodeInvalidParam     uint32 = 7
)

// AbortCode maps an engine error to its stable numeric code. The second
// return reports whether the error belongs to the ledger taxonomy at all.
func AbortCode(err error) (uint32, bool) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, true
	case errors.Is(err, ErrStillActive):
		return CodeStillActive, true
	case errors.Is(err, ErrNotFound):
		return CodeInvalidStreamID, true
	case errors.Is(err, ErrInvalidParam), errors.Is(err, ErrNothingToWithdraw):
		return CodeInvalidParam, true
	default:
		return 0, false
	}
}

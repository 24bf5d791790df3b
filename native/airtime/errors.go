package airtime

import "errors"

var errNilState = errors.New("airtime engine: state not configured")

var (
	ErrUnauthorized = errors.New("airtime: unauthorized")
	ErrNotFound     = errors.New("airtime: plan not found")
	ErrNotReady     = errors.New("airtime: plan not ready")
	ErrPlanEmpty    = errors.New("airtime: plan empty")
	ErrInvalidParam = errors.New("airtime: invalid parameter")
	ErrPlanComplete = errors.New("airtime: plan complete")
)

// Abort codes mirror the numeric error space of the deployed contract. They
// are wire-level identifiers and must stay stable across releases.
const (
	CodeUnauthorized  uint32 = 0
	CodeInvalidPlanID uint32 = 4
	CodePlanNotReady  uint32 = 5
	CodePlanEmpty     uint32 = 6
	CodeInvalidParam  uint32 = 7
	CodePlanComplete  uint32 = 8
)

// AbortCode maps an engine error to its stable numeric code. The second
// return reports whether the error belongs to the ledger taxonomy at all.
func AbortCode(err error) (uint32, bool) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized, true
	case errors.Is(err, ErrNotFound):
		return CodeInvalidPlanID, true
	case errors.Is(err, ErrNotReady):
		return CodePlanNotReady, true
	case errors.Is(err, ErrPlanEmpty):
		return CodePlanEmpty, true
	case errors.Is(err, ErrInvalidParam):
		return CodeInvalidParam, true
	case errors.Is(err, ErrPlanComplete):
		return CodePlanComplete, true
	default:
		return 0, false
	}
}

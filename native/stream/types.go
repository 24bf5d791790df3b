package stream

import (
	"fmt"
	"math/big"
)

// Stream captures a linear vesting payment between a sender and a recipient.
// Funds live on the module vault; the record only tracks entitlements. Streams
// are never deleted: once Balance equals WithdrawnBalance the record is
// dormant but stays queryable.
type Stream struct {
	ID               uint64
	Sender           [20]byte
	Recipient        [20]byte
	Balance          *big.Int
	WithdrawnBalance *big.Int
	PaymentPerBlock  *big.Int
	StartBlock       uint64
	StopBlock        uint64
}

// Clone returns a deep copy of the stream so callers can safely mutate the
// copy without affecting the stored instance.
func (s *Stream) Clone() *Stream {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Balance = cloneBigInt(s.Balance)
	clone.WithdrawnBalance = cloneBigInt(s.WithdrawnBalance)
	clone.PaymentPerBlock = cloneBigInt(s.PaymentPerBlock)
	return &clone
}

// SanitizeStream validates a stream record and returns a cloned instance with
// non-nil amount fields. The function does not mutate the original value.
func SanitizeStream(s *Stream) (*Stream, error) {
	if s == nil {
		return nil, fmt.Errorf("nil stream")
	}
	clone := s.Clone()
	if clone.Balance.Sign() < 0 || clone.WithdrawnBalance.Sign() < 0 || clone.PaymentPerBlock.Sign() < 0 {
		return nil, fmt.Errorf("stream amounts must be non-negative")
	}
	if clone.WithdrawnBalance.Cmp(clone.Balance) > 0 {
		return nil, fmt.Errorf("withdrawn balance exceeds stream balance")
	}
	if clone.StartBlock > clone.StopBlock {
		return nil, fmt.Errorf("stream start block after stop block")
	}
	return clone, nil
}

// Vested returns the cumulative amount released by the vesting schedule at
// the supplied block height: PaymentPerBlock for every block inside
// [StartBlock, StopBlock) that has elapsed.
func (s *Stream) Vested(height uint64) *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	clamped := height
	if clamped > s.StopBlock {
		clamped = s.StopBlock
	}
	if clamped <= s.StartBlock {
		return big.NewInt(0)
	}
	elapsed := new(big.Int).SetUint64(clamped - s.StartBlock)
	return elapsed.Mul(elapsed, cloneBigInt(s.PaymentPerBlock))
}

// Withdrawable returns the amount the recipient could withdraw at the
// supplied block height: vested funds capped by the stream balance, minus
// what was already withdrawn. Never negative.
func (s *Stream) Withdrawable(height uint64) *big.Int {
	if s == nil {
		return big.NewInt(0)
	}
	vested := s.Vested(height)
	balance := cloneBigInt(s.Balance)
	if vested.Cmp(balance) > 0 {
		vested = balance
	}
	out := vested.Sub(vested, cloneBigInt(s.WithdrawnBalance))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

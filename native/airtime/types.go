package airtime

import (
	"bytes"
	"fmt"
	"math/big"
)

// MetaLen is the fixed byte length of the phone and network labels. Shorter
// input is zero-padded on the wire; display form trims the padding.
const MetaLen = 16

// Plan is a recurring fixed-payout disbursement agreement between a merchant
// (funder) and a customer (beneficiary). Funds are escrowed up front for
// MaxClaims payouts; claims are gated by the block-height interval. Cancelled
// or exhausted plans stay on record for audit queries.
type Plan struct {
	ID               uint64
	Merchant         [20]byte
	Customer         [20]byte
	Phone            [MetaLen]byte
	Network          [MetaLen]byte
	PayoutAmount     *big.Int
	Interval         uint64
	NextClaimBlock   uint64
	TotalFunded      *big.Int
	RemainingBalance *big.Int
	TotalClaims      uint64
	MaxClaims        uint64
}

// Clone returns a deep copy of the plan so callers can safely mutate the copy
// without affecting the stored instance.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	clone := *p
	clone.PayoutAmount = cloneBigInt(p.PayoutAmount)
	clone.TotalFunded = cloneBigInt(p.TotalFunded)
	clone.RemainingBalance = cloneBigInt(p.RemainingBalance)
	return &clone
}

// SanitizePlan validates a plan record and returns a cloned instance with
// non-nil amount fields. The function does not mutate the original value.
func SanitizePlan(p *Plan) (*Plan, error) {
	if p == nil {
		return nil, fmt.Errorf("nil plan")
	}
	clone := p.Clone()
	if clone.PayoutAmount.Sign() <= 0 {
		return nil, fmt.Errorf("plan payout must be positive")
	}
	if clone.Interval == 0 {
		return nil, fmt.Errorf("plan interval must be positive")
	}
	if clone.TotalFunded.Sign() < 0 || clone.RemainingBalance.Sign() < 0 {
		return nil, fmt.Errorf("plan balances must be non-negative")
	}
	if clone.TotalClaims > clone.MaxClaims {
		return nil, fmt.Errorf("plan claims exceed claim cap")
	}
	return clone, nil
}

// MetaField packs a textual label into the fixed wire representation,
// rejecting oversize input.
func MetaField(label string) ([MetaLen]byte, error) {
	var out [MetaLen]byte
	if len(label) > MetaLen {
		return out, fmt.Errorf("label exceeds %d bytes: %q", MetaLen, label)
	}
	copy(out[:], label)
	return out, nil
}

// MetaString renders a fixed-length label for display by trimming the
// trailing zero padding.
func MetaString(field [MetaLen]byte) string {
	return string(bytes.TrimRight(field[:], "\x00"))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

package airtime

import (
	"strconv"

	"streamvault/core/types"
	"streamvault/crypto"
)

const (
	EventTypePlanCreated   = "airtime.created"
	EventTypePlanClaimed   = "airtime.claimed"
	EventTypePlanToppedUp  = "airtime.topped_up"
	EventTypePlanCancelled = "airtime.cancelled"
)

// NewCreatedEvent returns the canonical event payload for a newly funded plan.
func NewCreatedEvent(p *Plan) *types.Event { return newPlanEvent(EventTypePlanCreated, p) }

// NewClaimedEvent returns the canonical event payload for a successful claim.
func NewClaimedEvent(p *Plan) *types.Event { return newPlanEvent(EventTypePlanClaimed, p) }

// NewToppedUpEvent returns the canonical event payload emitted when the
// merchant extends the plan with extra claims.
func NewToppedUpEvent(p *Plan) *types.Event { return newPlanEvent(EventTypePlanToppedUp, p) }

// NewCancelledEvent returns the canonical event payload emitted when the
// merchant closes the plan and reclaims the remaining escrow.
func NewCancelledEvent(p *Plan) *types.Event { return newPlanEvent(EventTypePlanCancelled, p) }

func newPlanEvent(eventType string, p *Plan) *types.Event {
	if p == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	p = p.Clone()
	attrs := map[string]string{
		"id":               strconv.FormatUint(p.ID, 10),
		"merchant":         crypto.MustNewAddress(crypto.VaultPrefix, p.Merchant[:]).String(),
		"customer":         crypto.MustNewAddress(crypto.VaultPrefix, p.Customer[:]).String(),
		"phone":            MetaString(p.Phone),
		"network":          MetaString(p.Network),
		"payoutAmount":     p.PayoutAmount.String(),
		"interval":         strconv.FormatUint(p.Interval, 10),
		"nextClaimBlock":   strconv.FormatUint(p.NextClaimBlock, 10),
		"totalFunded":      p.TotalFunded.String(),
		"remainingBalance": p.RemainingBalance.String(),
		"totalClaims":      strconv.FormatUint(p.TotalClaims, 10),
		"maxClaims":        strconv.FormatUint(p.MaxClaims, 10),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

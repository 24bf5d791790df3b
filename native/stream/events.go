package stream

import (
	"strconv"

	"streamvault/core/types"
	"streamvault/crypto"
)

const (
	EventTypeStreamCreated   = "stream.created"
	EventTypeStreamRefueled  = "stream.refueled"
	EventTypeStreamWithdrawn = "stream.withdrawn"
	EventTypeStreamRefunded  = "stream.refunded"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// stream.
func NewCreatedEvent(s *Stream) *types.Event { return newStreamEvent(EventTypeStreamCreated, s) }

// NewRefueledEvent returns the canonical event payload emitted when a sender
// tops up a stream.
func NewRefueledEvent(s *Stream) *types.Event { return newStreamEvent(EventTypeStreamRefueled, s) }

// NewWithdrawnEvent returns the canonical event payload for a recipient
// withdrawal.
func NewWithdrawnEvent(s *Stream) *types.Event { return newStreamEvent(EventTypeStreamWithdrawn, s) }

// NewRefundedEvent returns the canonical event payload emitted when the sender
// reclaims the unvested remainder after the stream window closes.
func NewRefundedEvent(s *Stream) *types.Event { return newStreamEvent(EventTypeStreamRefunded, s) }

func newStreamEvent(eventType string, s *Stream) *types.Event {
	if s == nil {
		return &types.Event{Type: eventType, Attributes: map[string]string{}}
	}
	s = s.Clone()
	attrs := map[string]string{
		"id":               strconv.FormatUint(s.ID, 10),
		"sender":           crypto.MustNewAddress(crypto.VaultPrefix, s.Sender[:]).String(),
		"recipient":        crypto.MustNewAddress(crypto.VaultPrefix, s.Recipient[:]).String(),
		"balance":          s.Balance.String(),
		"withdrawnBalance": s.WithdrawnBalance.String(),
		"paymentPerBlock":  s.PaymentPerBlock.String(),
		"startBlock":       strconv.FormatUint(s.StartBlock, 10),
		"stopBlock":        strconv.FormatUint(s.StopBlock, 10),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

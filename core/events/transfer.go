package events

import (
	"math/big"

	"streamvault/core/types"
	"streamvault/crypto"
)

const (
	// TypeTransfer is emitted for every native balance movement, including
	// moves in and out of the module vault.
	TypeTransfer = "transfer.native"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"from":   crypto.MustNewAddress(crypto.VaultPrefix, e.From[:]).String(),
		"to":     crypto.MustNewAddress(crypto.VaultPrefix, e.To[:]).String(),
		"amount": formatAmount(e.Amount),
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

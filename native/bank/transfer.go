package bank

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"streamvault/core/types"
)

var (
	ErrNilStore          = errors.New("bank: balance store not configured")
	ErrInvalidAmount     = errors.New("bank: amount must be non-negative")
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
)

// BalanceStore is the narrow account surface the transfer primitive needs.
type BalanceStore interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

var vaultAddress [20]byte

func init() {
	hash := ethcrypto.Keccak256([]byte("streamvault/module/vault"))
	copy(vaultAddress[:], hash[12:])
}

// VaultAddress returns the module account that custodies all escrowed funds.
// The address is derived deterministically and has no known private key.
func VaultAddress() [20]byte {
	return vaultAddress
}

// Transfer moves amount units from one principal's spendable balance to
// another's. A zero amount is a successful no-op; the operation fails with
// ErrInsufficientFunds when the funder cannot cover the amount, leaving both
// accounts untouched.
func Transfer(store BalanceStore, from, to [20]byte, amount *big.Int) error {
	if store == nil {
		return ErrNilStore
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := store.GetAccount(from)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	// Self transfers are balance checked but otherwise a no-op.
	if from == to {
		return nil
	}
	toAcc, err := store.GetAccount(to)
	if err != nil {
		return err
	}
	toAcc = ensureAccount(toAcc)
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := store.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return store.PutAccount(to, toAcc)
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

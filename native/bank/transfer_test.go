package bank

import (
	"math/big"
	"testing"

	"streamvault/core/types"
)

type mapStore struct {
	accounts map[[20]byte]*types.Account
}

func newMapStore() *mapStore {
	return &mapStore{accounts: make(map[[20]byte]*types.Account)}
}

func (m *mapStore) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m *mapStore) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestTransferMovesFunds(t *testing.T) {
	store := newMapStore()
	from := addr(0x01)
	to := addr(0x02)
	store.accounts[from] = &types.Account{Balance: big.NewInt(1000)}

	if err := Transfer(store, from, to, big.NewInt(400)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	fromAcc, _ := store.GetAccount(from)
	toAcc, _ := store.GetAccount(to)
	if fromAcc.Balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("unexpected sender balance: %s", fromAcc.Balance)
	}
	if toAcc.Balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected recipient balance: %s", toAcc.Balance)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	store := newMapStore()
	from := addr(0x01)
	to := addr(0x02)
	store.accounts[from] = &types.Account{Balance: big.NewInt(10)}

	if err := Transfer(store, from, to, big.NewInt(11)); err != ErrInsufficientFunds {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	fromAcc, _ := store.GetAccount(from)
	if fromAcc.Balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance mutated on failed transfer: %s", fromAcc.Balance)
	}
}

func TestTransferZeroIsNoop(t *testing.T) {
	store := newMapStore()
	if err := Transfer(store, addr(0x01), addr(0x02), big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should succeed: %v", err)
	}
}

func TestTransferRejectsNegative(t *testing.T) {
	if err := Transfer(newMapStore(), addr(0x01), addr(0x02), big.NewInt(-1)); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := Transfer(newMapStore(), addr(0x01), addr(0x02), nil); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount for nil amount, got %v", err)
	}
}

func TestVaultAddressStable(t *testing.T) {
	if VaultAddress() != VaultAddress() {
		t.Fatal("vault address must be deterministic")
	}
	if VaultAddress() == ([20]byte{}) {
		t.Fatal("vault address must not be zero")
	}
}

func TestTransferToSelfLeavesBalance(t *testing.T) {
	store := newMapStore()
	from := addr(0x01)
	store.accounts[from] = &types.Account{Balance: big.NewInt(100)}

	if err := Transfer(store, from, from, big.NewInt(40)); err != nil {
		t.Fatalf("self transfer failed: %v", err)
	}
	acc, _ := store.GetAccount(from)
	if acc.Balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("self transfer mutated balance: %s", acc.Balance)
	}
	if err := Transfer(store, from, from, big.NewInt(101)); err != ErrInsufficientFunds {
		t.Fatalf("uncovered self transfer must fail, got %v", err)
	}
}

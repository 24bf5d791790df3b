package genesis

import (
	"fmt"
	"math/big"

	"streamvault/core/state"
)

// Apply writes the genesis allocation into state exactly once. Reopening a
// database that already carries the allocation is a no-op.
func Apply(spec *Spec, manager *state.Manager) error {
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	applied, err := manager.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	if spec != nil {
		allocations, err := spec.Allocations()
		if err != nil {
			return err
		}
		for _, alloc := range allocations {
			account, err := manager.GetAccount(alloc.Address)
			if err != nil {
				return err
			}
			account.Balance = new(big.Int).Add(account.Balance, alloc.Amount)
			if err := manager.PutAccount(alloc.Address, account); err != nil {
				return err
			}
		}
	}
	return manager.SetGenesisApplied()
}

package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"

	"streamvault/crypto"
)

// Spec is the JSON genesis document. Alloc maps bech32 addresses to initial
// native balances expressed as decimal strings.
type Spec struct {
	NetworkName string            `json:"networkName,omitempty"`
	Alloc       map[string]string `json:"alloc"`
}

// Allocation is a parsed genesis entry.
type Allocation struct {
	Address [20]byte
	Amount  *big.Int
}

// LoadSpec reads and validates a genesis document from disk.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	return ParseSpec(raw)
}

// ParseSpec decodes a genesis document, rejecting unknown fields.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse genesis spec: %w", err)
	}
	if _, err := spec.Allocations(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Allocations returns the parsed alloc entries sorted by address string so
// application order is deterministic.
func (s *Spec) Allocations() ([]Allocation, error) {
	if s == nil {
		return nil, nil
	}
	addresses := make([]string, 0, len(s.Alloc))
	for addr := range s.Alloc {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	out := make([]Allocation, 0, len(addresses))
	for _, addrStr := range addresses {
		decoded, err := crypto.DecodeAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		amount, err := parseAmount(s.Alloc[addrStr])
		if err != nil {
			return nil, fmt.Errorf("alloc %q: %w", addrStr, err)
		}
		var addr [20]byte
		copy(addr[:], decoded.Bytes())
		out = append(out, Allocation{Address: addr, Amount: amount})
	}
	return out, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return amount, nil
}

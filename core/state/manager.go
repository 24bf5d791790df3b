package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"streamvault/core/types"
	"streamvault/native/airtime"
	"streamvault/native/stream"
	"streamvault/storage"
)

// Manager persists ledger state in a key/value database. Keys are keccak
// hashes of stable string prefixes so records from different namespaces can
// never collide; values are RLP encoded.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager on top of the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	heightKey  = ethcrypto.Keccak256([]byte("chain/height"))
	genesisKey = ethcrypto.Keccak256([]byte("chain/genesis-applied"))

	streamCounterKey = ethcrypto.Keccak256([]byte("stream/latest-id"))
	planCounterKey   = ethcrypto.Keccak256([]byte("airtime/latest-id"))

	accountPrefix = "account/"
	streamPrefix  = "stream/record/"
	planPrefix    = "airtime/record/"
)

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func recordKey(prefix string, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	for i := 0; i < 8; i++ {
		buf[len(prefix)+i] = byte(id >> (56 - 8*i))
	}
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

type accountRecord struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads an account record, returning a zero-balance account for
// addresses that have never been written.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	data, ok, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	var rec accountRecord
	if err := rlp.DecodeBytes(data, &rec); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if rec.Balance == nil {
		rec.Balance = big.NewInt(0)
	}
	return &types.Account{Nonce: rec.Nonce, Balance: rec.Balance}, nil
}

// PutAccount writes an account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(&accountRecord{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), encoded)
}

// StreamPut stores a sanitized payment stream record keyed by its id.
func (m *Manager) StreamPut(s *stream.Stream) error {
	sanitized, err := stream.SanitizeStream(s)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return fmt.Errorf("encode stream: %w", err)
	}
	return m.db.Put(recordKey(streamPrefix, sanitized.ID), encoded)
}

// StreamGet loads a payment stream record, reporting absence without error.
func (m *Manager) StreamGet(id uint64) (*stream.Stream, bool, error) {
	data, ok, err := m.get(recordKey(streamPrefix, id))
	if err != nil || !ok {
		return nil, false, err
	}
	record := new(stream.Stream)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, false, fmt.Errorf("decode stream: %w", err)
	}
	return record, true, nil
}

// StreamLatestID returns the stream id counter, zero when unset.
func (m *Manager) StreamLatestID() (uint64, error) {
	return m.counter(streamCounterKey)
}

// StreamSetLatestID persists the stream id counter.
func (m *Manager) StreamSetLatestID(id uint64) error {
	return m.setCounter(streamCounterKey, id)
}

// PlanPut stores a sanitized drip plan record keyed by its id.
func (m *Manager) PlanPut(p *airtime.Plan) error {
	sanitized, err := airtime.SanitizePlan(p)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return m.db.Put(recordKey(planPrefix, sanitized.ID), encoded)
}

// PlanGet loads a drip plan record, reporting absence without error.
func (m *Manager) PlanGet(id uint64) (*airtime.Plan, bool, error) {
	data, ok, err := m.get(recordKey(planPrefix, id))
	if err != nil || !ok {
		return nil, false, err
	}
	record := new(airtime.Plan)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, false, fmt.Errorf("decode plan: %w", err)
	}
	return record, true, nil
}

// PlanLatestID returns the plan id counter, zero when unset.
func (m *Manager) PlanLatestID() (uint64, error) {
	return m.counter(planCounterKey)
}

// PlanSetLatestID persists the plan id counter.
func (m *Manager) PlanSetLatestID(id uint64) error {
	return m.setCounter(planCounterKey, id)
}

// Height returns the last recorded block height, zero when unset.
func (m *Manager) Height() (uint64, error) {
	return m.counter(heightKey)
}

// SetHeight persists the current block height. Monotonicity is enforced by
// the node, not here, so replays from genesis can rewrite freely.
func (m *Manager) SetHeight(height uint64) error {
	return m.setCounter(heightKey, height)
}

// GenesisApplied reports whether the genesis allocation has been written.
func (m *Manager) GenesisApplied() (bool, error) {
	_, ok, err := m.get(genesisKey)
	return ok, err
}

// SetGenesisApplied marks the genesis allocation as written.
func (m *Manager) SetGenesisApplied() error {
	return m.db.Put(genesisKey, []byte{1})
}

func (m *Manager) counter(key []byte) (uint64, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return 0, err
	}
	var value uint64
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return 0, fmt.Errorf("decode counter: %w", err)
	}
	return value, nil
}

func (m *Manager) setCounter(key []byte, value uint64) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

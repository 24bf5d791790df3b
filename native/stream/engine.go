package stream

import (
	"math/big"

	"streamvault/core/events"
	"streamvault/core/types"
	"streamvault/native/bank"
)

type engineState interface {
	StreamPut(*Stream) error
	StreamGet(id uint64) (*Stream, bool, error)
	StreamLatestID() (uint64, error)
	StreamSetLatestID(id uint64) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type streamEvent struct {
	evt *types.Event
}

func (e streamEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e streamEvent) Event() *types.Event { return e.evt }

// Engine applies the stream-ledger state transitions against external state.
// Every mutating method validates all preconditions before touching balances
// or records, so a failed call leaves state untouched. The current block
// height is always an explicit argument; the engine never reads a clock.
type Engine struct {
	state   engineState
	vault   [20]byte
	emitter events.Emitter
}

// NewEngine creates a stream engine with a no-op emitter and the module vault
// as its escrow account. Callers can override both via SetEmitter and
// SetVault.
func NewEngine() *Engine {
	return &Engine{
		vault:   bank.VaultAddress(),
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault overrides the escrow account. Primarily intended for tests.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(streamEvent{evt: event})
}

func (e *Engine) emitTransfer(from, to [20]byte, amount *big.Int) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Transfer{From: from, To: to, Amount: cloneBigInt(amount)})
}

func (e *Engine) loadStream(id uint64) (*Stream, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	s, ok, err := e.state.StreamGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (e *Engine) storeStream(s *Stream) error {
	sanitized, err := SanitizeStream(s)
	if err != nil {
		return err
	}
	return e.state.StreamPut(sanitized)
}

// Create opens a new stream: it escrows initialBalance from the sender and
// records the vesting schedule. The next sequential id is assigned and
// returned.
func (e *Engine) Create(sender, recipient [20]byte, initialBalance *big.Int, startBlock, stopBlock uint64, paymentPerBlock *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if initialBalance == nil || initialBalance.Sign() <= 0 {
		return 0, ErrInvalidParam
	}
	if paymentPerBlock == nil || paymentPerBlock.Sign() <= 0 {
		return 0, ErrInvalidParam
	}
	if startBlock > stopBlock {
		return 0, ErrInvalidParam
	}
	id, err := e.state.StreamLatestID()
	if err != nil {
		return 0, err
	}
	if err := bank.Transfer(e.state, sender, e.vault, initialBalance); err != nil {
		return 0, err
	}
	s := &Stream{
		ID:               id,
		Sender:           sender,
		Recipient:        recipient,
		Balance:          cloneBigInt(initialBalance),
		WithdrawnBalance: big.NewInt(0),
		PaymentPerBlock:  cloneBigInt(paymentPerBlock),
		StartBlock:       startBlock,
		StopBlock:        stopBlock,
	}
	if err := e.storeStream(s); err != nil {
		return 0, err
	}
	if err := e.state.StreamSetLatestID(id + 1); err != nil {
		return 0, err
	}
	e.emitTransfer(sender, e.vault, initialBalance)
	e.emit(NewCreatedEvent(s))
	return id, nil
}

// Refuel adds funds to an existing stream. Only the sender may refuel.
func (e *Engine) Refuel(id uint64, caller [20]byte, amount *big.Int) error {
	s, err := e.loadStream(id)
	if err != nil {
		return err
	}
	if caller != s.Sender {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidParam
	}
	if err := bank.Transfer(e.state, s.Sender, e.vault, amount); err != nil {
		return err
	}
	s.Balance = new(big.Int).Add(s.Balance, amount)
	if err := e.storeStream(s); err != nil {
		return err
	}
	e.emitTransfer(s.Sender, e.vault, amount)
	e.emit(NewRefueledEvent(s))
	return nil
}

// Withdraw pays the recipient everything currently withdrawable at the
// supplied block height and returns the amount paid. Only the recipient may
// withdraw; a zero withdrawable amount fails the call.
func (e *Engine) Withdraw(id uint64, caller [20]byte, height uint64) (*big.Int, error) {
	s, err := e.loadStream(id)
	if err != nil {
		return nil, err
	}
	if caller != s.Recipient {
		return nil, ErrUnauthorized
	}
	withdrawable := s.Withdrawable(height)
	if withdrawable.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := bank.Transfer(e.state, e.vault, s.Recipient, withdrawable); err != nil {
		return nil, err
	}
	s.WithdrawnBalance = new(big.Int).Add(s.WithdrawnBalance, withdrawable)
	if err := e.storeStream(s); err != nil {
		return nil, err
	}
	e.emitTransfer(e.vault, s.Recipient, withdrawable)
	e.emit(NewWithdrawnEvent(s))
	return withdrawable, nil
}

// Refund returns the entire unwithdrawn remainder to the sender once the
// vesting window has closed. The stream stays on record with
// Balance == WithdrawnBalance afterwards.
func (e *Engine) Refund(id uint64, caller [20]byte, height uint64) (*big.Int, error) {
	s, err := e.loadStream(id)
	if err != nil {
		return nil, err
	}
	if caller != s.Sender {
		return nil, ErrUnauthorized
	}
	if height < s.StopBlock {
		return nil, ErrStillActive
	}
	remainder := new(big.Int).Sub(s.Balance, s.WithdrawnBalance)
	if remainder.Sign() <= 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := bank.Transfer(e.state, e.vault, s.Sender, remainder); err != nil {
		return nil, err
	}
	s.Balance = cloneBigInt(s.WithdrawnBalance)
	if err := e.storeStream(s); err != nil {
		return nil, err
	}
	e.emitTransfer(e.vault, s.Sender, remainder)
	e.emit(NewRefundedEvent(s))
	return remainder, nil
}

// BalanceOf reports the entitlement of a principal against a stream at the
// supplied height: the currently withdrawable amount for the recipient, the
// unvested remainder for the sender, and zero for anyone else or for an
// unknown stream. Read-only; never fails.
func (e *Engine) BalanceOf(id uint64, principal [20]byte, height uint64) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	s, ok, err := e.state.StreamGet(id)
	if err != nil || !ok {
		return big.NewInt(0)
	}
	switch principal {
	case s.Recipient:
		return s.Withdrawable(height)
	case s.Sender:
		remainder := new(big.Int).Sub(s.Balance, s.WithdrawnBalance)
		remainder.Sub(remainder, s.Withdrawable(height))
		if remainder.Sign() < 0 {
			return big.NewInt(0)
		}
		return remainder
	default:
		return big.NewInt(0)
	}
}

// Get returns the stream for the supplied id, reporting absence without error.
func (e *Engine) Get(id uint64) (*Stream, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.StreamGet(id)
}

// LatestStreamID returns the id counter: the number of streams created so
// far, which is also the id the next creation will receive.
func (e *Engine) LatestStreamID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.StreamLatestID()
}

package airtime

import (
	"math/big"

	"streamvault/core/events"
	"streamvault/core/types"
	"streamvault/native/bank"
)

type engineState interface {
	PlanPut(*Plan) error
	PlanGet(id uint64) (*Plan, bool, error)
	PlanLatestID() (uint64, error)
	PlanSetLatestID(id uint64) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type planEvent struct {
	evt *types.Event
}

func (e planEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e planEvent) Event() *types.Event { return e.evt }

// Engine applies the drip-ledger state transitions against external state.
// Preconditions are evaluated in full before any transfer or field write, so
// a failed call has zero observable side effects. The current block height is
// always an explicit argument.
type Engine struct {
	state   engineState
	vault   [20]byte
	emitter events.Emitter
}

// NewEngine creates a drip engine with a no-op emitter and the module vault
// as its escrow account.
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
	e.emitter.Emit(planEvent{evt: event})
}

func (e *Engine) emitTransfer(from, to [20]byte, amount *big.Int) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Transfer{From: from, To: to, Amount: cloneBigInt(amount)})
}

func (e *Engine) loadPlan(id uint64) (*Plan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, ok, err := e.state.PlanGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (e *Engine) storePlan(p *Plan) error {
	sanitized, err := SanitizePlan(p)
	if err != nil {
		return err
	}
	return e.state.PlanPut(sanitized)
}

// Create funds a new drip plan: payout*maxClaims is escrowed from the
// merchant in one transfer and the first claim becomes available interval
// blocks after the supplied height. Returns the assigned sequential id.
func (e *Engine) Create(merchant, customer [20]byte, phone, network [MetaLen]byte, payout *big.Int, interval, maxClaims, height uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if payout == nil || payout.Sign() <= 0 || interval == 0 || maxClaims == 0 {
		return 0, ErrInvalidParam
	}
	totalFunded := new(big.Int).Mul(payout, new(big.Int).SetUint64(maxClaims))
	id, err := e.state.PlanLatestID()
	if err != nil {
		return 0, err
	}
	if err := bank.Transfer(e.state, merchant, e.vault, totalFunded); err != nil {
		return 0, err
	}
	p := &Plan{
		ID:               id,
		Merchant:         merchant,
		Customer:         customer,
		Phone:            phone,
		Network:          network,
		PayoutAmount:     cloneBigInt(payout),
		Interval:         interval,
		NextClaimBlock:   height + interval,
		TotalFunded:      totalFunded,
		RemainingBalance: cloneBigInt(totalFunded),
		TotalClaims:      0,
		MaxClaims:        maxClaims,
	}
	if err := e.storePlan(p); err != nil {
		return 0, err
	}
	if err := e.state.PlanSetLatestID(id + 1); err != nil {
		return 0, err
	}
	e.emitTransfer(merchant, e.vault, totalFunded)
	e.emit(NewCreatedEvent(p))
	return id, nil
}

// Claim releases one payout to the customer once the interval has elapsed.
// Returns the amount paid. The claim window then advances by one interval.
func (e *Engine) Claim(id uint64, caller [20]byte, height uint64) (*big.Int, error) {
	p, err := e.loadPlan(id)
	if err != nil {
		return nil, err
	}
	if caller != p.Customer {
		return nil, ErrUnauthorized
	}
	if height < p.NextClaimBlock {
		return nil, ErrNotReady
	}
	if p.TotalClaims >= p.MaxClaims || p.RemainingBalance.Sign() == 0 {
		return nil, ErrPlanComplete
	}
	payout := cloneBigInt(p.PayoutAmount)
	if err := bank.Transfer(e.state, e.vault, p.Customer, payout); err != nil {
		return nil, err
	}
	p.TotalClaims++
	p.RemainingBalance = new(big.Int).Sub(p.RemainingBalance, payout)
	p.NextClaimBlock += p.Interval
	if err := e.storePlan(p); err != nil {
		return nil, err
	}
	e.emitTransfer(e.vault, p.Customer, payout)
	e.emit(NewClaimedEvent(p))
	return payout, nil
}

// Topup escrows extraClaims further payouts from the merchant and raises the
// claim cap accordingly. Returns the amount escrowed.
func (e *Engine) Topup(id uint64, caller [20]byte, extraClaims uint64) (*big.Int, error) {
	p, err := e.loadPlan(id)
	if err != nil {
		return nil, err
	}
	if caller != p.Merchant {
		return nil, ErrUnauthorized
	}
	if extraClaims == 0 {
		return nil, ErrInvalidParam
	}
	amount := new(big.Int).Mul(p.PayoutAmount, new(big.Int).SetUint64(extraClaims))
	if err := bank.Transfer(e.state, p.Merchant, e.vault, amount); err != nil {
		return nil, err
	}
	p.TotalFunded = new(big.Int).Add(p.TotalFunded, amount)
	p.RemainingBalance = new(big.Int).Add(p.RemainingBalance, amount)
	p.MaxClaims += extraClaims
	if err := e.storePlan(p); err != nil {
		return nil, err
	}
	e.emitTransfer(p.Merchant, e.vault, amount)
	e.emit(NewToppedUpEvent(p))
	return amount, nil
}

// Cancel closes the plan: the remaining escrow returns to the merchant, the
// claim cap collapses to the claims already made, and the record stays
// queryable. Returns the amount refunded.
func (e *Engine) Cancel(id uint64, caller [20]byte) (*big.Int, error) {
	p, err := e.loadPlan(id)
	if err != nil {
		return nil, err
	}
	if caller != p.Merchant {
		return nil, ErrUnauthorized
	}
	if p.RemainingBalance.Sign() == 0 {
		return nil, ErrPlanEmpty
	}
	refund := cloneBigInt(p.RemainingBalance)
	if err := bank.Transfer(e.state, e.vault, p.Merchant, refund); err != nil {
		return nil, err
	}
	p.RemainingBalance = big.NewInt(0)
	p.MaxClaims = p.TotalClaims
	if err := e.storePlan(p); err != nil {
		return nil, err
	}
	e.emitTransfer(e.vault, p.Merchant, refund)
	e.emit(NewCancelledEvent(p))
	return refund, nil
}

// Get returns the plan for the supplied id, reporting absence without error.
func (e *Engine) Get(id uint64) (*Plan, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.PlanGet(id)
}

// LatestPlanID returns the id counter: the number of plans created so far,
// which is also the id the next creation will receive.
func (e *Engine) LatestPlanID() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.PlanLatestID()
}

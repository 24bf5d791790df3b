package core

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"streamvault/core/events"
	"streamvault/core/genesis"
	"streamvault/core/state"
	"streamvault/core/types"
	"streamvault/native/airtime"
	"streamvault/native/stream"
)

// ErrHeightRegression is returned when a height update moves the clock
// backwards. The externally supplied height may repeat but never decrease.
var ErrHeightRegression = errors.New("core: block height must not decrease")

// Node owns the ledger state and serialises every state transition behind a
// single mutex, so call ordering alone determines the outcome. It is the
// emitter for both engines and fans their events out to feed subscribers.
type Node struct {
	mu     sync.Mutex
	state  *state.Manager
	stream *stream.Engine
	drip   *airtime.Engine
	height uint64

	feed eventFeed
}

// NewNode wires the engines to the state manager, applies the genesis
// allocation once, and restores the persisted block height.
func NewNode(manager *state.Manager, spec *genesis.Spec) (*Node, error) {
	if manager == nil {
		return nil, errors.New("core: state manager must not be nil")
	}
	if err := genesis.Apply(spec, manager); err != nil {
		return nil, err
	}
	height, err := manager.Height()
	if err != nil {
		return nil, err
	}

	n := &Node{state: manager, height: height}

	streamEngine := stream.NewEngine()
	streamEngine.SetState(manager)
	streamEngine.SetEmitter(n)
	n.stream = streamEngine

	dripEngine := airtime.NewEngine()
	dripEngine.SetState(manager)
	dripEngine.SetEmitter(n)
	n.drip = dripEngine

	return n, nil
}

// Emit records an engine event into the feed, tagged with the height the
// transition executed at. Implements events.Emitter.
func (n *Node) Emit(evt events.Event) {
	if n == nil || evt == nil {
		return
	}
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		n.feed.publish(&types.Event{Type: evt.EventType()}, n.height)
		return
	}
	n.feed.publish(carrier.Event(), n.height)
}

// Height returns the current block height.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// SetHeight advances the externally supplied block clock. Repeating the
// current height is allowed; moving backwards is not.
func (n *Node) SetHeight(height uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if height < n.height {
		return ErrHeightRegression
	}
	if err := n.state.SetHeight(height); err != nil {
		return err
	}
	advanced := height > n.height
	n.height = height
	if advanced {
		n.feed.publish(events.HeightChanged{Height: height}.Event(), height)
	}
	return nil
}

// GetBalance returns the spendable native balance of a principal.
func (n *Node) GetBalance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// StreamCreate opens a vesting stream funded by the sender.
func (n *Node) StreamCreate(sender, recipient [20]byte, initialBalance *big.Int, startBlock, stopBlock uint64, paymentPerBlock *big.Int) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.Create(sender, recipient, initialBalance, startBlock, stopBlock, paymentPerBlock)
}

// StreamRefuel adds escrow to an existing stream.
func (n *Node) StreamRefuel(id uint64, caller [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.Refuel(id, caller, amount)
}

// StreamWithdraw pays the recipient everything vested so far.
func (n *Node) StreamWithdraw(id uint64, caller [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.Withdraw(id, caller, n.height)
}

// StreamRefund returns the unvested remainder to the sender once the stream
// window has closed.
func (n *Node) StreamRefund(id uint64, caller [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.Refund(id, caller, n.height)
}

// StreamGet loads a stream record, reporting absence without error.
func (n *Node) StreamGet(id uint64) (*stream.Stream, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.Get(id)
}

// StreamBalanceOf reports the portion of a stream's escrow attributable to a
// principal at the current height.
func (n *Node) StreamBalanceOf(id uint64, principal [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.BalanceOf(id, principal, n.height), nil
}

// StreamLatestID returns the stream id counter.
func (n *Node) StreamLatestID() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stream.LatestStreamID()
}

// AirtimeCreate opens a recurring disbursement plan funded by the merchant.
func (n *Node) AirtimeCreate(merchant, customer [20]byte, phone, network [airtime.MetaLen]byte, payout *big.Int, interval, maxClaims uint64) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drip.Create(merchant, customer, phone, network, payout, interval, maxClaims, n.height)
}

// AirtimeClaim releases one payout to the plan customer.
func (n *Node) AirtimeClaim(id uint64, caller [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drip.Claim(id, caller, n.height)
}

// AirtimeTopup extends a plan with extra claims funded by the merchant.
func (n *Node) AirtimeTopup(id uint64, caller [20]byte, extraClaims uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drip.Topup(id, caller, extraClaims)
}

// AirtimeCancel refunds the remaining plan escrow to the merchant.
func (n *Node) AirtimeCancel(id uint64, caller [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drip.Cancel(id, caller)
}

// AirtimeGet loads a plan record, reporting absence without error.
func (n *Node) AirtimeGet(id uint64) (*airtime.Plan, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drip.Get(id)
}

// AirtimeLatestID returns the plan id counter.
func (n *Node) AirtimeLatestID() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drip.LatestPlanID()
}

// Events returns the feed entries recorded after the supplied cursor.
func (n *Node) Events(cursor string) []EventUpdate {
	return n.feed.since(cursor)
}

// EventsSubscribe registers a live subscriber for ledger events starting
// after the supplied cursor. The returned cancel function must be called to
// release the subscription; it is also invoked when ctx is done.
func (n *Node) EventsSubscribe(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate) {
	return n.feed.subscribe(ctx, cursor)
}

var _ events.Emitter = (*Node)(nil)

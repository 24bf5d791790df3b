package airtime

import (
	"math/big"
	"reflect"
	"strconv"
	"testing"

	"streamvault/core/types"
)

type mockState struct {
	plans    map[uint64]*Plan
	accounts map[[20]byte]*types.Account
	latestID uint64
}

func newMockState() *mockState {
	return &mockState{
		plans:    make(map[uint64]*Plan),
		accounts: make(map[[20]byte]*types.Account),
	}
}

func (m *mockState) PlanPut(p *Plan) error {
	sanitized, err := SanitizePlan(p)
	if err != nil {
		return err
	}
	m.plans[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) PlanGet(id uint64) (*Plan, bool, error) {
	p, ok := m.plans[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) PlanLatestID() (uint64, error) { return m.latestID, nil }

func (m *mockState) PlanSetLatestID(id uint64) error {
	m.latestID = id
	return nil
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[addr]; ok && acc.Balance != nil {
		return new(big.Int).Set(acc.Balance)
	}
	return big.NewInt(0)
}

func (m *mockState) snapshot() map[string]string {
	snap := make(map[string]string)
	for id, p := range m.plans {
		snap["plan|"+strconv.FormatUint(id, 10)] = p.RemainingBalance.String() + "/" +
			strconv.FormatUint(p.TotalClaims, 10) + "/" +
			strconv.FormatUint(p.MaxClaims, 10) + "/" +
			strconv.FormatUint(p.NextClaimBlock, 10)
	}
	for addr, acc := range m.accounts {
		snap[string(addr[:])+"|acct"] = acc.Balance.String()
	}
	return snap
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

var testVault = newTestAddress(0xEE)

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetVault(testVault)
	return engine
}

func testMeta(t *testing.T, label string) [MetaLen]byte {
	t.Helper()
	meta, err := MetaField(label)
	if err != nil {
		t.Fatalf("meta field %q: %v", label, err)
	}
	return meta
}

const microUnit = 1_000_000

func TestCreateEscrowsFullBudget(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	phone := testMeta(t, "0803AIRTIME")
	network := testMeta(t, "MTN")

	id, err := engine.Create(merchant, customer, phone, network, big.NewInt(2*microUnit), 6, 4, 1)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id != 0 {
		t.Fatalf("expected first plan id 0, got %d", id)
	}
	if state.latestID != 1 {
		t.Fatalf("expected latest id counter 1, got %d", state.latestID)
	}
	if got := state.balance(merchant); got.Cmp(big.NewInt(12*microUnit)) != 0 {
		t.Fatalf("merchant balance after create: %s", got)
	}
	if got := state.balance(testVault); got.Cmp(big.NewInt(8*microUnit)) != 0 {
		t.Fatalf("vault balance after create: %s", got)
	}

	p := state.plans[0]
	if p.Merchant != merchant || p.Customer != customer {
		t.Fatal("stored plan carries wrong principals")
	}
	if MetaString(p.Phone) != "0803AIRTIME" || MetaString(p.Network) != "MTN" {
		t.Fatalf("stored plan metadata: %q/%q", MetaString(p.Phone), MetaString(p.Network))
	}
	if p.NextClaimBlock != 7 {
		t.Fatalf("expected first claim at block 7, got %d", p.NextClaimBlock)
	}
	if p.TotalFunded.Cmp(big.NewInt(8*microUnit)) != 0 || p.RemainingBalance.Cmp(big.NewInt(8*microUnit)) != 0 {
		t.Fatalf("plan funding: %s/%s", p.TotalFunded, p.RemainingBalance)
	}

	id2, err := engine.Create(merchant, customer, phone, network, big.NewInt(microUnit), 10, 2, 1)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if id2 != 1 {
		t.Fatalf("expected second plan id 1, got %d", id2)
	}
}

func TestCreateValidation(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	phone := testMeta(t, "0803AIRTIME")
	network := testMeta(t, "MTN")

	cases := []struct {
		name      string
		payout    *big.Int
		interval  uint64
		maxClaims uint64
	}{
		{"zero payout", big.NewInt(0), 6, 4},
		{"nil payout", nil, 6, 4},
		{"zero interval", big.NewInt(microUnit), 0, 4},
		{"zero max claims", big.NewInt(microUnit), 6, 0},
	}
	for _, tc := range cases {
		if _, err := engine.Create(merchant, customer, phone, network, tc.payout, tc.interval, tc.maxClaims, 1); err != ErrInvalidParam {
			t.Fatalf("%s: expected ErrInvalidParam, got %v", tc.name, err)
		}
	}
	if len(state.plans) != 0 || state.latestID != 0 {
		t.Fatal("failed creates must not touch state")
	}
}

func TestCreateInsufficientFunds(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	state.setBalance(merchant, microUnit)
	engine := newTestEngine(state)

	phone := testMeta(t, "0803AIRTIME")
	network := testMeta(t, "MTN")

	if _, err := engine.Create(merchant, newTestAddress(0x02), phone, network, big.NewInt(2*microUnit), 6, 4, 1); err == nil {
		t.Fatal("expected create to fail on insufficient funds")
	}
	if state.latestID != 0 || len(state.plans) != 0 {
		t.Fatal("failed create must not allocate an id")
	}
	if got := state.balance(merchant); got.Cmp(big.NewInt(microUnit)) != 0 {
		t.Fatalf("merchant balance mutated: %s", got)
	}
}

func TestClaimAdvancesWindow(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, err := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(2*microUnit), 6, 4, 1)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// First claim becomes available interval blocks after creation.
	if _, err := engine.Claim(id, customer, 6); err != ErrNotReady {
		t.Fatalf("expected ErrNotReady before window, got %v", err)
	}

	paid, err := engine.Claim(id, customer, 7)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if paid.Cmp(big.NewInt(2*microUnit)) != 0 {
		t.Fatalf("expected payout 2000000, got %s", paid)
	}
	if got := state.balance(customer); got.Cmp(big.NewInt(2*microUnit)) != 0 {
		t.Fatalf("customer balance after claim: %s", got)
	}

	p := state.plans[id]
	if p.TotalClaims != 1 {
		t.Fatalf("total claims after claim: %d", p.TotalClaims)
	}
	if p.RemainingBalance.Cmp(big.NewInt(6*microUnit)) != 0 {
		t.Fatalf("remaining balance after claim: %s", p.RemainingBalance)
	}
	if p.NextClaimBlock != 13 {
		t.Fatalf("next claim block after claim: %d", p.NextClaimBlock)
	}

	// The window advanced, so repeating at the same height is refused.
	if _, err := engine.Claim(id, customer, 7); err != ErrNotReady {
		t.Fatalf("expected ErrNotReady on repeat, got %v", err)
	}
}

func TestClaimAuthorizationAndMissingPlan(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, _ := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(2*microUnit), 6, 4, 1)

	if _, err := engine.Claim(id, merchant, 100); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for merchant claim, got %v", err)
	}
	if _, err := engine.Claim(99, customer, 100); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimExhaustion(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, _ := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(2*microUnit), 6, 2, 1)

	if _, err := engine.Claim(id, customer, 7); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if _, err := engine.Claim(id, customer, 13); err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if _, err := engine.Claim(id, customer, 19); err != ErrPlanComplete {
		t.Fatalf("expected ErrPlanComplete after exhaustion, got %v", err)
	}

	p := state.plans[id]
	if p.TotalClaims != 2 || p.RemainingBalance.Sign() != 0 {
		t.Fatalf("exhausted plan state: claims=%d remaining=%s", p.TotalClaims, p.RemainingBalance)
	}
}

func TestTopup(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, _ := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(microUnit), 6, 4, 1)

	if _, err := engine.Topup(id, customer, 5); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.Topup(id, merchant, 0); err != ErrInvalidParam {
		t.Fatalf("expected ErrInvalidParam for zero topup, got %v", err)
	}
	if _, err := engine.Topup(99, merchant, 5); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	escrowed, err := engine.Topup(id, merchant, 5)
	if err != nil {
		t.Fatalf("topup failed: %v", err)
	}
	if escrowed.Cmp(big.NewInt(5*microUnit)) != 0 {
		t.Fatalf("expected 5000000 escrowed, got %s", escrowed)
	}

	p := state.plans[id]
	if p.MaxClaims != 9 {
		t.Fatalf("max claims after topup: %d", p.MaxClaims)
	}
	if p.TotalFunded.Cmp(big.NewInt(9*microUnit)) != 0 || p.RemainingBalance.Cmp(big.NewInt(9*microUnit)) != 0 {
		t.Fatalf("plan funding after topup: %s/%s", p.TotalFunded, p.RemainingBalance)
	}
	if got := state.balance(testVault); got.Cmp(big.NewInt(9*microUnit)) != 0 {
		t.Fatalf("vault balance after topup: %s", got)
	}
}

func TestCancelRefundsRemaining(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, _ := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(5*microUnit), 6, 3, 1)

	if _, err := engine.Cancel(id, customer); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.Cancel(99, merchant); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	refunded, err := engine.Cancel(id, merchant)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if refunded.Cmp(big.NewInt(15*microUnit)) != 0 {
		t.Fatalf("expected 15000000 refunded, got %s", refunded)
	}
	if got := state.balance(merchant); got.Cmp(big.NewInt(20*microUnit)) != 0 {
		t.Fatalf("merchant balance after cancel: %s", got)
	}

	p := state.plans[id]
	if p.RemainingBalance.Sign() != 0 {
		t.Fatalf("remaining balance after cancel: %s", p.RemainingBalance)
	}
	if p.MaxClaims != p.TotalClaims {
		t.Fatalf("cancelled plan claim cap: %d vs %d claims", p.MaxClaims, p.TotalClaims)
	}

	if _, err := engine.Cancel(id, merchant); err != ErrPlanEmpty {
		t.Fatalf("expected ErrPlanEmpty on second cancel, got %v", err)
	}
	// The cancelled record stays queryable.
	if _, ok, err := engine.Get(id); err != nil || !ok {
		t.Fatalf("cancelled plan must remain readable: ok=%v err=%v", ok, err)
	}
}

func TestCancelAfterClaims(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, _ := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(2*microUnit), 6, 4, 1)
	if _, err := engine.Claim(id, customer, 7); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	refunded, err := engine.Cancel(id, merchant)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if refunded.Cmp(big.NewInt(6*microUnit)) != 0 {
		t.Fatalf("expected 6000000 refunded, got %s", refunded)
	}
	// Escrow fully accounted for: one payout to the customer, the rest back.
	if got := state.balance(merchant); got.Cmp(big.NewInt(18*microUnit)) != 0 {
		t.Fatalf("merchant balance after cancel: %s", got)
	}
	if got := state.balance(customer); got.Cmp(big.NewInt(2*microUnit)) != 0 {
		t.Fatalf("customer balance after cancel: %s", got)
	}
	if got := state.balance(testVault); got.Sign() != 0 {
		t.Fatalf("vault must be empty after cancel, got %s", got)
	}

	if _, err := engine.Claim(id, customer, 13); err != ErrPlanComplete {
		t.Fatalf("expected ErrPlanComplete after cancel, got %v", err)
	}
}

func TestLatestPlanID(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	if got, err := engine.LatestPlanID(); err != nil || got != 0 {
		t.Fatalf("fresh counter: %d, %v", got, err)
	}
	if _, err := engine.Create(merchant, newTestAddress(0x02), testMeta(t, "0803"), testMeta(t, "MTN"), big.NewInt(microUnit), 6, 2, 1); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got, _ := engine.LatestPlanID(); got != 1 {
		t.Fatalf("counter after create: %d", got)
	}
}

func TestFailedCallsLeaveStateUntouched(t *testing.T) {
	state := newMockState()
	merchant := newTestAddress(0x01)
	customer := newTestAddress(0x02)
	state.setBalance(merchant, 20*microUnit)
	engine := newTestEngine(state)

	id, _ := engine.Create(merchant, customer, testMeta(t, "0803AIRTIME"), testMeta(t, "MTN"), big.NewInt(2*microUnit), 6, 4, 1)
	before := state.snapshot()

	_, _ = engine.Claim(id, customer, 2)
	_, _ = engine.Claim(id, merchant, 50)
	_, _ = engine.Topup(id, customer, 5)
	_, _ = engine.Cancel(id, customer)
	_, _ = engine.Claim(99, customer, 50)

	if !reflect.DeepEqual(before, state.snapshot()) {
		t.Fatal("failed calls mutated state")
	}
}

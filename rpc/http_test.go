package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"streamvault/core"
	"streamvault/core/state"
	"streamvault/crypto"
	"streamvault/native/stream"
	"streamvault/storage"
)

const testToken = "test-secret"

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testBech(fill byte) string {
	addr := testAddr(fill)
	return crypto.MustNewAddress(crypto.VaultPrefix, addr[:]).String()
}

func newTestServer(t *testing.T, balances map[[20]byte]int64) (*Server, *core.Node) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	for addr, amount := range balances {
		account, err := manager.GetAccount(addr)
		if err != nil {
			t.Fatalf("get account: %v", err)
		}
		account.Balance = big.NewInt(amount)
		if err := manager.PutAccount(addr, account); err != nil {
			t.Fatalf("put account: %v", err)
		}
	}
	node, err := core.NewNode(manager, nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	server := NewServer(node, RateLimit{})
	server.SetAuthToken(testToken)
	return server, node
}

type rpcCall struct {
	method string
	params interface{}
	token  string
}

func doCall(t *testing.T, server *Server, call rpcCall) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  call.method,
	}
	if call.params != nil {
		payload["params"] = []interface{}{call.params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if call.token != "" {
		req.Header.Set("Authorization", "Bearer "+call.token)
	}
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return recorder, resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestStreamLifecycleOverRPC(t *testing.T) {
	sender := testAddr(0x01)
	server, _ := newTestServer(t, map[[20]byte]int64{sender: 5000})

	_, resp := doCall(t, server, rpcCall{method: "stream_create", token: testToken, params: streamCreateParams{
		Sender:          testBech(0x01),
		Recipient:       testBech(0x02),
		InitialBalance:  "1000",
		StartBlock:      1,
		StopBlock:       100,
		PaymentPerBlock: "10",
	}})
	if resp.Error != nil {
		t.Fatalf("stream_create error: %+v", resp.Error)
	}
	var created idResult
	decodeResult(t, resp, &created)
	if created.ID != 0 {
		t.Fatalf("first stream id: %d", created.ID)
	}

	_, resp = doCall(t, server, rpcCall{method: "chain_setHeight", token: testToken, params: setHeightParams{Height: 11}})
	if resp.Error != nil {
		t.Fatalf("chain_setHeight error: %+v", resp.Error)
	}

	_, resp = doCall(t, server, rpcCall{method: "stream_withdraw", token: testToken, params: streamCallParams{
		ID:     0,
		Caller: testBech(0x02),
	}})
	if resp.Error != nil {
		t.Fatalf("stream_withdraw error: %+v", resp.Error)
	}
	var paid amountResult
	decodeResult(t, resp, &paid)
	if paid.Amount != "100" {
		t.Fatalf("withdrawn amount: %s", paid.Amount)
	}

	_, resp = doCall(t, server, rpcCall{method: "stream_get", params: streamQueryParams{ID: 0}})
	if resp.Error != nil {
		t.Fatalf("stream_get error: %+v", resp.Error)
	}
	var record streamResult
	decodeResult(t, resp, &record)
	if record.WithdrawnBalance != "100" || record.Sender != testBech(0x01) {
		t.Fatalf("stream record: %+v", record)
	}

	_, resp = doCall(t, server, rpcCall{method: "ledger_getBalance", params: testBech(0x02)})
	var balance amountResult
	decodeResult(t, resp, &balance)
	if balance.Amount != "100" {
		t.Fatalf("recipient balance: %s", balance.Amount)
	}
}

func TestAirtimeLifecycleOverRPC(t *testing.T) {
	merchant := testAddr(0x03)
	server, _ := newTestServer(t, map[[20]byte]int64{merchant: 20_000_000})

	_, resp := doCall(t, server, rpcCall{method: "airtime_create", token: testToken, params: airtimeCreateParams{
		Merchant:     testBech(0x03),
		Customer:     testBech(0x04),
		Phone:        "0803AIRTIME",
		Network:      "MTN",
		PayoutAmount: "2000000",
		Interval:     6,
		MaxClaims:    4,
	}})
	if resp.Error != nil {
		t.Fatalf("airtime_create error: %+v", resp.Error)
	}

	_, resp = doCall(t, server, rpcCall{method: "chain_setHeight", token: testToken, params: setHeightParams{Height: 7}})
	if resp.Error != nil {
		t.Fatalf("chain_setHeight error: %+v", resp.Error)
	}
	_, resp = doCall(t, server, rpcCall{method: "airtime_claim", token: testToken, params: airtimeCallParams{
		ID:     0,
		Caller: testBech(0x04),
	}})
	if resp.Error != nil {
		t.Fatalf("airtime_claim error: %+v", resp.Error)
	}
	var paid amountResult
	decodeResult(t, resp, &paid)
	if paid.Amount != "2000000" {
		t.Fatalf("claim amount: %s", paid.Amount)
	}

	_, resp = doCall(t, server, rpcCall{method: "airtime_get", params: airtimeQueryParams{ID: 0}})
	var record planResult
	decodeResult(t, resp, &record)
	if record.NextClaimBlock != 13 || record.TotalClaims != 1 || record.Phone != "0803AIRTIME" {
		t.Fatalf("plan record: %+v", record)
	}
}

func TestLedgerAbortCodesSurfaceInErrorData(t *testing.T) {
	sender := testAddr(0x01)
	server, node := newTestServer(t, map[[20]byte]int64{sender: 5000})

	if _, err := node.StreamCreate(sender, testAddr(0x02), big.NewInt(1000), 1, 100, big.NewInt(10)); err != nil {
		t.Fatalf("stream create: %v", err)
	}

	// A stranger withdrawing trips the unauthorized abort.
	_, resp := doCall(t, server, rpcCall{method: "stream_withdraw", token: testToken, params: streamCallParams{
		ID:     0,
		Caller: testBech(0x09),
	}})
	if resp.Error == nil || resp.Error.Code != codeLedgerAbort {
		t.Fatalf("expected ledger abort, got %+v", resp.Error)
	}
	data, ok := resp.Error.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("error data shape: %T", resp.Error.Data)
	}
	if code := data["ledgerCode"]; code != float64(stream.CodeUnauthorized) {
		t.Fatalf("ledger code: %v", code)
	}

	// Refunding an active stream trips the still-active abort.
	_, resp = doCall(t, server, rpcCall{method: "stream_refund", token: testToken, params: streamCallParams{
		ID:     0,
		Caller: testBech(0x01),
	}})
	if resp.Error == nil || resp.Error.Code != codeLedgerAbort {
		t.Fatalf("expected ledger abort, got %+v", resp.Error)
	}
	data = resp.Error.Data.(map[string]interface{})
	if code := data["ledgerCode"]; code != float64(stream.CodeStillActive) {
		t.Fatalf("ledger code: %v", code)
	}
}

func TestMutationsRequireAuth(t *testing.T) {
	server, _ := newTestServer(t, nil)

	for _, method := range []string{
		"stream_create", "stream_refuel", "stream_withdraw", "stream_refund",
		"airtime_create", "airtime_claim", "airtime_topup", "airtime_cancel",
		"chain_setHeight",
	} {
		recorder, resp := doCall(t, server, rpcCall{method: method, params: map[string]string{}})
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", method, recorder.Code)
		}
		if resp.Error == nil || resp.Error.Code != codeUnauthorized {
			t.Fatalf("%s: expected auth error, got %+v", method, resp.Error)
		}
	}

	// Reads stay open.
	_, resp := doCall(t, server, rpcCall{method: "chain_getHeight"})
	if resp.Error != nil {
		t.Fatalf("chain_getHeight must not require auth: %+v", resp.Error)
	}
}

func TestHeightRegressionRejected(t *testing.T) {
	server, node := newTestServer(t, nil)
	if err := node.SetHeight(10); err != nil {
		t.Fatalf("set height: %v", err)
	}

	recorder, resp := doCall(t, server, rpcCall{method: "chain_setHeight", token: testToken, params: setHeightParams{Height: 9}})
	if recorder.Code != http.StatusBadRequest || resp.Error == nil {
		t.Fatalf("expected rejection, got status=%d err=%+v", recorder.Code, resp.Error)
	}
}

func TestMethodNotFound(t *testing.T) {
	server, _ := newTestServer(t, nil)
	recorder, resp := doCall(t, server, rpcCall{method: "stream_destroy"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestRateLimiting(t *testing.T) {
	node, err := core.NewNode(state.NewManager(storage.NewMemDB()), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	server := NewServer(node, RateLimit{RequestsPerSecond: 1, Burst: 1})

	if _, resp := doCall(t, server, rpcCall{method: "chain_getHeight"}); resp.Error != nil {
		t.Fatalf("first call must pass: %+v", resp.Error)
	}
	recorder, resp := doCall(t, server, rpcCall{method: "chain_getHeight"})
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit error, got %+v", resp.Error)
	}
}

func TestGetEventsReplay(t *testing.T) {
	sender := testAddr(0x01)
	server, node := newTestServer(t, map[[20]byte]int64{sender: 5000})

	if _, err := node.StreamCreate(sender, testAddr(0x02), big.NewInt(1000), 1, 100, big.NewInt(10)); err != nil {
		t.Fatalf("stream create: %v", err)
	}

	_, resp := doCall(t, server, rpcCall{method: "ledger_getEvents", params: eventsParams{}})
	if resp.Error != nil {
		t.Fatalf("ledger_getEvents error: %+v", resp.Error)
	}
	var results []eventResult
	decodeResult(t, resp, &results)
	if len(results) != 2 {
		t.Fatalf("expected 2 events, got %d", len(results))
	}
	if results[1].Type != stream.EventTypeStreamCreated {
		t.Fatalf("event type: %s", results[1].Type)
	}

	_, resp = doCall(t, server, rpcCall{method: "ledger_getEvents", params: eventsParams{Cursor: results[1].Cursor}})
	var empty []eventResult
	decodeResult(t, resp, &empty)
	if len(empty) != 0 {
		t.Fatalf("expected no events after cursor, got %d", len(empty))
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t, nil)
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	server.Handler().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz status: %d", recorder.Code)
	}
	if body := recorder.Body.String(); body != `{"status":"ok"}` {
		t.Fatalf("healthz body: %s", body)
	}
}

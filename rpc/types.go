package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"streamvault/crypto"
	"streamvault/native/airtime"
	"streamvault/native/stream"
)

func parseParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("parameter object required")
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

func parsePrincipal(field, value string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return out, fmt.Errorf("%s address required", field)
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid %s address: %w", field, err)
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s: %q", field, value)
	}
	return amount, nil
}

func bech(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.VaultPrefix, addr[:]).String()
}

type streamResult struct {
	ID               uint64 `json:"id"`
	Sender           string `json:"sender"`
	Recipient        string `json:"recipient"`
	Balance          string `json:"balance"`
	WithdrawnBalance string `json:"withdrawnBalance"`
	PaymentPerBlock  string `json:"paymentPerBlock"`
	StartBlock       uint64 `json:"startBlock"`
	StopBlock        uint64 `json:"stopBlock"`
}

func streamResultFrom(s *stream.Stream) streamResult {
	return streamResult{
		ID:               s.ID,
		Sender:           bech(s.Sender),
		Recipient:        bech(s.Recipient),
		Balance:          s.Balance.String(),
		WithdrawnBalance: s.WithdrawnBalance.String(),
		PaymentPerBlock:  s.PaymentPerBlock.String(),
		StartBlock:       s.StartBlock,
		StopBlock:        s.StopBlock,
	}
}

type planResult struct {
	ID               uint64 `json:"id"`
	Merchant         string `json:"merchant"`
	Customer         string `json:"customer"`
	Phone            string `json:"phone"`
	Network          string `json:"network"`
	PayoutAmount     string `json:"payoutAmount"`
	Interval         uint64 `json:"interval"`
	NextClaimBlock   uint64 `json:"nextClaimBlock"`
	TotalFunded      string `json:"totalFunded"`
	RemainingBalance string `json:"remainingBalance"`
	TotalClaims      uint64 `json:"totalClaims"`
	MaxClaims        uint64 `json:"maxClaims"`
}

func planResultFrom(p *airtime.Plan) planResult {
	return planResult{
		ID:               p.ID,
		Merchant:         bech(p.Merchant),
		Customer:         bech(p.Customer),
		Phone:            airtime.MetaString(p.Phone),
		Network:          airtime.MetaString(p.Network),
		PayoutAmount:     p.PayoutAmount.String(),
		Interval:         p.Interval,
		NextClaimBlock:   p.NextClaimBlock,
		TotalFunded:      p.TotalFunded.String(),
		RemainingBalance: p.RemainingBalance.String(),
		TotalClaims:      p.TotalClaims,
		MaxClaims:        p.MaxClaims,
	}
}

type amountResult struct {
	Amount string `json:"amount"`
}

type idResult struct {
	ID uint64 `json:"id"`
}

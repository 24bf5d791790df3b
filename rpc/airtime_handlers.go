package rpc

import (
	"net/http"

	"streamvault/native/airtime"
)

type airtimeCreateParams struct {
	Merchant     string `json:"merchant"`
	Customer     string `json:"customer"`
	Phone        string `json:"phone"`
	Network      string `json:"network"`
	PayoutAmount string `json:"payoutAmount"`
	Interval     uint64 `json:"interval"`
	MaxClaims    uint64 `json:"maxClaims"`
}

func (s *Server) handleAirtimeCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params airtimeCreateParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	merchant, err := parsePrincipal("merchant", params.Merchant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	customer, err := parsePrincipal("customer", params.Customer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	phone, err := airtime.MetaField(params.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	network, err := airtime.MetaField(params.Network)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payout, err := parseAmount("payoutAmount", params.PayoutAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.node.AirtimeCreate(merchant, customer, phone, network, payout, params.Interval, params.MaxClaims)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, idResult{ID: id})
}

type airtimeCallParams struct {
	ID          uint64 `json:"id"`
	Caller      string `json:"caller"`
	ExtraClaims uint64 `json:"extraClaims,omitempty"`
}

func (s *Server) handleAirtimeClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params airtimeCallParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parsePrincipal("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	paid, err := s.node.AirtimeClaim(params.ID, caller)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: paid.String()})
}

func (s *Server) handleAirtimeTopup(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params airtimeCallParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parsePrincipal("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	escrowed, err := s.node.AirtimeTopup(params.ID, caller, params.ExtraClaims)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: escrowed.String()})
}

func (s *Server) handleAirtimeCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params airtimeCallParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parsePrincipal("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	refunded, err := s.node.AirtimeCancel(params.ID, caller)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: refunded.String()})
}

type airtimeQueryParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleAirtimeGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params airtimeQueryParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, ok, err := s.node.AirtimeGet(params.ID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, planResultFrom(record))
}

func (s *Server) handleAirtimeLatestID(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	latest, err := s.node.AirtimeLatestID()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, idResult{ID: latest})
}

package rpc

import (
	"net/http"
)

type streamCreateParams struct {
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	InitialBalance  string `json:"initialBalance"`
	StartBlock      uint64 `json:"startBlock"`
	StopBlock       uint64 `json:"stopBlock"`
	PaymentPerBlock string `json:"paymentPerBlock"`
}

func (s *Server) handleStreamCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params streamCreateParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sender, err := parsePrincipal("sender", params.Sender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parsePrincipal("recipient", params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := parseAmount("initialBalance", params.InitialBalance)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ratePerBlock, err := parseAmount("paymentPerBlock", params.PaymentPerBlock)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.node.StreamCreate(sender, recipient, balance, params.StartBlock, params.StopBlock, ratePerBlock)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, idResult{ID: id})
}

type streamCallParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
	Amount string `json:"amount,omitempty"`
}

func (s *Server) handleStreamRefuel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params streamCallParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parsePrincipal("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.StreamRefuel(params.ID, caller, amount); err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func (s *Server) handleStreamWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params streamCallParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parsePrincipal("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	paid, err := s.node.StreamWithdraw(params.ID, caller)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: paid.String()})
}

func (s *Server) handleStreamRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params streamCallParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parsePrincipal("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	refunded, err := s.node.StreamRefund(params.ID, caller)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: refunded.String()})
}

type streamQueryParams struct {
	ID        uint64 `json:"id"`
	Principal string `json:"principal,omitempty"`
}

func (s *Server) handleStreamGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params streamQueryParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, ok, err := s.node.StreamGet(params.ID)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, streamResultFrom(record))
}

func (s *Server) handleStreamBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params streamQueryParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	principal, err := parsePrincipal("principal", params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	entitled, err := s.node.StreamBalanceOf(params.ID, principal)
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: entitled.String()})
}

func (s *Server) handleStreamLatestID(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	latest, err := s.node.StreamLatestID()
	if err != nil {
		writeLedgerError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, idResult{ID: latest})
}

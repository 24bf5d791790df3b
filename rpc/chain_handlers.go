package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"streamvault/core"
)

type setHeightParams struct {
	Height uint64 `json:"height"`
}

type heightResult struct {
	Height uint64 `json:"height"`
}

func (s *Server) handleChainSetHeight(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setHeightParams
	if err := parseParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.node.SetHeight(params.Height); err != nil {
		if errors.Is(err, core.ErrHeightRegression) {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, heightResult{Height: params.Height})
}

func (s *Server) handleChainGetHeight(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, heightResult{Height: s.node.Height()})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "address parameter required", nil)
		return
	}
	var addrStr string
	if err := json.Unmarshal(req.Params[0], &addrStr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address parameter", err.Error())
		return
	}
	addr, err := parsePrincipal("account", addrStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.node.GetBalance(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, amountResult{Amount: balance.String()})
}

type eventsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type eventResult struct {
	Cursor     string            `json:"cursor"`
	Height     uint64            `json:"height"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func eventResultFrom(update core.EventUpdate) eventResult {
	out := eventResult{Cursor: update.Cursor, Height: update.Height}
	if update.Event != nil {
		out.Type = update.Event.Type
		out.Attributes = update.Event.Attributes
	}
	return out
}

func (s *Server) handleGetEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params eventsParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid cursor parameter", err.Error())
			return
		}
	}
	updates := s.node.Events(params.Cursor)
	results := make([]eventResult, 0, len(updates))
	for _, update := range updates {
		results = append(results, eventResultFrom(update))
	}
	writeResult(w, req.ID, results)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/adapter"
	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/fixedpoint"
)

type quoteResponse struct {
	Base      string `json:"base"`
	Quote     string `json:"quote"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

type bidAskResponse struct {
	Base     string `json:"base"`
	Quote    string `json:"quote"`
	AmountIn string `json:"amount_in"`
	Bid      string `json:"bid"`
	Ask      string `json:"ask"`
}

type adapterInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	VaultToken    string `json:"vault_token"`
	QuoteUnit     string `json:"quote_unit"`
	FeedDecimals  int    `json:"feed_decimals"`
	QuoteDecimals int    `json:"quote_decimals"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil && s.pool.HealthyEndpointCount() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no healthy RPC endpoints"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount, base, quote, ok := s.parseConversion(w, r)
	if !ok {
		return
	}

	a, err := s.registry.Lookup(base, quote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := a.Quote(r.Context(), amount, base, quote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		Base:      base.Hex(),
		Quote:     quote.Hex(),
		AmountIn:  amount.Dec(),
		AmountOut: out.Dec(),
	})
}

func (s *Server) handleBidAsk(w http.ResponseWriter, r *http.Request) {
	amount, base, quote, ok := s.parseConversion(w, r)
	if !ok {
		return
	}

	a, err := s.registry.Lookup(base, quote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	bid, ask, err := a.BidAsk(r.Context(), amount, base, quote)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bidAskResponse{
		Base:     base.Hex(),
		Quote:    quote.Hex(),
		AmountIn: amount.Dec(),
		Bid:      bid.Dec(),
		Ask:      ask.Dec(),
	})
}

func (s *Server) handleAdapters(w http.ResponseWriter, r *http.Request) {
	adapters := s.registry.List()
	infos := make([]adapterInfo, 0, len(adapters))
	for _, a := range adapters {
		infos = append(infos, adapterInfo{
			Name:          a.Name(),
			Description:   s.describe(r.Context(), a),
			VaultToken:    a.VaultToken().Hex(),
			QuoteUnit:     a.QuoteUnit().Hex(),
			FeedDecimals:  a.FeedDecimals(),
			QuoteDecimals: a.QuoteDecimals(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"adapters": infos})
}

// parseConversion extracts base, quote, and amount query parameters. On
// failure it writes the 400 itself and returns ok=false.
func (s *Server) parseConversion(w http.ResponseWriter, r *http.Request) (*uint256.Int, common.Address, common.Address, bool) {
	var zero common.Address

	baseRaw := r.URL.Query().Get("base")
	quoteRaw := r.URL.Query().Get("quote")
	amountRaw := r.URL.Query().Get("amount")

	if !common.IsHexAddress(baseRaw) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "base must be a hex address"})
		return nil, zero, zero, false
	}
	if !common.IsHexAddress(quoteRaw) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quote must be a hex address"})
		return nil, zero, zero, false
	}

	amount, err := uint256.FromDecimal(amountRaw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "amount must be an unsigned decimal integer"})
		return nil, zero, zero, false
	}

	return amount, common.HexToAddress(baseRaw), common.HexToAddress(quoteRaw), true
}

// writeError maps domain errors onto HTTP status codes. Upstream data
// problems are 502: the request was fine, the chain's answer was not.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, adapter.ErrPairNotSupported):
		status = http.StatusNotFound
	case errors.Is(err, fixedpoint.ErrOverflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, adapter.ErrInvalidAnswer), errors.Is(err, fixedpoint.ErrZeroPrice):
		status = http.StatusBadGateway
	}

	if s.logger != nil && status == http.StatusInternalServerError {
		s.logger.LogError(r.Context(), "request failed", err, "path", r.URL.Path)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

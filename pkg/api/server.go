package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypersigner/params"
	"github.com/uhyunpark/hypersigner/pkg/crypto"
	"github.com/uhyunpark/hypersigner/pkg/exchange"
)

// APIKeyHeader authenticates callers when a signer API key is configured
const APIKeyHeader = "X-Signer-Api-Key"

// SigningClient is the per-request capability that signs and submits
// venue actions for one account. Implemented by *exchange.Exchange;
// stubbed in tests.
type SigningClient interface {
	UpdateLeverage(ctx context.Context, leverage int, coin string, isCross bool) (json.RawMessage, error)
	Order(ctx context.Context, req exchange.OrderRequest, builder *exchange.BuilderInfo) (json.RawMessage, error)
	MarketOpen(ctx context.Context, coin string, isBuy bool, sz float64, px *float64, slippage float64, builder *exchange.BuilderInfo) (json.RawMessage, error)
	MarketClose(ctx context.Context, coin string, sz, px *float64, slippage float64, builder *exchange.BuilderInfo) (json.RawMessage, error)
	Cancel(ctx context.Context, coin string, oid int64) (json.RawMessage, error)
	EnableDexAbstraction(ctx context.Context) (json.RawMessage, error)
}

// ClientFactory derives a SigningClient from request-supplied key
// material. The derived client lives for exactly one request.
type ClientFactory func(agentPrivateKey, walletAddress string) (SigningClient, error)

// Server handles the REST API
type Server struct {
	cfg      params.Config
	router   *mux.Router
	log      *zap.SugaredLogger
	validate *validator.Validate
	factory  ClientFactory
}

// NewServer creates a new API server
func NewServer(cfg params.Config, logger *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:      cfg,
		router:   mux.NewRouter(),
		log:      logger,
		validate: validator.New(),
		factory:  defaultFactory(cfg),
	}

	s.setupRoutes()
	return s
}

// WithClientFactory swaps the signing-client factory. Used by tests to
// stub the venue transport.
func (s *Server) WithClientFactory(f ClientFactory) *Server {
	s.factory = f
	return s
}

// defaultFactory derives a real exchange client bound to the venue, the
// caller's wallet as account of record, and the configured dex routing.
func defaultFactory(cfg params.Config) ClientFactory {
	return func(agentPrivateKey, walletAddress string) (SigningClient, error) {
		signer, err := crypto.FromPrivateKeyHex(agentPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid agent private key: %w", err)
		}

		return exchange.New(signer, exchange.Options{
			BaseURL:        cfg.APIURL,
			AccountAddress: strings.ToLower(walletAddress),
			PerpDexs:       cfg.PerpDexs(),
			Timeout:        exchange.DefaultTimeout,
		}), nil
	}
}

func (s *Server) setupRoutes() {
	l1 := s.router.PathPrefix("/l1").Subrouter()
	l1.Use(s.requireAPIKey)

	l1.HandleFunc("/update_leverage", s.handleUpdateLeverage).Methods("POST")
	l1.HandleFunc("/order", s.handleLimitOrder).Methods("POST")
	l1.HandleFunc("/market_open", s.handleMarketOpen).Methods("POST")
	l1.HandleFunc("/market_close", s.handleMarketClose).Methods("POST")
	l1.HandleFunc("/cancel", s.handleCancel).Methods("POST")
	l1.HandleFunc("/enable_dex", s.handleEnableDex).Methods("POST")

	// Health check bypasses auth
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the full handler chain, CORS included
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", APIKeyHeader},
	})
	return c.Handler(s.router)
}

// requireAPIKey rejects /l1 requests whose credential header does not
// match the configured key. With no key configured the gate is open;
// callers deploying without one accept unauthenticated access.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.SignerAPIKey != "" && r.Header.Get(APIKeyHeader) != s.cfg.SignerAPIKey {
			respondError(w, http.StatusUnauthorized, "invalid signer API key", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleUpdateLeverage(w http.ResponseWriter, r *http.Request) {
	var req UpdateLeverageRequest
	if !s.decode(w, r, &req) {
		return
	}

	client, ok := s.client(w, req.BaseRequest)
	if !ok {
		return
	}

	raw, err := client.UpdateLeverage(r.Context(), *req.Leverage, req.Coin, req.IsCross)
	s.respondVenue(w, raw, err)
}

func (s *Server) handleLimitOrder(w http.ResponseWriter, r *http.Request) {
	var req LimitOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	client, ok := s.client(w, req.BaseRequest)
	if !ok {
		return
	}

	tif := exchange.TifGtc
	if req.TimeInForce != nil {
		tif = *req.TimeInForce
	}

	order := exchange.OrderRequest{
		Coin:       req.Coin,
		IsBuy:      *req.IsBuy,
		Sz:         *req.Size,
		LimitPx:    *req.LimitPrice,
		OrderType:  exchange.OrderType{Limit: &exchange.LimitOrderType{Tif: tif}},
		ReduceOnly: req.ReduceOnly,
	}

	raw, err := client.Order(r.Context(), order, s.cfg.Builder())
	s.respondVenue(w, raw, err)
}

func (s *Server) handleMarketOpen(w http.ResponseWriter, r *http.Request) {
	var req MarketOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	client, ok := s.client(w, req.BaseRequest)
	if !ok {
		return
	}

	slippage := exchange.DefaultSlippage
	if req.Slippage != nil {
		slippage = *req.Slippage
	}
	builder := s.cfg.Builder()

	s.log.Infow("market_open",
		"coin", req.Coin, "isBuy", *req.IsBuy, "size", *req.Size,
		"slippage", slippage, "builder", builder)

	raw, err := client.MarketOpen(r.Context(), req.Coin, *req.IsBuy, *req.Size, req.Price, slippage, builder)
	s.logResult("market_open", req.Coin, raw, err)
	s.respondVenue(w, raw, err)
}

func (s *Server) handleMarketClose(w http.ResponseWriter, r *http.Request) {
	var req MarketCloseRequest
	if !s.decode(w, r, &req) {
		return
	}

	client, ok := s.client(w, req.BaseRequest)
	if !ok {
		return
	}

	slippage := exchange.DefaultSlippage
	if req.Slippage != nil {
		slippage = *req.Slippage
	}
	builder := s.cfg.Builder()

	s.log.Infow("market_close",
		"coin", req.Coin, "size", req.Size,
		"slippage", slippage, "builder", builder)

	raw, err := client.MarketClose(r.Context(), req.Coin, req.Size, req.Price, slippage, builder)
	s.logResult("market_close", req.Coin, raw, err)
	s.respondVenue(w, raw, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	client, ok := s.client(w, req.BaseRequest)
	if !ok {
		return
	}

	s.log.Infow("cancel", "coin", req.Coin, "oid", *req.OrderID)

	raw, err := client.Cancel(r.Context(), req.Coin, *req.OrderID)
	s.logResult("cancel", req.Coin, raw, err)
	s.respondVenue(w, raw, err)
}

func (s *Server) handleEnableDex(w http.ResponseWriter, r *http.Request) {
	var req BaseRequest
	if !s.decode(w, r, &req) {
		return
	}

	client, ok := s.client(w, req)
	if !ok {
		return
	}

	raw, err := client.EnableDexAbstraction(r.Context())
	s.respondVenue(w, raw, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

// decode parses and validates the request body. Any failure rejects with
// 422 before a signing identity is constructed: no partial side effects.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid request body", err.Error())
		return false
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, len(verrs))
			for i, fe := range verrs {
				fields[i] = FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(ValidationErrorResponse{Error: "validation failed", Fields: fields})
			return false
		}
		respondError(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return false
	}

	return true
}

// client derives the per-request signing identity. The identity is used
// once by the calling handler and discarded with the request.
func (s *Server) client(w http.ResponseWriter, base BaseRequest) (SigningClient, bool) {
	client, err := s.factory(base.AgentPrivateKey, base.WalletAddress)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid agent private key", err.Error())
		return nil, false
	}
	return client, true
}

// respondVenue relays the venue outcome: raw body on success, the
// venue's own status and body on venue failure, 502 on transport failure.
func (s *Server) respondVenue(w http.ResponseWriter, raw json.RawMessage, err error) {
	if err != nil {
		var apiErr *exchange.APIError
		if errors.As(err, &apiErr) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(apiErr.StatusCode)
			w.Write(apiErr.Body)
			return
		}
		respondError(w, http.StatusBadGateway, "venue request failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (s *Server) logResult(op, coin string, raw json.RawMessage, err error) {
	if err != nil {
		s.log.Infow(op+"_failed", "coin", coin, "err", err)
		return
	}
	s.log.Infow(op+"_result", "coin", coin, "result", json.RawMessage(raw))
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

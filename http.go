package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/feeld/ledgerd/pkg/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/propagation"
)

// Server is the thin HTTP adaptor over the router and store. It owns no
// business logic of its own: every handler decodes, validates,
// delegates to a collaborator, and encodes the result.
type Server struct {
	router       *TransactionRouter
	store        *LedgerStore
	registry     *AccountSecretRegistry
	broadcaster  *ReceiptBroadcaster
	metrics      *Metrics
	logger       Logger
	validate     *validator.Validate
}

// NewServer wires a Server and returns its http.Handler.
func NewServer(router *TransactionRouter, store *LedgerStore, registry *AccountSecretRegistry, broadcaster *ReceiptBroadcaster, metrics *Metrics, logger Logger) http.Handler {
	s := &Server{
		router:      router,
		store:       store,
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger.WithName("http"),
		validate:    validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /accounts/{id}/balance", s.handleGetBalance)
	mux.HandleFunc("POST /transactions", s.handleSubmitTransaction)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetReceipt)
	mux.HandleFunc("GET /ledger/verify", s.handleVerifyChain)
	mux.HandleFunc("GET /ledger/events", s.handleListEvents)
	mux.HandleFunc("GET /ledger/stream", s.broadcaster.HandleStream)

	return s.withRequestLogger(s.withMetrics(mux))
}

// withMetrics wraps mux so every request is counted and timed by route
// pattern.
func (s *Server) withMetrics(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		mux.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.HTTPRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
		s.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// withRequestLogger attaches a request-scoped logger to every request's
// context: a fresh request id is generated, any W3C traceparent
// header the caller propagated is extracted into the context, and
// log.SetContextLogger binds the two together. If the extracted context
// carries a valid span context, downstream log.FromContext(r.Context())
// calls transparently get a SpanLogger that adds its traceId and spanId
// to every log line; the extracted span is the caller's remote,
// non-recording span, so no events are recorded on it. Otherwise they
// get a plain logger. Handlers retrieve it with
// log.FromContext instead of reaching for s.logger directly, so a
// request's log lines all carry the same requestID.
func (s *Server) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagation.TraceContext{}.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		requestLogger := s.logger.WithKV("requestID", uuid.NewString())
		ctx = log.SetContextLogger(ctx, requestLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createAccountRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Secret    string `json:"secret"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	secret, err := s.registry.Register(req.AccountID, req.Secret)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.CreateAccount(req.AccountID, secret); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"account_id": req.AccountID,
		"secret":     secret,
	})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	balance, err := s.store.Balance(accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    balance,
	})
}

// transactionRequest is the canonical wire form plus a top-level
// signature. id and created_at are required because both participate in
// the signed payload: a server-generated value could never match what
// the client signed.
type transactionRequest struct {
	ID        string            `json:"id" validate:"required"`
	From      string            `json:"from" validate:"required"`
	To        string            `json:"to" validate:"required"`
	Amount    string            `json:"amount" validate:"required"`
	Currency  string            `json:"currency"`
	CreatedAt time.Time         `json:"created_at" validate:"required"`
	Metadata  map[string]string `json:"metadata"`
	Signature string            `json:"signature" validate:"required"`
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	rawAmount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, r, Errorf("invalid amount %q: %s", req.Amount, err))
		return
	}
	amount, err := NewMoney(rawAmount, req.Currency)
	if err != nil {
		s.writeError(w, r, Errorf("%s", err))
		return
	}

	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	// The transaction is rebuilt field-for-field from the request rather
	// than re-stamped, so the canonical payload the verifier recomputes
	// is byte-identical to the one the client signed.
	tx := Transaction{
		ID:          req.ID,
		FromAccount: req.From,
		ToAccount:   req.To,
		Amount:      amount,
		CreatedAt:   req.CreatedAt,
		Metadata:    metadata,
	}

	signed := SignedTransaction{Transaction: tx, Signature: req.Signature}
	s.metrics.AuthVerifyTotal.Inc()

	receipt, err := s.router.Route(signed)
	if err != nil {
		if errors.Is(err, ErrUnknownSender) || IsLedgerError(err) {
			s.metrics.AuthVerifyFailTotal.Inc()
		}
		s.metrics.TransactionsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.writeError(w, r, err)
		return
	}

	if err := s.store.SaveReceipt(*receipt); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.TransactionsRoutedTotal.Inc()
	s.metrics.EventsAppendedTotal.Add(countNonZeroLegs(receipt))
	s.broadcaster.Broadcast(*receipt)
	writeJSON(w, http.StatusCreated, receipt)
}

// countNonZeroLegs reports how many of a receipt's three legs produced a
// ledger row; zero-amount legs are dropped by the store.
func countNonZeroLegs(receipt *ReceiptBody) float64 {
	var n float64
	for _, leg := range []Money{receipt.NetAmount, receipt.SafetyAmount, receipt.GrowthAmount} {
		if !leg.IsZero() {
			n++
		}
	}
	return n
}

func failureReason(err error) string {
	if IsLedgerError(err) {
		return "rejected"
	}
	return "internal"
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	receipt, err := s.store.GetReceipt(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	ok, reason, err := s.store.VerifyChain()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body := map[string]any{"ok": ok}
	if !ok {
		body["error"] = reason
	}
	writeJSON(w, http.StatusOK, body)
}

// handleListEvents serves GET /ledger/events, narrowed and paged by the
// optional account/offset/limit/sort query parameters. Note that a page
// of events is NOT suitable input to VerifyChain, which requires the
// full, genesis-anchored sequence; this endpoint is for browsing, not
// auditing.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query, err := parseEventQuery(r)
	if err != nil {
		s.writeError(w, r, Errorf("%s", err))
		return
	}

	events, err := s.store.ListEvents(query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// parseEventQuery reads account, offset, limit and sort from the
// request's query string into an *EventQuery, or returns nil if none
// were supplied.
func parseEventQuery(r *http.Request) (*EventQuery, error) {
	params := r.URL.Query()
	if params.Get("account") == "" && params.Get("offset") == "" && params.Get("limit") == "" && params.Get("sort") == "" {
		return nil, nil
	}

	query := EventQuery{Account: params.Get("account")}
	if raw := params.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q: %w", raw, err)
		}
		query.Offset = uint32(offset)
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q: %w", raw, err)
		}
		query.Limit = uint32(limit)
	}
	if raw := params.Get("sort"); raw != "" {
		sort := EventSort(raw)
		if sort != EventSortOldestFirst && sort != EventSortNewestFirst {
			return nil, fmt.Errorf("invalid sort %q: must be %q or %q", raw, EventSortOldestFirst, EventSortNewestFirst)
		}
		query.Sort = sort
	}
	return &query, nil
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, Errorf("invalid request body: %s", err))
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, r, Errorf("validation failed: %s", err))
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case IsLedgerError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.FromContext(r.Context()).Error("internal error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

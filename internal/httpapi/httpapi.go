// Package httpapi exposes the order-execution pipeline over HTTP
// (spec.md §6): order intake, a WebSocket upgrade for per-order status
// subscriptions, and cursor-paginated history. Routing is gorilla/mux the
// way the rest of the domain stack's ambient dependencies were picked — a
// library already present in the retrieval pack — generalized from the
// teacher's bare net/http ServeMux in cmd/server/main.go.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/param2610-cloud/crypto-order-execution-engine/internal/apperrors"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/history"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/hub"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/intake"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/metrics"
	"github.com/param2610-cloud/crypto-order-execution-engine/internal/order"
)

const requestIDHeader = "x-request-id"

// Server wires the intake service, history store, and subscriber hub
// behind the routes spec.md §6 defines.
type Server struct {
	intake  *intake.Service
	history history.Store
	hub     *hub.Hub
	metrics *metrics.Metrics
	logger  *zap.Logger

	corsOrigin string
	upgrader   websocket.Upgrader

	router *mux.Router
}

// Config configures a Server.
type Config struct {
	Intake     *intake.Service
	History    history.Store
	Hub        *hub.Hub
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	CORSOrigin string
}

// New builds a Server with every route registered.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}

	s := &Server{
		intake:     cfg.Intake,
		history:    cfg.History,
		hub:        cfg.Hub,
		metrics:    cfg.Metrics,
		logger:     logger,
		corsOrigin: corsOrigin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.buildRouter()
	return s
}

// ServeHTTP satisfies http.Handler, routing through the registered mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.corsMiddleware)

	api := r.PathPrefix("/api/orders").Subrouter()
	api.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)
	api.HandleFunc("/execute", s.handleSubscribe).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Route not found"})
	})

	return r
}

// requestIDMiddleware stamps every response with a request ID, generating
// one when the caller didn't supply it.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type executeRequest struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	Amount   uint64 `json:"amount"`
	Type     string `json:"orderType"`
}

// handleExecute implements POST /api/orders/execute (spec.md §6).
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Invalid payload",
			"issues":  []string{"body must be valid JSON"},
		})
		return
	}

	orderID, err := s.intake.Submit(r.Context(), order.Request{
		TokenIn:  req.TokenIn,
		TokenOut: req.TokenOut,
		Amount:   req.Amount,
		Type:     order.Type(req.Type),
	})
	if err != nil {
		var verr *intake.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Invalid payload",
				"issues":  verr.Issues,
			})
			return
		}
		s.logger.Error("intake submit failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"orderId": orderID,
		"status":  string(order.StatusPending),
	})
}

// handleSubscribe implements GET /api/orders/execute's WebSocket upgrade
// (spec.md §6).
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "orderId query param required"})
			return
		}
		closeWithReason(conn, websocket.ClosePolicyViolation, "orderId query param required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("subscription handler panicked", zap.Any("recover", rec))
			closeWithReason(conn, websocket.CloseInternalServerErr, "Internal server error")
		}
	}()

	sub := s.hub.Subscribe(orderID)
	defer s.hub.Unsubscribe(orderID, sub)

	// The server never expects inbound frames on this stream, but it must
	// still drain reads to notice the client going away (gorilla/websocket
	// surfaces a disconnect as a read error, not a write error).
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-disconnected:
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			if msg.Status.Terminal() {
				closeWithReason(conn, websocket.CloseNormalClosure, "order reached a terminal state")
				return
			}
		}
	}
}

func closeWithReason(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

// handleHistory implements GET /api/orders/history (spec.md §6).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	opts := history.ListOptions{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": "Invalid payload",
				"issues":  []string{"cursor must be an ISO-8601 timestamp"},
			})
			return
		}
		opts.Cursor = &cursor
	}

	page, err := s.history.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("history list failed", zap.Error(err), zap.String("kind", string(apperrors.KindOf(err))))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		return
	}

	var nextCursor any
	if page.NextCursor != nil {
		nextCursor = page.NextCursor.Format(time.RFC3339Nano)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": page.Data,
		"pagination": map[string]any{
			"limit":      opts.ClampLimit(),
			"nextCursor": nextCursor,
			"hasMore":    page.HasMore,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

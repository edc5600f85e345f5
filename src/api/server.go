package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"order-matching-engine/src/engine"
	"order-matching-engine/src/feed"
	"order-matching-engine/src/logger"
)

// Server exposes a MatchingEngine over HTTP.
type Server struct {
	eng     *engine.MatchingEngine
	router  chi.Router
	log     *logger.Logger
	metrics *feed.Metrics
	hub     *feed.Hub
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics counts submissions and cancels and serves /metrics.
func WithMetrics(m *feed.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHub serves the live trade stream on /ws/trades.
func WithHub(h *feed.Hub) Option {
	return func(s *Server) { s.hub = h }
}

func NewServer(eng *engine.MatchingEngine, opts ...Option) *Server {
	s := &Server{eng: eng, router: chi.NewRouter(), log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// ServeHTTP allows Server to satisfy http.Handler, delegating to its router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	if s.hub != nil {
		r.Handle("/ws/trades", s.hub)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/books", s.listBooks)
		r.Post("/books", s.createBook)
		r.Post("/orders", s.createOrder)
		r.Get("/orders/{id}", s.getOrder)
		r.Delete("/orders/{id}", s.cancelOrder)
		r.Get("/orderbook/{symbol}", s.getOrderBook)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logger.NewField("method", r.Method),
			logger.NewField("path", r.URL.Path),
			logger.NewField("status", ww.Status()),
			logger.NewField("duration", time.Since(start)),
			logger.NewField("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type createBookRequest struct {
	Symbol string `json:"symbol"`
}

type bookSummary struct {
	Symbol     string           `json:"symbol"`
	BestBid    *decimal.Decimal `json:"best_bid"`
	BestAsk    *decimal.Decimal `json:"best_ask"`
	Orders     int              `json:"orders"`
	LastUpdate *time.Time       `json:"last_update"`
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid json")
		return
	}
	symbol := strings.TrimSpace(req.Symbol)
	if err := s.eng.AddOrderBook(symbol); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"symbol": symbol})
}

func (s *Server) listBooks(w http.ResponseWriter, _ *http.Request) {
	books := s.eng.OrderBooks()
	out := make([]bookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, summarize(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": out})
}

// summarize reports empty sides and untouched books as null.
func summarize(b *engine.OrderBook) bookSummary {
	sum := bookSummary{Symbol: b.Symbol(), Orders: b.Len()}
	if bid := b.BestBid(); !bid.Equal(engine.NoBid) {
		sum.BestBid = &bid
	}
	if ask := b.BestAsk(); !ask.Equal(engine.NoAsk) {
		sum.BestAsk = &ask
	}
	if ts := b.LastUpdate(); !ts.IsZero() {
		sum.LastUpdate = &ts
	}
	return sum
}

type createOrderRequest struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Type     string          `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Quantity uint64          `json:"quantity"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid json")
		return
	}
	otype, err := parseOrderType(req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order: "+err.Error())
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order: "+err.Error())
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	var trades []engine.Trade
	switch otype {
	case engine.Limit:
		trades, err = s.eng.PlaceLimitOrder(req.Symbol, id, side, req.Quantity, req.Price)
	case engine.Market:
		trades, err = s.eng.PlaceMarketOrder(req.Symbol, id, side, req.Quantity)
	}
	s.observeOrder(req.Symbol, otype, err)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	var filled uint64
	for _, t := range trades {
		filled += t.Size
	}
	if trades == nil {
		trades = []engine.Trade{}
	}

	if otype == engine.Market {
		status := engine.StatusFilled
		switch {
		case filled == 0:
			status = engine.StatusCancelled
		case filled < req.Quantity:
			status = engine.StatusPartiallyFilled
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"order_id":           id,
			"status":             status,
			"filled_quantity":    filled,
			"discarded_quantity": req.Quantity - filled,
			"trades":             trades,
		})
		return
	}

	switch {
	case filled == 0:
		writeJSON(w, http.StatusCreated, map[string]any{
			"order_id": id,
			"status":   engine.StatusNew,
			"message":  "Order added to book",
		})
	case filled < req.Quantity:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"order_id":           id,
			"status":             engine.StatusPartiallyFilled,
			"filled_quantity":    filled,
			"remaining_quantity": req.Quantity - filled,
			"trades":             trades,
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"order_id":        id,
			"status":          engine.StatusFilled,
			"filled_quantity": filled,
			"trades":          trades,
		})
	}
}

func (s *Server) observeOrder(symbol string, typ engine.OrderType, err error) {
	if s.metrics == nil {
		return
	}
	result := "accepted"
	switch {
	case errors.Is(err, engine.ErrUnknownSymbol):
		result = "unknown_symbol"
	case errors.Is(err, engine.ErrDuplicateOrderID):
		result = "duplicate_id"
	case err != nil:
		result = "invalid"
	}
	s.metrics.ObserveOrder(symbol, typ, result)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, ok := s.eng.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":           o.ID,
		"symbol":             o.Symbol,
		"side":               o.Side,
		"type":               o.Type,
		"price":              o.Price,
		"quantity":           o.Size,
		"filled_quantity":    o.FilledSize,
		"remaining_quantity": o.Remaining(),
		"status":             o.Status,
		"timestamp":          o.Timestamp,
	})
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok := s.eng.CancelOrder(id)
	if s.metrics != nil {
		s.metrics.ObserveCancel(ok)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": id,
		"status":   engine.StatusCancelled,
	})
}

func (s *Server) getOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	depth := 0
	if p := r.URL.Query().Get("depth"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid depth")
			return
		}
		depth = v
	}

	book, ok := s.eng.OrderBook(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown symbol")
		return
	}
	bids, asks := book.Depth(depth)
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"timestamp": time.Now().UnixMilli(),
		"bids":      bids,
		"asks":      asks,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateOrderID):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func parseSide(s string) (engine.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(engine.Buy):
		return engine.Buy, nil
	case string(engine.Sell):
		return engine.Sell, nil
	default:
		return "", errors.New("invalid side; must be BUY or SELL")
	}
}

func parseOrderType(s string) (engine.OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(engine.Limit):
		return engine.Limit, nil
	case string(engine.Market):
		return engine.Market, nil
	default:
		return "", errors.New("invalid type; must be LIMIT or MARKET")
	}
}

func decodeJSON(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError writes the simple {"error": message} body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

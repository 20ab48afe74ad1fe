// Package rest exposes the payment backend operations over HTTP.
package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	portalpay "github.com/portalpay/portalpay"
	"github.com/portalpay/portalpay/balance"
)

// DefaultBackendName is the registry name handlers resolve when the request
// does not name a backend explicitly.
const DefaultBackendName = "simnet"

const defaultReplayTTL = 5 * time.Minute

// Server holds the handler dependencies
type Server struct {
	registry       *portalpay.Registry
	replay         *replayCache
	log            *slog.Logger
	defaultBackend string
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the structured logger used by the handlers
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithDefaultBackend sets the backend name resolved when a request omits one
func WithDefaultBackend(name string) Option {
	return func(s *Server) {
		s.defaultBackend = name
	}
}

// WithReplayTTL sets how long executed payment responses are replayable
func WithReplayTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.replay = newReplayCache(ttl)
	}
}

// NewServer creates the HTTP server for the given backend registry
func NewServer(registry *portalpay.Registry, opts ...Option) *Server {
	s := &Server{
		registry:       registry,
		replay:         newReplayCache(defaultReplayTTL),
		log:            slog.Default(),
		defaultBackend: DefaultBackendName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the gin engine with all payment routes mounted
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	v1.GET("/settings", s.getSettings)
	v1.POST("/invoices", s.createInvoice)
	v1.GET("/invoices/:hash", s.checkIncoming)
	v1.POST("/quotes", s.quotePayment)
	v1.POST("/payments", s.makePayment)
	v1.GET("/payments/:hash", s.checkOutgoing)
	v1.GET("/balances", s.getBalances)
	v1.GET("/events", s.streamEvents)
	v1.GET("/events/active", s.eventsActive)
	v1.DELETE("/events", s.cancelEvents)

	return router
}

// backend resolves the target backend from the unit and optional backend
// query/body parameters
func (s *Server) backend(c *gin.Context, unitStr string) (portalpay.MintPayment, portalpay.CurrencyUnit, bool) {
	unit, err := portalpay.ParseCurrencyUnit(unitStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, "", false
	}

	name := c.Query("backend")
	if name == "" {
		name = s.defaultBackend
	}
	backend := s.registry.Lookup(unit, name)
	if backend == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no backend for unit " + unit.String()})
		return nil, "", false
	}
	return backend, unit, true
}

// writePaymentError maps the error taxonomy onto HTTP statuses: permanent
// request-shape failures are 400s, missing records are 404s so callers can
// poll-and-retry, everything else is a 500.
func (s *Server) writePaymentError(c *gin.Context, err error) {
	code := portalpay.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case portalpay.ErrCodeUnsupportedMethod, portalpay.ErrCodeAmountUnknown:
		status = http.StatusBadRequest
	case portalpay.ErrCodePaymentNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error("payment operation failed", "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func (s *Server) getSettings(c *gin.Context) {
	backend, _, ok := s.backend(c, c.Query("unit"))
	if !ok {
		return
	}

	settings, err := backend.GetSettings(c.Request.Context())
	if err != nil {
		s.writePaymentError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", settings)
}

type createInvoiceRequest struct {
	Unit        string  `json:"unit" binding:"required"`
	Amount      uint64  `json:"amount"`
	Description string  `json:"description"`
	UnixExpiry  *uint64 `json:"unix_expiry"`
}

func (s *Server) createInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backend, unit, ok := s.backend(c, req.Unit)
	if !ok {
		return
	}

	created, err := backend.CreateIncomingPaymentRequest(c.Request.Context(), unit, portalpay.Bolt11IncomingOptions{
		Amount:      portalpay.Amount(req.Amount),
		Description: req.Description,
		UnixExpiry:  req.UnixExpiry,
	})
	if err != nil {
		s.writePaymentError(c, err)
		return
	}

	s.log.Info("incoming payment request created",
		"unit", unit, "amount", req.Amount, "lookup_id", created.RequestLookupID.String())
	c.JSON(http.StatusCreated, created)
}

func (s *Server) checkIncoming(c *gin.Context) {
	backend, _, ok := s.backend(c, c.Query("unit"))
	if !ok {
		return
	}

	hash, err := portalpay.PaymentHashFromHex(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	statuses, err := backend.CheckIncomingPaymentStatus(c.Request.Context(), portalpay.NewHashIdentifier(hash))
	if err != nil {
		s.writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlements": statuses})
}

type payRequest struct {
	Unit       string  `json:"unit" binding:"required"`
	Invoice    string  `json:"invoice" binding:"required"`
	AmountMsat *uint64 `json:"amount_msat"`
	MaxFeeMsat *uint64 `json:"max_fee_msat"`
}

func (r payRequest) outgoingOptions() portalpay.Bolt11OutgoingOptions {
	options := portalpay.Bolt11OutgoingOptions{Invoice: r.Invoice}
	if r.AmountMsat != nil {
		options.MeltOptions = &portalpay.MeltOptions{AmountMsat: portalpay.Amount(*r.AmountMsat)}
	}
	if r.MaxFeeMsat != nil {
		fee := portalpay.Amount(*r.MaxFeeMsat)
		options.MaxFeeAmount = &fee
	}
	return options
}

func (s *Server) quotePayment(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backend, unit, ok := s.backend(c, req.Unit)
	if !ok {
		return
	}

	quote, err := backend.GetPaymentQuote(c.Request.Context(), unit, req.outgoingOptions())
	if err != nil {
		s.writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (s *Server) makePayment(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := replayKey(body)
	status, cached, done := s.replay.checkAndMark(key)
	switch status {
	case replayCached:
		c.Header("X-Idempotent-Replay", "true")
		c.JSON(http.StatusOK, cached)
		return
	case replayInFlight:
		result, err := s.replay.waitForResult(c.Request.Context(), key, done)
		if err != nil {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
			return
		}
		if result == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "concurrent payment attempt failed, retry"})
			return
		}
		c.Header("X-Idempotent-Replay", "true")
		c.JSON(http.StatusOK, result)
		return
	}

	var req payRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.replay.fail(key, done)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Unit == "" || req.Invoice == "" {
		s.replay.fail(key, done)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit and invoice are required"})
		return
	}

	backend, unit, ok := s.backend(c, req.Unit)
	if !ok {
		s.replay.fail(key, done)
		return
	}

	paid, err := backend.MakePayment(c.Request.Context(), unit, req.outgoingOptions())
	if err != nil {
		s.replay.fail(key, done)
		s.writePaymentError(c, err)
		return
	}
	s.replay.complete(key, paid, done)

	s.log.Info("outgoing payment executed",
		"unit", unit, "lookup_id", paid.PaymentLookupID.String(), "total_spent", uint64(paid.TotalSpent))
	c.JSON(http.StatusOK, paid)
}

func (s *Server) checkOutgoing(c *gin.Context) {
	backend, _, ok := s.backend(c, c.Query("unit"))
	if !ok {
		return
	}

	hash, err := portalpay.PaymentHashFromHex(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := backend.CheckOutgoingPayment(c.Request.Context(), portalpay.NewHashIdentifier(hash))
	if err != nil {
		s.writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getBalances(c *gin.Context) {
	c.JSON(http.StatusOK, balance.Snapshot(s.registry))
}

// streamEvents bridges the backend event stream to server-sent events. The
// stream ends when the backend terminates it or the client disconnects.
func (s *Server) streamEvents(c *gin.Context) {
	backend, _, ok := s.backend(c, c.Query("unit"))
	if !ok {
		return
	}

	events, err := backend.WaitPaymentEvent(c.Request.Context())
	if err != nil {
		s.writePaymentError(c, err)
		return
	}

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(event.Kind), event.Payment)
		return true
	})
}

func (s *Server) eventsActive(c *gin.Context) {
	backend, _, ok := s.backend(c, c.Query("unit"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": backend.IsWaitInvoiceActive()})
}

func (s *Server) cancelEvents(c *gin.Context) {
	backend, _, ok := s.backend(c, c.Query("unit"))
	if !ok {
		return
	}
	backend.CancelWaitInvoice()
	c.Status(http.StatusNoContent)
}

// RenderBalances writes the plain-text balance breakdown, used by the daemon
// on shutdown.
func (s *Server) RenderBalances(w io.Writer) error {
	return balance.Render(w, balance.Snapshot(s.registry))
}

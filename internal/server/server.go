package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"commerce-backend/internal/config"
	"commerce-backend/internal/infrastructure/tamara"
	"commerce-backend/internal/logger"
	"commerce-backend/internal/metrics"
	"commerce-backend/internal/usecase"
)

type Server struct {
	cfg      config.Config
	orders   *usecase.OrderService
	payments *usecase.PaymentService
	notifier usecase.Notifier
	metrics  *metrics.Metrics
	router   *gin.Engine
}

func New(cfg config.Config, orders *usecase.OrderService, payments *usecase.PaymentService, notifier usecase.Notifier, m *metrics.Metrics) *Server {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:      cfg,
		orders:   orders,
		payments: payments,
		notifier: notifier,
		metrics:  m,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.record())
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.POST("/webhooks/tamara", s.handleTamaraWebhook)

	api := s.router.Group("/api")
	api.POST("/orders", s.handleCreateOrder)
	api.GET("/orders/:id", s.handleGetOrder)
	api.POST("/checkout", s.auth(), s.handleCreateCheckout)
	api.POST("/orders/:id/authorize", s.auth(), s.handleAuthorize)
	api.POST("/orders/:id/capture", s.auth(), s.handleCapture)
	api.POST("/orders/:id/refund", s.auth(), s.handleRefund)
	api.POST("/orders/:id/cancel", s.auth(), s.handleCancel)
	api.GET("/orders/:id/sync", s.auth(), s.handleSync)
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		s.metrics.Requests.WithLabelValues(handler, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		s.metrics.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// auth produces an identity or rejects. An empty secret disables it for
// development, with a logged warning each time.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.JWTSecret == "" {
			logger.Warn("request auth skipped: no jwt secret configured", nil)
			c.Next()
			return
		}
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" || token == c.GetHeader("Authorization") {
			s.err(c, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			c.Abort()
			return
		}
		parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			return []byte(s.cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !parsed.Valid {
			s.err(c, http.StatusUnauthorized, "Unauthorized", "invalid token")
			c.Abort()
			return
		}
		if m, ok := parsed.Claims.(jwt.MapClaims); ok {
			if uid, _ := m["user_id"].(string); uid != "" {
				c.Set("user_id", uid)
			}
		}
		c.Next()
	}
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req usecase.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	o, err := s.orders.Create(req)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) handleGetOrder(c *gin.Context) {
	o, err := s.orders.Get(c.Param("id"))
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleCreateCheckout(c *gin.Context) {
	var req tamara.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	session, err := s.payments.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkoutUrl": session.CheckoutURL,
		"session":     session,
	})
}

func (s *Server) handleTamaraWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.err(c, http.StatusBadRequest, "BadRequest", "unreadable body")
		return
	}
	res, err := s.payments.ProcessWebhook(c.Request.Context(), raw, webhookCredential(c))
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues("unknown", webhookOutcome(err)).Inc()
		s.writeErr(c, err)
		return
	}
	s.metrics.WebhookEvents.WithLabelValues(res.EventType, "applied").Inc()

	// Customer email is a side effect of the paid transition, fired without
	// blocking the provider's delivery; the provider retries on slow 2xx.
	if !res.PreviousPaid && res.Order.IsPaid && res.Order.CustomerEmail != "" {
		order := res.Order
		go func() {
			if err := s.notifier.Notify(order.CustomerEmail, "order-paid", map[string]any{
				"orderNumber": order.OrderNumber,
				"total":       order.TotalPrice,
			}); err != nil {
				logger.Error("paid notification failed", map[string]any{
					"orderId": order.OrderID,
					"error":   err.Error(),
				})
			}
		}()
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"order_id": res.Order.OrderID,
		"status":   res.NewStatus.PaymentStatus,
	})
}

func (s *Server) handleAuthorize(c *gin.Context) {
	o, err := s.payments.Authorize(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleCapture(c *gin.Context) {
	var req tamara.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	o, err := s.payments.Capture(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleRefund(c *gin.Context) {
	var req tamara.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	o, err := s.payments.Refund(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleCancel(c *gin.Context) {
	var req tamara.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		s.err(c, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	o, err := s.payments.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) handleSync(c *gin.Context) {
	res, err := s.payments.SyncOrderStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":        res.Order,
		"remoteStatus": res.RemoteStatus,
	})
}

// webhookCredential extracts the provider's proof of origin: a bearer token
// or an HMAC signature header.
func webhookCredential(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return c.GetHeader("X-Tamara-Signature")
}

func webhookOutcome(err error) string {
	var ae *tamara.AuthenticityError
	var nf *usecase.OrderNotFoundError
	switch {
	case errors.As(err, &ae):
		return "rejected"
	case errors.As(err, &nf):
		return "unknown_order"
	default:
		return "error"
	}
}

// writeErr maps the error taxonomy to HTTP statuses. Provider payloads and
// internal detail stay in operator logs, never in customer responses.
func (s *Server) writeErr(c *gin.Context, err error) {
	var ve *usecase.ValidationError
	var nf *usecase.OrderNotFoundError
	var np *usecase.NotAPaymentOrderError
	var br usecase.BadRequestError
	var ae *tamara.AuthenticityError
	var ce *tamara.ConfigError
	var ge *tamara.APIError
	switch {
	case errors.As(err, &ve):
		s.err(c, http.StatusBadRequest, "ValidationError", ve.Error())
	case errors.As(err, &br):
		s.err(c, http.StatusBadRequest, "BadRequest", br.Error())
	case errors.As(err, &ae):
		s.err(c, http.StatusUnauthorized, "Unauthorized", "webhook authenticity check failed")
	case errors.As(err, &nf):
		s.err(c, http.StatusNotFound, "NotFound", nf.Error())
	case errors.As(err, &np):
		s.err(c, http.StatusBadRequest, "NotAPaymentOrder", np.Error())
	case errors.As(err, &ce):
		logger.Error("payment provider misconfigured", map[string]any{"missing": ce.Name})
		s.err(c, http.StatusInternalServerError, "ConfigurationError", "payment provider not configured")
	case errors.As(err, &ge):
		s.writeGatewayErr(c, ge)
	default:
		logger.Error("unhandled error", map[string]any{"error": err.Error()})
		s.err(c, http.StatusInternalServerError, "ServerError", "internal error")
	}
}

func (s *Server) writeGatewayErr(c *gin.Context, ge *tamara.APIError) {
	switch {
	case ge.EdgeBlock:
		logger.Error("provider edge block", map[string]any{"status": ge.Status, "body": ge.Body})
		s.err(c, http.StatusInternalServerError, "EdgeBlock", "payment provider rejected our network traffic; check egress and storefront headers")
	case ge.Transient:
		logger.Warn("provider unavailable", map[string]any{"status": ge.Status, "error": ge.Message})
		s.err(c, http.StatusServiceUnavailable, "ProviderUnavailable", "payment temporarily unavailable")
	default:
		status := ge.Status
		if status < 400 || status > 499 {
			status = http.StatusBadGateway
		}
		s.err(c, status, "GatewayError", ge.Message)
	}
}

func (s *Server) err(c *gin.Context, status int, code, msg string) {
	reqID := c.GetHeader("Idempotency-Key")
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":      code,
			"message":   msg,
			"requestId": reqID,
		},
	})
}

// Package api contains the HTTP handlers and routing for the payment bridge.
package api

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/paybridge/paybridge/internal/domain"
	"github.com/paybridge/paybridge/internal/order"
	"github.com/paybridge/paybridge/internal/signature"
)

// Handler contains the HTTP handlers for the payment API.
type Handler struct {
	orders      *order.Service
	frontendURL string
}

// NewHandler creates a new API handler with the order lifecycle service.
func NewHandler(orders *order.Service, frontendURL string) *Handler {
	return &Handler{
		orders:      orders,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// InitiatePayment handles POST /api/payment
// Receives the merchant platform's signed form post, creates or finds the
// order and redirects the customer to the gateway selection page.
func (h *Handler) InitiatePayment(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid form body",
			Code:    "INVALID_FORM",
		})
		return
	}

	params := make(signature.Params, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	ord, err := h.orders.Initiate(c.Request.Context(), params)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.Redirect(http.StatusFound, fmt.Sprintf("%s/payment/select/%s", h.frontendURL, ord.ID))
}

// OrderResponse represents an order with its recent transaction events.
type OrderResponse struct {
	Success bool                      `json:"success"`
	Order   *domain.Order             `json:"order"`
	Events  []domain.TransactionEvent `json:"events"`
}

// GetOrder handles GET /api/orders/:order_id
func (h *Handler) GetOrder(c *gin.Context) {
	ord, events, err := h.orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, OrderResponse{
		Success: true,
		Order:   ord,
		Events:  events,
	})
}

// ProcessRequest represents the JSON body for the gateway selection endpoint.
type ProcessRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Gateway string `json:"gateway" binding:"required"`
	Country string `json:"country"`
}

// ProcessResponse represents the response from the gateway selection endpoint.
type ProcessResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	Gateway     string `json:"gateway"`
	RedirectURL string `json:"redirect_url"`
}

// ProcessPayment handles POST /api/payment/process
// Starts a checkout with the selected gateway and returns the URL the
// customer must be redirected to.
func (h *Handler) ProcessPayment(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Invalid request body: " + err.Error(),
			Code:    "VALIDATION_ERROR",
		})
		return
	}

	ord, redirectURL, err := h.orders.SelectGateway(c.Request.Context(), req.OrderID, req.Gateway, req.Country)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		Success:     true,
		OrderID:     ord.ID,
		Gateway:     ord.Gateway,
		RedirectURL: redirectURL,
	})
}

// callbackOutcomes maps the return-URL path segment onto a canonical outcome.
var callbackOutcomes = map[string]domain.Outcome{
	"success": domain.OutcomeCompleted,
	"cancel":  domain.OutcomeCancelled,
	"pending": domain.OutcomePending,
}

// GatewayReturn handles GET /api/callback/:gateway/:result/:order_id
// The customer lands here when the gateway sends them back. The order is
// resolved and the customer is forwarded to the shop's own return page.
func (h *Handler) GatewayReturn(c *gin.Context) {
	gatewayName := c.Param("gateway")
	result := c.Param("result")
	orderID := c.Param("order_id")

	outcome, ok := callbackOutcomes[result]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Success: false,
			Error:   "Unknown callback result: " + result,
			Code:    "UNKNOWN_RESULT",
		})
		return
	}

	message := fmt.Sprintf("Payment %s via %s", outcome, gatewayName)
	ord, err := h.orders.Resolve(c.Request.Context(), orderID, outcome, message,
		map[string]any{"gateway": gatewayName, "result": result, "query": c.Request.URL.RawQuery})
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			handleServiceError(c, err)
			return
		}
		// The customer still needs a landing page; a conflicting or repeated
		// resolution is a server-side concern, not theirs.
		log.Printf("Return resolution for order %s (%s/%s) did not transition: %v",
			orderID, gatewayName, result, err)
		ord, _, err = h.orders.Get(c.Request.Context(), orderID)
		if err != nil {
			handleServiceError(c, err)
			return
		}
	}

	target := ord.CompleteURL
	if outcome == domain.OutcomeCancelled {
		target = ord.CancelURL
	}
	c.Redirect(http.StatusFound, target)
}

// HandleWebhook handles POST /api/webhook/:gateway
// Receives server-side notifications from payment gateways. Always answers
// 200 once the payload was read, so gateways do not retry on processing
// errors the retry would not fix; the transaction log keeps the evidence.
func (h *Handler) HandleWebhook(c *gin.Context) {
	gatewayName := c.Param("gateway")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error:   "Unreadable webhook body",
			Code:    "INVALID_BODY",
		})
		return
	}

	ord, err := h.orders.ResolveWebhook(c.Request.Context(), gatewayName, body)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if errors.Is(err, domain.ErrUnsupportedGateway) {
			handleServiceError(c, err)
			return
		}
		log.Printf("Webhook processing error for gateway %s: %v", gatewayName, err)
		c.JSON(http.StatusOK, gin.H{"status": "processed_with_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "order_id": ord.ID})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "paybridge",
	})
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"
	code := "INTERNAL_ERROR"

	var paymentErr *domain.PaymentError
	if errors.As(err, &paymentErr) {
		message = paymentErr.Message
		code = paymentErr.Code
	}

	switch {
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrInvalidRequest):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		statusCode = http.StatusNotFound
		if code == "INTERNAL_ERROR" {
			message, code = "Order not found", "ORDER_NOT_FOUND"
		}
	case errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrStatusConflict),
		errors.Is(err, domain.ErrOutcomeConflict):
		statusCode = http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedGateway),
		errors.Is(err, domain.ErrUnsupportedCurrency),
		errors.Is(err, domain.ErrUnsupportedCountry):
		statusCode = http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayError):
		statusCode = http.StatusBadGateway
	case errors.Is(err, domain.ErrNotConfigured):
		statusCode = http.StatusInternalServerError
	}

	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

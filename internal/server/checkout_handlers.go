package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studykart/studykart/internal/checkout"
)

func (s *Server) listGateways(c *gin.Context) {
	gateways, err := s.gateways.ListActive(c.Request.Context())
	if err != nil {
		// degrade to an empty list, the storefront shows
		// "No payment methods available" instead of failing
		s.logger.Warn("gateway list failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"gateways": []any{}})
		return
	}

	views := make([]gin.H, 0, len(gateways))
	for _, g := range gateways {
		views = append(views, gin.H{
			"id":                  g.ID,
			"name":                g.Name,
			"isActive":            g.IsActive,
			"environment":         g.Environment,
			"businessName":        g.BusinessName,
			"supportsCreditCards": g.SupportsCreditCards,
			"supportsDirectDebit": g.SupportsDirectDebit,
		})
	}

	c.JSON(http.StatusOK, gin.H{"gateways": views})
}

func (s *Server) paypalSDK(c *gin.Context) {
	if s.paypal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "paypal is not configured"})
		return
	}

	code := c.DefaultQuery("currency", "USD")
	c.JSON(http.StatusOK, s.paypal.SDKConfig(code))
}

type orderPayload struct {
	UserID          string `json:"userId"`
	UserEmail       string `json:"userEmail"`
	IsGuestCheckout bool   `json:"isGuestCheckout"`
	GatewayID       string `json:"gatewayId"`
}

func (s *Server) placeOrder(c *gin.Context) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return
	}

	var payload orderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := s.initiator.PlaceOrder(c.Request.Context(), checkout.Request{
		OwnerID:   ownerID,
		UserID:    payload.UserID,
		Email:     payload.UserEmail,
		GatewayID: payload.GatewayID,
	})
	if err != nil {
		c.JSON(checkoutStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"orderId": order.ID.String()})
}

type sessionPayload struct {
	OrderID string `json:"orderId" binding:"required"`
}

func (s *Server) createStripeSession(c *gin.Context) {
	s.createSession(c, "stripe")
}

func (s *Server) createPayPalOrder(c *gin.Context) {
	s.createSession(c, "paypal")
}

func (s *Server) createSession(c *gin.Context, gatewayID string) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return
	}

	var payload sessionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	handle, err := s.initiator.CreateSession(c.Request.Context(), ownerID, orderID, gatewayID)
	if err != nil {
		c.JSON(checkoutStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":   handle.SessionID,
		"redirectUrl": handle.RedirectURL,
		"orderId":     handle.OrderID.String(),
		"total":       handle.Total.Amount.StringFixed(2),
		"currency":    handle.Total.Currency.String(),
	})
}

type verifyPayload struct {
	OrderID       string `json:"orderId" binding:"required"`
	PayPalOrderID string `json:"paypalOrderId" binding:"required"`
}

func (s *Server) verifyPayPalPayment(c *gin.Context) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return
	}

	var payload verifyPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	err = s.initiator.Confirm(c.Request.Context(), ownerID, "paypal", orderID, payload.PayPalOrderID)
	if err != nil {
		c.JSON(checkoutStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "paid"})
}

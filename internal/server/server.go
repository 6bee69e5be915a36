// Package server exposes the cart, bundle and checkout operations over
// HTTP. Every surface reads through the same store and the same
// reconciler, so the price a shopper sees in the sidebar is the price
// the provider is asked to charge.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studykart/studykart/internal/cart"
	"github.com/studykart/studykart/internal/checkout"
	"github.com/studykart/studykart/internal/port"
	"github.com/studykart/studykart/internal/pricing"
	"github.com/studykart/studykart/internal/provider"
)

// sessionHeader identifies the cart session; browsers persist it locally
// and replay it on every call.
const sessionHeader = "X-Session-ID"

type Server struct {
	manager    *cart.Manager
	reconciler *pricing.Reconciler
	initiator  *checkout.Initiator
	gateways   port.GatewayRepository
	paypal     *provider.PayPal // nil when PayPal is not configured
	logger     *zap.Logger
}

func New(
	manager *cart.Manager,
	reconciler *pricing.Reconciler,
	initiator *checkout.Initiator,
	gateways port.GatewayRepository,
	paypal *provider.PayPal,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		manager:    manager,
		reconciler: reconciler,
		initiator:  initiator,
		gateways:   gateways,
		paypal:     paypal,
		logger:     logger,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/cart", s.getCart)
		api.POST("/cart/items", s.addItem)
		api.PATCH("/cart/items/:id", s.updateQuantity)
		api.DELETE("/cart/items/:id", s.removeItem)
		api.DELETE("/cart", s.clearCart)
		api.GET("/cart/summary", s.getSummary)

		api.POST("/cart/bundle", s.startBundle)
		api.POST("/cart/bundle/items", s.addToBundle)
		api.DELETE("/cart/bundle/items/:id", s.removeFromBundle)
		api.POST("/cart/bundle/complete", s.completeBundle)

		api.GET("/payment-gateways", s.listGateways)
		api.GET("/paypal-sdk", s.paypalSDK)

		api.POST("/order", s.placeOrder)
		api.POST("/stripe/checkout-sessions/create", s.createStripeSession)
		api.POST("/paypal/create-order", s.createPayPalOrder)
		api.POST("/paypal/verify-payment", s.verifyPayPalPayment)
	}

	return router
}

func (s *Server) ownerID(c *gin.Context) (string, bool) {
	ownerID := c.GetHeader(sessionHeader)
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + sessionHeader + " header"})
		return "", false
	}

	return ownerID, true
}

func (s *Server) store(c *gin.Context) (*cart.Store, string, bool) {
	ownerID, ok := s.ownerID(c)
	if !ok {
		return nil, "", false
	}

	store, err := s.manager.Get(c.Request.Context(), ownerID)
	if err != nil {
		// a failed snapshot load still yields a usable empty store
		s.logger.Warn("cart snapshot load failed", zap.String("owner_id", ownerID), zap.Error(err))
	}

	return store, ownerID, true
}

// persist writes the snapshot back after a mutation; a failure is logged
// but never fails the request, the in-memory store stays authoritative.
func (s *Server) persist(c *gin.Context, ownerID string) {
	if err := s.manager.Persist(c.Request.Context(), ownerID); err != nil {
		s.logger.Warn("cart persist failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
}

// checkoutStatus maps checkout errors onto HTTP: local validation is the
// client's fault, everything else is a retryable upstream failure.
func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrInvalidEmail),
		errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrCheckoutInFlight):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrNoGateway),
		errors.Is(err, checkout.ErrUnknownGateway):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/studykart/studykart/internal/cart"
	"github.com/studykart/studykart/internal/domain"
)

type itemPayload struct {
	ProductID string          `json:"productId" binding:"required"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
	Kind      string          `json:"kind"`
}

func (p itemPayload) parse() (uuid.UUID, domain.Money, error) {
	productID, err := uuid.Parse(p.ProductID)
	if err != nil {
		return uuid.Nil, domain.Money{}, err
	}

	code := p.Currency
	if code == "" {
		code = "USD"
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return uuid.Nil, domain.Money{}, err
	}

	return productID, domain.NewMoney(p.Price, unit), nil
}

type itemView struct {
	ProductID    string     `json:"productId"`
	Title        string     `json:"title"`
	Price        string     `json:"price"`
	Currency     string     `json:"currency"`
	Quantity     int        `json:"quantity"`
	Image        string     `json:"image,omitempty"`
	Kind         string     `json:"kind,omitempty"`
	IsPackage    bool       `json:"isPackage,omitempty"`
	PackageSize  int        `json:"packageSize,omitempty"`
	PackageItems []itemView `json:"packageItems,omitempty"`
}

func viewCartItem(item domain.CartItem) itemView {
	view := itemView{
		ProductID:   item.ProductID.String(),
		Title:       item.Title,
		Price:       item.Price.Amount.Round(2).String(),
		Currency:    item.Price.Currency.String(),
		Quantity:    item.Quantity,
		Image:       item.Image,
		Kind:        item.Kind,
		IsPackage:   item.IsPackage,
		PackageSize: item.PackageSize,
	}
	for _, sub := range item.PackageItems {
		view.PackageItems = append(view.PackageItems, viewBundleItem(sub))
	}

	return view
}

func viewBundleItem(item domain.BundleItem) itemView {
	return itemView{
		ProductID: item.ProductID.String(),
		Title:     item.Title,
		Price:     item.Price.Amount.Round(2).String(),
		Currency:  item.Price.Currency.String(),
		Quantity:  1,
		Image:     item.Image,
		Kind:      item.Kind,
	}
}

func (s *Server) getCart(c *gin.Context) {
	store, _, ok := s.store(c)
	if !ok {
		return
	}

	snapshot := store.Cart()
	bundle := store.Bundle()

	items := make([]itemView, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, viewCartItem(item))
	}

	bundleItems := make([]itemView, 0, len(bundle.Items))
	for _, item := range bundle.Items {
		bundleItems = append(bundleItems, viewBundleItem(item))
	}

	c.JSON(http.StatusOK, gin.H{
		"items":      items,
		"totalItems": snapshot.TotalItems(),
		"bundle": gin.H{
			"size":  bundle.Size,
			"items": bundleItems,
		},
	})
}

func (s *Server) addItem(c *gin.Context) {
	var payload itemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	productID, price, err := payload.parse()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = store.AddItem(domain.CartItem{
		ProductID: productID,
		Title:     payload.Title,
		Price:     price,
		Quantity:  payload.Quantity,
		Image:     payload.Image,
		Kind:      payload.Kind,
	})
	switch {
	case errors.Is(err, cart.ErrCurrencyMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "cart items must share one currency"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.persist(c, ownerID)

	c.Status(http.StatusNoContent)
}

func (s *Server) updateQuantity(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var payload struct {
		Quantity int `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	store.UpdateQuantity(productID, payload.Quantity)
	s.persist(c, ownerID)

	c.Status(http.StatusNoContent)
}

func (s *Server) removeItem(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	store.RemoveItem(productID)
	s.persist(c, ownerID)

	c.Status(http.StatusNoContent)
}

func (s *Server) clearCart(c *gin.Context) {
	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	store.Clear()
	store.ResetPackage()
	s.persist(c, ownerID)

	c.Status(http.StatusNoContent)
}

func (s *Server) getSummary(c *gin.Context) {
	store, _, ok := s.store(c)
	if !ok {
		return
	}

	breakdown := s.reconciler.Checkout(store.Cart(), store.Bundle()).Rounded()

	c.JSON(http.StatusOK, gin.H{
		"currency":              breakdown.Currency.String(),
		"regularTotal":          breakdown.RegularTotal.StringFixed(2),
		"bundleOriginalTotal":   breakdown.BundleOriginal.StringFixed(2),
		"bundleDiscountedTotal": breakdown.BundleDiscounted.StringFixed(2),
		"savings":               breakdown.Savings.StringFixed(2),
		"grandTotal":            breakdown.GrandTotal.StringFixed(2),
		"discountPercentage":    breakdown.DiscountPercentage,
	})
}

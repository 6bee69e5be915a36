package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/studykart/studykart/internal/cart"
	"github.com/studykart/studykart/internal/domain"
)

func (s *Server) startBundle(c *gin.Context) {
	var payload struct {
		Size int `json:"size" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	store.StartPackage(payload.Size)
	s.persist(c, ownerID)

	c.Status(http.StatusNoContent)
}

func (s *Server) addToBundle(c *gin.Context) {
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

	err = store.AddToPackage(domain.BundleItem{
		ProductID: productID,
		Title:     payload.Title,
		Price:     price,
		Image:     payload.Image,
		Kind:      payload.Kind,
	})
	switch {
	case errors.Is(err, cart.ErrNoBundle):
		c.JSON(http.StatusConflict, gin.H{"error": "start a bundle before adding items"})
		return
	case errors.Is(err, cart.ErrBundleFull):
		c.JSON(http.StatusConflict, gin.H{"error": "bundle is already full"})
		return
	case errors.Is(err, cart.ErrDuplicateItem):
		c.JSON(http.StatusConflict, gin.H{"error": "item is already in the bundle"})
		return
	case errors.Is(err, cart.ErrCurrencyMismatch):
		c.JSON(http.StatusConflict, gin.H{"error": "bundle items must match the cart currency"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.persist(c, ownerID)

	bundle := store.Bundle()
	c.JSON(http.StatusOK, gin.H{
		"size":     bundle.Size,
		"selected": len(bundle.Items),
	})
}

func (s *Server) removeFromBundle(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	store.RemoveFromPackage(productID)
	s.persist(c, ownerID)

	c.Status(http.StatusNoContent)
}

func (s *Server) completeBundle(c *gin.Context) {
	store, ownerID, ok := s.store(c)
	if !ok {
		return
	}

	bundle := store.Bundle()

	line, err := store.CompletePackage()
	switch {
	case errors.Is(err, cart.ErrNoBundle):
		c.JSON(http.StatusConflict, gin.H{"error": "no bundle in progress"})
		return
	case errors.Is(err, cart.ErrBundleIncomplete):
		c.JSON(http.StatusConflict, gin.H{
			"error": fmt.Sprintf("select all %d items to complete the bundle", bundle.Size),
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.persist(c, ownerID)

	c.JSON(http.StatusOK, gin.H{"item": viewCartItem(line)})
}

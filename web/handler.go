package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"travelbook/auth"
	"travelbook/codec"
	dbt "travelbook/db/db"
	"travelbook/order"
	"travelbook/store"
)

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *order.ValidationError
		notFoundErr   *store.NotFoundError
		notLoadedErr  *store.NotLoadedError
		mismatchErr   *codec.SchemaMismatchError
		authErr       *auth.AuthError
		backendErr    *dbt.BackendError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "problems": validationErr.Problems})
	case errors.As(err, &notLoadedErr):
		// checked before the backend case, the load failure is wrapped inside
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &mismatchErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &authErr), errors.As(err, &backendErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func orderID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid order id %q", c.Param("id"))})
		return 0, false
	}
	return id, true
}

func bindDraft(c *gin.Context) (order.Draft, bool) {
	var d order.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order body: " + err.Error()})
		return d, false
	}
	return d, true
}

func (s *Server) listOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Search(c.Query("q")))
}

func (s *Server) getOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	o, err := s.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) createOrder(c *gin.Context) {
	d, ok := bindDraft(c)
	if !ok {
		return
	}
	o, err := s.store.Create(c.Request.Context(), d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) updateOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	d, ok := bindDraft(c)
	if !ok {
		return
	}
	o, err := s.store.Update(c.Request.Context(), id, d)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (s *Server) deleteOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) previewOrder(c *gin.Context) {
	d, ok := bindDraft(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.store.ComputePreview(d))
}

func (s *Server) summary(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Summary())
}

func (s *Server) reload(c *gin.Context) {
	orders, err := s.store.LoadAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders)})
}

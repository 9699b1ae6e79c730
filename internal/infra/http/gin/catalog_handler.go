package ginserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"noe/internal/domain/orders"
	"noe/internal/domain/routes"
)

// CatalogAPI is the backend surface for routes and orders.
type CatalogAPI interface {
	ListRoutes(ctx context.Context, filter routes.SearchFilter) ([]routes.Route, error)
	GetRoute(ctx context.Context, id routes.ID) (routes.Route, error)
	MyRoutes(ctx context.Context) ([]routes.Route, error)
	CreateRoute(ctx context.Context, params routes.RouteParams) (routes.Route, error)
	UpdateRoute(ctx context.Context, id routes.ID, params routes.RouteParams) (routes.Route, error)
	ListOrders(ctx context.Context) ([]orders.Order, error)
	GetOrder(ctx context.Context, id orders.ID) (orders.Order, error)
}

type CatalogHandler struct {
	API        CatalogAPI
	Workspaces Workspaces
	Logger     *slog.Logger
	Now        func() time.Time
}

type confirmOrderRequest struct {
	Kind orders.ConfirmKind `json:"kind" binding:"required"`
	Code string             `json:"code" binding:"required"`
}

type orderResponse struct {
	orders.Order
	StatusLabel string `json:"statusLabel"`
}

func (h CatalogHandler) ListRoutes(c *gin.Context) {
	if h.API == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	items, err := h.API.ListRoutes(c.Request.Context(), routes.SearchFilter{
		Origin:      c.Query("origin"),
		Destination: c.Query("destination"),
		Date:        c.Query("date"),
		Species:     c.Query("species"),
		Size:        c.Query("size"),
	})
	if err != nil {
		respondError(c, h.Logger, err, "list routes")
		return
	}
	if items == nil {
		items = []routes.Route{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h CatalogHandler) GetRoute(c *gin.Context) {
	if h.API == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	route, err := h.API.GetRoute(c.Request.Context(), routes.ID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, err, "get route")
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h CatalogHandler) MyRoutes(c *gin.Context) {
	if !h.requireTransporter(c) {
		return
	}
	items, err := h.API.MyRoutes(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err, "my routes")
		return
	}
	if items == nil {
		items = []routes.Route{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h CatalogHandler) CreateRoute(c *gin.Context) {
	if !h.requireTransporter(c) {
		return
	}
	params, ok := bindRouteParams(c, h.Logger)
	if !ok {
		return
	}
	route, err := h.API.CreateRoute(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err, "create route")
		return
	}
	c.JSON(http.StatusCreated, route)
}

func (h CatalogHandler) UpdateRoute(c *gin.Context) {
	if !h.requireTransporter(c) {
		return
	}
	params, ok := bindRouteParams(c, h.Logger)
	if !ok {
		return
	}
	route, err := h.API.UpdateRoute(c.Request.Context(), routes.ID(c.Param("id")), params)
	if err != nil {
		respondError(c, h.Logger, err, "update route")
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h CatalogHandler) ListOrders(c *gin.Context) {
	if h.API == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	list, err := h.API.ListOrders(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err, "list orders")
		return
	}
	items := make([]orderResponse, 0, len(list))
	for _, o := range list {
		items = append(items, orderResponse{Order: o, StatusLabel: o.Status.Label()})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h CatalogHandler) GetOrder(c *gin.Context) {
	if h.API == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return
	}
	o, err := h.API.GetOrder(c.Request.Context(), orders.ID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, err, "get order")
		return
	}
	c.JSON(http.StatusOK, orderResponse{Order: o, StatusLabel: o.Status.Label()})
}

// ConfirmOrder checks a pickup or delivery code against the order. The
// backend has no confirmation endpoint so the result is not persisted.
func (h CatalogHandler) ConfirmOrder(c *gin.Context) {
	if !h.requireTransporter(c) {
		return
	}
	var req confirmOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	o, err := h.API.GetOrder(c.Request.Context(), orders.ID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, err, "get order")
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	confirmed, err := o.Confirm(orders.ConfirmKind(strings.ToLower(string(req.Kind))), req.Code, now())
	if err != nil {
		respondError(c, h.Logger, err, "confirm order")
		return
	}
	c.JSON(http.StatusOK, orderResponse{Order: confirmed, StatusLabel: confirmed.Status.Label()})
}

func (h CatalogHandler) requireTransporter(c *gin.Context) bool {
	if h.API == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "catalog unavailable"})
		return false
	}
	ws, ok := workspace(c, h.Workspaces, h.Logger)
	if !ok {
		return false
	}
	if !ws.User.IsTransporter() {
		c.JSON(http.StatusForbidden, gin.H{"error": "transporter role required"})
		return false
	}
	return true
}

func bindRouteParams(c *gin.Context, logger *slog.Logger) (routes.RouteParams, bool) {
	var params routes.RouteParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return params, false
	}
	if err := params.Validate(); err != nil {
		respondError(c, logger, err, "validate route")
		return params, false
	}
	return params, true
}

var _ CatalogHTTP = CatalogHandler{}

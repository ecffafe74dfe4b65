package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// UserService is implemented by *service.UserService
type UserService interface {
	Register(ctx context.Context, req *service.RegisterRequest) (*service.AuthResponse, error)
	Login(ctx context.Context, req *service.LoginRequest) (*service.AuthResponse, error)
	Profile(ctx context.Context, id auth.Identity) (*service.ProfileResponse, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// CatalogService is implemented by *service.CatalogService
type CatalogService interface {
	ListItems(ctx context.Context, page int) (*service.ItemPage, error)
	Featured(ctx context.Context) ([]models.Item, error)
	GetItem(ctx context.Context, itemID int64) (*models.Item, error)
	GetStock(ctx context.Context, itemID int64) (*service.StockLevel, error)
	CreateItem(ctx context.Context, id auth.Identity, req *service.ItemRequest) (*models.Item, error)
	UpdateItem(ctx context.Context, id auth.Identity, itemID int64, req *service.ItemRequest) (*models.Item, error)
}

// OrderService is implemented by *service.OrderService
type OrderService interface {
	CreateOrder(ctx context.Context, id auth.Identity, req *service.CreateOrderRequest) (*service.CreateOrderResponse, error)
	GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*service.OrderView, error)
	ListOrders(ctx context.Context, id auth.Identity, page int) ([]service.OrderView, error)
}

// RefundService is implemented by *service.RefundService
type RefundService interface {
	RequestRefund(ctx context.Context, id auth.Identity, orderID int64) (*models.Refund, error)
	DecideRefund(ctx context.Context, id auth.Identity, refundID int64, action string) error
	ListRefunds(ctx context.Context, id auth.Identity, page int) ([]models.RefundView, error)
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	users   UserService
	catalog CatalogService
	orders  OrderService
	refunds RefundService
	tokens  TokenParser
	checks  map[string]Pinger
	limiter *ipLimiter
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(
	users UserService,
	catalog CatalogService,
	orders OrderService,
	refunds RefundService,
	tokens TokenParser,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		users:   users,
		catalog: catalog,
		orders:  orders,
		refunds: refunds,
		tokens:  tokens,
		checks:  checks,
		limiter: newIPLimiter(rate.Limit(1), 5, 3*time.Minute),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/register", h.limiter.middleware(), h.register)
		v1.POST("/auth/login", h.limiter.middleware(), h.login)

		v1.GET("/items", h.listItems)
		v1.GET("/items/featured", h.featuredItems)
		v1.GET("/items/:id", h.getItem)
		v1.GET("/items/:id/stock", h.getStock)
	}

	user := v1.Group("", authenticate(h.tokens, h.users))
	{
		user.POST("/items/:id/orders", h.createOrder)
		user.GET("/profile", h.profile)
		user.GET("/orders", h.listOrders)
		user.GET("/orders/:id", h.getOrder)
		user.POST("/orders/:id/refund", h.requestRefund)
	}

	admin := v1.Group("/admin", authenticate(h.tokens, h.users), requireAdmin())
	{
		admin.POST("/items", h.createItem)
		admin.PUT("/items/:id", h.updateItem)
		admin.GET("/refunds", h.listRefunds)
		admin.POST("/refunds/:id", h.decideRefund)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) profile(c *gin.Context) {
	resp, err := h.users.Profile(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listItems(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}

	resp, err := h.catalog.ListItems(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) featuredItems(c *gin.Context) {
	items, err := h.catalog.Featured(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) getItem(c *gin.Context) {
	itemID, ok := idParam(c, "Invalid item ID")
	if !ok {
		return
	}

	item, err := h.catalog.GetItem(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) getStock(c *gin.Context) {
	itemID, ok := idParam(c, "Invalid item ID")
	if !ok {
		return
	}

	level, err := h.catalog.GetStock(c.Request.Context(), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *Handler) createItem(c *gin.Context) {
	var req service.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	item, err := h.catalog.CreateItem(c.Request.Context(), identity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) updateItem(c *gin.Context) {
	itemID, ok := idParam(c, "Invalid item ID")
	if !ok {
		return
	}

	var req service.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	item, err := h.catalog.UpdateItem(c.Request.Context(), identity(c), itemID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// createOrder buys the item named in the path
func (h *Handler) createOrder(c *gin.Context) {
	itemID, ok := idParam(c, "Invalid item ID")
	if !ok {
		return
	}

	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	req.ItemID = itemID

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), identity(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"message":  models.MessageSuccessful,
		"order":    resp.Order,
		"replayed": resp.Replayed,
	})
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := idParam(c, "Invalid order ID")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), identity(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), identity(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) requestRefund(c *gin.Context) {
	orderID, ok := idParam(c, "Invalid order ID")
	if !ok {
		return
	}

	refund, err := h.refunds.RequestRefund(c.Request.Context(), identity(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": models.MessageSuccessful,
		"refund":  refund,
	})
}

func (h *Handler) listRefunds(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		return
	}

	refunds, err := h.refunds.ListRefunds(c.Request.Context(), identity(c), page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunds": refunds})
}

func (h *Handler) decideRefund(c *gin.Context) {
	refundID, ok := idParam(c, "Invalid refund ID")
	if !ok {
		return
	}

	var req service.DecideRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if err := h.refunds.DecideRefund(c.Request.Context(), identity(c), refundID, req.Action); err != nil {
		respondError(c, err)
		return
	}

	action := models.RefundActionDeny
	if req.Action == models.RefundActionApprove {
		action = models.RefundActionApprove
	}
	c.JSON(http.StatusOK, gin.H{
		"message": models.MessageSuccessful,
		"action":  action,
	})
}

func idParam(c *gin.Context, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, message)
		return 0, false
	}
	return id, true
}

func pageParam(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("page", "1")
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		respondBadRequest(c, "Invalid page")
		return 0, false
	}
	return page, true
}

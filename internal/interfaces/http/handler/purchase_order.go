package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	procurementapp "github.com/procwatch/backend/internal/application/procurement"
	"github.com/procwatch/backend/internal/domain/procurement"
	"github.com/procwatch/backend/internal/domain/shared"
)

const dateLayout = "2006-01-02"

// defaultRangeDays is the listing window when no range is given
const defaultRangeDays = 90

// OrderService is the application-layer contract consumed by the handler
type OrderService interface {
	ListOrders(ctx context.Context, q procurementapp.ListQuery) ([]procurementapp.OrderView, error)
	Overview(ctx context.Context, from, to time.Time) (procurementapp.OverviewKPIs, error)
	OrderLines(ctx context.Context, orderID int64) ([]procurementapp.LineView, error)
}

// PurchaseOrderHandler handles purchase-order API endpoints
type PurchaseOrderHandler struct {
	BaseHandler
	service OrderService
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(service OrderService) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{service: service}
}

// RegisterRoutes registers all purchase-order routes
func (h *PurchaseOrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/purchase-orders")
	{
		orders.GET("", h.List)
		orders.GET("/overview", h.Overview)
		orders.GET("/:id/lines", h.Lines)
	}
}

// List returns the classified order listing for a date range
func (h *PurchaseOrderHandler) List(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	query := procurementapp.ListQuery{
		From:   from,
		To:     to,
		Search: c.Query("search"),
	}
	if raw := c.Query("approval_status"); raw != "" {
		status := procurement.ApprovalStatus(raw)
		if !status.IsValid() {
			h.HandleError(c, shared.ErrInvalidFilter)
			return
		}
		query.ApprovalFilter = status
	}
	if raw := c.Query("receive_status"); raw != "" {
		status := procurement.ReceiptStatus(raw)
		if !status.IsValid() {
			h.HandleError(c, shared.ErrInvalidFilter)
			return
		}
		query.ReceiveFilter = status
	}

	views, err := h.service.ListOrders(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// Overview returns the cached KPI aggregates for a date range
func (h *PurchaseOrderHandler) Overview(c *gin.Context) {
	from, to, err := parseDateRange(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	kpis, err := h.service.Overview(c.Request.Context(), from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, kpis)
}

// Lines returns the line drill-down for one order
func (h *PurchaseOrderHandler) Lines(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		h.BadRequest(c, "Order id must be a positive integer")
		return
	}

	lines, err := h.service.OrderLines(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lines)
}

// parseDateRange reads the inclusive from/to query dates. Both default to
// the trailing window ending today when absent.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -defaultRangeDays)

	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			return time.Time{}, time.Time{}, shared.ErrInvalidDateRange
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			return time.Time{}, time.Time{}, shared.ErrInvalidDateRange
		}
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, shared.ErrInvalidDateRange
	}
	return from, to, nil
}

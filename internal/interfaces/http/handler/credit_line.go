package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	creditapp "github.com/procwatch/backend/internal/application/credit"
	"github.com/procwatch/backend/internal/domain/shared"
)

// CreditService is the application-layer contract consumed by the handler
type CreditService interface {
	ListCreditLines(ctx context.Context, since *time.Time) ([]creditapp.CreditLineView, error)
	Summary(ctx context.Context, since *time.Time) (creditapp.UsageSummary, error)
}

// CreditLineHandler handles credit-line API endpoints
type CreditLineHandler struct {
	BaseHandler
	service CreditService
}

// NewCreditLineHandler creates a new CreditLineHandler
func NewCreditLineHandler(service CreditService) *CreditLineHandler {
	return &CreditLineHandler{service: service}
}

// RegisterRoutes registers all credit-line routes
func (h *CreditLineHandler) RegisterRoutes(rg *gin.RouterGroup) {
	lines := rg.Group("/credit-lines")
	{
		lines.GET("", h.List)
		lines.GET("/summary", h.Summary)
	}
}

// List returns per-supplier credit-line utilization, riskiest first
func (h *CreditLineHandler) List(c *gin.Context) {
	since, err := parseSince(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	views, err := h.service.ListCreditLines(c.Request.Context(), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, views)
}

// Summary returns aggregate credit-line KPIs
func (h *CreditLineHandler) Summary(c *gin.Context) {
	since, err := parseSince(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// parseSince reads the optional since query date
func parseSince(c *gin.Context) (*time.Time, error) {
	raw := c.Query("since")
	if raw == "" {
		return nil, nil
	}
	since, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, shared.ErrInvalidDateRange
	}
	return &since, nil
}

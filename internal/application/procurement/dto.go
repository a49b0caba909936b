package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/procwatch/backend/internal/domain/procurement"
)

// ListQuery describes one order listing request. From and To are inclusive
// calendar dates; the status filters and search text are optional.
type ListQuery struct {
	From           time.Time
	To             time.Time
	ApprovalFilter procurement.ApprovalStatus
	ReceiveFilter  procurement.ReceiptStatus
	Search         string
}

// OrderView is the derived, per-order response payload. It is computed per
// request and never persisted.
type OrderView struct {
	ID               int64                      `json:"id"`
	Name             string                     `json:"name"`
	Supplier         string                     `json:"supplier"`
	Company          string                     `json:"company"`
	State            string                     `json:"state"`
	OrderDate        time.Time                  `json:"order_date"`
	CreatedBy        string                     `json:"created_by"`
	Currency         string                     `json:"currency"`
	AmountTotal      decimal.Decimal            `json:"amount_total"`
	NormalizedAmount decimal.Decimal            `json:"normalized_amount"`
	ExchangeRate     decimal.Decimal            `json:"exchange_rate"`
	ApprovalStatus   procurement.ApprovalStatus `json:"approval_status"`
	ReceiveStatus    procurement.ReceiptStatus  `json:"receive_status"`
	ApprovedBy       []string                   `json:"approved_by"`
	PendingBy        []string                   `json:"pending_by"`
}

// LineView is the per-line response payload for order drill-down
type LineView struct {
	Product     string          `json:"product"`
	OrderedQty  decimal.Decimal `json:"ordered_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Service     bool            `json:"service"`
}

// StatusBucket is a count plus normalized amount total for one status
type StatusBucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// OverviewKPIs are pure aggregates over an unfiltered order listing
type OverviewKPIs struct {
	TotalOrders          int                                         `json:"total_orders"`
	NormalizedTotal      decimal.Decimal                             `json:"normalized_total"`
	ByApproval           map[procurement.ApprovalStatus]StatusBucket `json:"by_approval"`
	ByReceipt            map[procurement.ReceiptStatus]StatusBucket  `json:"by_receipt"`
	ApprovedPercent      float64                                     `json:"approved_percent"`
	FullyReceivedPercent float64                                     `json:"fully_received_percent"`
}

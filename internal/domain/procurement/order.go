package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderState represents the lifecycle state of a purchase order as recorded
// by the ERP. The vocabulary is the ERP's own and is never remapped on
// ingest so that classification rules stay aligned with the upstream system.
type OrderState string

const (
	OrderStateDraft     OrderState = "draft"
	OrderStateToApprove OrderState = "to_approve"
	OrderStateConfirmed OrderState = "confirmed"
	OrderStateDone      OrderState = "done"
	OrderStateCancelled OrderState = "cancelled"
)

// IsValid checks if the state is a known ERP order state
func (s OrderState) IsValid() bool {
	switch s {
	case OrderStateDraft, OrderStateToApprove, OrderStateConfirmed,
		OrderStateDone, OrderStateCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderState
func (s OrderState) String() string {
	return string(s)
}

// PurchaseOrder is a read-only snapshot of an ERP purchase order, held
// transiently for the duration of one aggregation request.
type PurchaseOrder struct {
	ID           int64
	Name         string
	SupplierID   int64
	SupplierName string
	CompanyName  string
	AmountTotal  decimal.Decimal
	Currency     string
	State        OrderState
	OrderDate    time.Time
	CreatedByID  int64
}

// PurchaseOrderLine is a line item snapshot of an ERP purchase order line.
// An OrderedQty of zero marks a service line that never participates in
// receipt-completeness math.
type PurchaseOrderLine struct {
	OrderID     int64
	Product     string
	OrderedQty  decimal.Decimal
	ReceivedQty decimal.Decimal
	InvoicedQty decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// IsService reports whether the line is a service/non-material line
func (l PurchaseOrderLine) IsService() bool {
	return l.OrderedQty.IsZero()
}

// ApprovalMessage is a free-text message attached to an order. A message
// whose body matches an approval keyword counts as an approval signal from
// its author.
type ApprovalMessage struct {
	OrderID  int64
	AuthorID int64
	Body     string
	PostedAt time.Time
}

// PendingActivity is an open activity/task on an order assigned to a user,
// representing an outstanding approval request.
type PendingActivity struct {
	OrderID    int64
	AssigneeID int64
	State      string
	Summary    string
}

// IsOpen reports whether the activity still awaits action
func (a PendingActivity) IsOpen() bool {
	return a.State != "done"
}

package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLabel represents the three-state risk ranking of a credit line
type RiskLabel string

const (
	RiskLabelAvailable RiskLabel = "available"
	RiskLabelLow       RiskLabel = "low"
	RiskLabelExhausted RiskLabel = "exhausted"
)

// Risk thresholds as usage percentages
var (
	riskExhaustedThreshold = decimal.NewFromInt(100)
	riskLowThreshold       = decimal.NewFromInt(80)
)

// RiskFor maps a usage percentage to its risk label
func RiskFor(usagePercent decimal.Decimal) RiskLabel {
	switch {
	case usagePercent.GreaterThanOrEqual(riskExhaustedThreshold):
		return RiskLabelExhausted
	case usagePercent.GreaterThanOrEqual(riskLowThreshold):
		return RiskLabelLow
	default:
		return RiskLabelAvailable
	}
}

// UnpaidInvoice is a supplier invoice with an outstanding residual.
// An invoice with a zero residual contributes nothing to usage and is
// filtered out upstream.
type UnpaidInvoice struct {
	ID         int64
	SupplierID int64
	Number     string
	Origin     string
	Amount     decimal.Decimal
	Residual   decimal.Decimal
	Currency   string
	DueDate    time.Time
}

// TentativeOrder is a confirmed purchase order with no invoice yet. It is
// committed-but-not-yet-delivered exposure, shown for context but excluded
// from the used amount.
type TentativeOrder struct {
	OrderID    int64
	Name       string
	SupplierID int64
	Amount     decimal.Decimal
	Currency   string
	OrderDate  time.Time
}

// ReceivedUnbilled is goods received against an order line beyond what has
// been invoiced. Cash will eventually be owed for it, so it counts as used
// credit: (receivedQty - invoicedQty) x unit price.
type ReceivedUnbilled struct {
	OrderID    int64
	OrderName  string
	SupplierID int64
	Product    string
	Qty        decimal.Decimal
	UnitPrice  decimal.Decimal
	Amount     decimal.Decimal
}

// CreditLine is the per-supplier utilization view. All monetary figures are
// already normalized to local currency by the engine that builds it.
type CreditLine struct {
	SupplierID   int64
	SupplierName string
	Total        decimal.Decimal
	Used         decimal.Decimal
	Available    decimal.Decimal
	UsagePercent decimal.Decimal
	Risk         RiskLabel
	Invoices     []UnpaidInvoice
	Tentative    []TentativeOrder
	Unbilled     []ReceivedUnbilled
}

// Finalize computes the derived fields from Total and Used. Available is
// defined as Total - Used so the identity Used + Available = Total holds by
// construction; a zero ceiling yields a zero usage percentage.
func (c *CreditLine) Finalize() {
	c.Available = c.Total.Sub(c.Used)
	if c.Total.IsZero() {
		c.UsagePercent = decimal.Zero
	} else {
		c.UsagePercent = c.Used.Div(c.Total).Mul(decimal.NewFromInt(100))
	}
	c.Risk = RiskFor(c.UsagePercent)
}

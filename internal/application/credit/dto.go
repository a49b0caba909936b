package credit

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/procwatch/backend/internal/domain/credit"
)

// InvoiceView is one unpaid supplier invoice in a credit-line response
type InvoiceView struct {
	Number   string          `json:"number"`
	Origin   string          `json:"origin,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Residual decimal.Decimal `json:"residual"`
	Currency string          `json:"currency"`
	DueDate  time.Time       `json:"due_date"`
}

// TentativeView is a confirmed, still uninvoiced order shown for context
type TentativeView struct {
	Order     string          `json:"order"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	OrderDate time.Time       `json:"order_date"`
}

// UnbilledView is goods received beyond what has been invoiced
type UnbilledView struct {
	Order     string          `json:"order"`
	Product   string          `json:"product"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// CreditLineView is the per-supplier utilization payload. Monetary figures
// are normalized to local currency.
type CreditLineView struct {
	SupplierID   int64            `json:"supplier_id"`
	Supplier     string           `json:"supplier"`
	Total        decimal.Decimal  `json:"total"`
	Used         decimal.Decimal  `json:"used"`
	Available    decimal.Decimal  `json:"available"`
	UsagePercent decimal.Decimal  `json:"usage_percent"`
	Risk         credit.RiskLabel `json:"risk"`
	Invoices     []InvoiceView    `json:"invoices"`
	Tentative    []TentativeView  `json:"tentative"`
	Unbilled     []UnbilledView   `json:"unbilled"`
}

// UsageSummary aggregates one credit-line listing into treasury KPIs
type UsageSummary struct {
	Suppliers      int                      `json:"suppliers"`
	TotalCeiling   decimal.Decimal          `json:"total_ceiling"`
	TotalUsed      decimal.Decimal          `json:"total_used"`
	TotalAvailable decimal.Decimal          `json:"total_available"`
	ByRisk         map[credit.RiskLabel]int `json:"by_risk"`
	ExchangeRate   decimal.Decimal          `json:"exchange_rate"`
}

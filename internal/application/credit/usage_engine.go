package credit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/procwatch/backend/internal/domain/credit"
	"github.com/procwatch/backend/internal/domain/shared"
	"github.com/procwatch/backend/internal/infrastructure/erp"
)

// ERP models read by the usage engine
const (
	modelPartner = "res.partner"
	modelInvoice = "account.move"
	modelOrder   = "purchase.order"
	modelMove    = "stock.move"
	modelLine    = "purchase.order.line"
)

const usdCurrency = "USD"

const dateLayout = "2006-01-02"

// RateSource provides the USD to local-currency rate; it never fails
type RateSource interface {
	Rate(ctx context.Context) decimal.Decimal
}

// UsageEngine reconciles each supplier's credit line against unpaid
// invoices and received-but-unbilled goods read from the remote ERP.
type UsageEngine struct {
	reader erp.BatchReader
	rates  RateSource
	logger *zap.Logger
}

// NewUsageEngine creates a new UsageEngine
func NewUsageEngine(reader erp.BatchReader, rates RateSource, logger *zap.Logger) *UsageEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsageEngine{reader: reader, rates: rates, logger: logger}
}

// ListCreditLines returns per-supplier utilization sorted riskiest first.
// The optional since date narrows which unpaid invoices count. The rate is
// captured once so every figure in one listing uses the same conversion.
func (e *UsageEngine) ListCreditLines(ctx context.Context, since *time.Time) ([]CreditLineView, error) {
	return e.listCreditLinesAtRate(ctx, since, e.rates.Rate(ctx))
}

// listCreditLinesAtRate builds the listing with an already-captured rate so
// a summary can display the same rate its figures were normalized with.
func (e *UsageEngine) listCreditLinesAtRate(ctx context.Context, since *time.Time, rate decimal.Decimal) ([]CreditLineView, error) {
	suppliers, err := e.reader.SearchRead(ctx, erp.Query{
		Model:  modelPartner,
		Filter: []erp.Condition{erp.Gt("credit_limit", 0)},
		Fields: []string{"name", "credit_limit"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamRead, err)
	}
	if len(suppliers) == 0 {
		return []CreditLineView{}, nil
	}

	supplierIDs := make([]int64, 0, len(suppliers))
	lines := make(map[int64]*creditLineBuild, len(suppliers))
	for _, rec := range suppliers {
		id := rec.Int64("id")
		supplierIDs = append(supplierIDs, id)
		lines[id] = &creditLineBuild{
			line: credit.CreditLine{
				SupplierID:   id,
				SupplierName: rec.String("name"),
				Total:        rec.Decimal("credit_limit"),
			},
		}
	}

	invoicedRefs, err := e.collectInvoices(ctx, supplierIDs, since, rate, lines)
	if err != nil {
		return nil, err
	}
	orderSuppliers, orderNames, err := e.collectTentative(ctx, supplierIDs, invoicedRefs, rate, lines)
	if err != nil {
		return nil, err
	}
	e.collectUnbilled(ctx, orderNames, orderSuppliers, rate, lines)

	views := make([]CreditLineView, 0, len(lines))
	for _, b := range lines {
		b.line.Finalize()
		views = append(views, toView(b.line))
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].UsagePercent.Equal(views[j].UsagePercent) {
			return views[i].UsagePercent.GreaterThan(views[j].UsagePercent)
		}
		return views[i].Supplier < views[j].Supplier
	})
	return views, nil
}

// Summary aggregates one listing into treasury KPIs. The rate is captured
// once and reused for display so the summary stays consistent with its own
// normalized figures.
func (e *UsageEngine) Summary(ctx context.Context, since *time.Time) (UsageSummary, error) {
	rate := e.rates.Rate(ctx)
	views, err := e.listCreditLinesAtRate(ctx, since, rate)
	if err != nil {
		return UsageSummary{}, err
	}

	summary := UsageSummary{
		Suppliers:      len(views),
		TotalCeiling:   decimal.Zero,
		TotalUsed:      decimal.Zero,
		TotalAvailable: decimal.Zero,
		ByRisk:         make(map[credit.RiskLabel]int),
		ExchangeRate:   rate,
	}
	for _, v := range views {
		summary.TotalCeiling = summary.TotalCeiling.Add(v.Total)
		summary.TotalUsed = summary.TotalUsed.Add(v.Used)
		summary.TotalAvailable = summary.TotalAvailable.Add(v.Available)
		summary.ByRisk[v.Risk]++
	}
	return summary, nil
}

type creditLineBuild struct {
	line credit.CreditLine
}

// collectInvoices reads unpaid supplier invoices, adds their residuals to
// the used amount, and returns the set of order references already invoiced.
func (e *UsageEngine) collectInvoices(ctx context.Context, supplierIDs []int64, since *time.Time, rate decimal.Decimal, lines map[int64]*creditLineBuild) (map[string]struct{}, error) {
	filter := []erp.Condition{
		erp.Eq("move_type", "in_invoice"),
		erp.In("partner_id", supplierIDs),
		erp.Gt("amount_residual", 0),
	}
	if since != nil {
		filter = append(filter, erp.Gte("invoice_date", since.Format(dateLayout)))
	}

	records, err := e.reader.SearchRead(ctx, erp.Query{
		Model:  modelInvoice,
		Filter: filter,
		Fields: []string{"partner_id", "name", "invoice_origin", "amount_total", "amount_residual", "currency_id", "invoice_date_due"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamRead, err)
	}

	invoicedRefs := make(map[string]struct{})
	for _, rec := range records {
		supplierID := rec.Ref("partner_id").ID
		b, ok := lines[supplierID]
		if !ok {
			continue
		}

		currency := rec.Ref("currency_id").Label
		residual := normalize(rec.Decimal("amount_residual"), currency, rate)
		invoice := credit.UnpaidInvoice{
			ID:         rec.Int64("id"),
			SupplierID: supplierID,
			Number:     rec.String("name"),
			Origin:     rec.String("invoice_origin"),
			Amount:     normalize(rec.Decimal("amount_total"), currency, rate),
			Residual:   residual,
			Currency:   currency,
			DueDate:    rec.Time("invoice_date_due"),
		}
		b.line.Used = b.line.Used.Add(residual)
		b.line.Invoices = append(b.line.Invoices, invoice)

		// an origin may reference several orders at once
		for _, ref := range strings.Split(invoice.Origin, ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				invoicedRefs[ref] = struct{}{}
			}
		}
	}
	return invoicedRefs, nil
}

// collectTentative reads confirmed orders and tracks the uninvoiced ones as
// informational exposure. It returns the supplier attribution and name list
// for every confirmed order so stock movements can be matched back.
func (e *UsageEngine) collectTentative(ctx context.Context, supplierIDs []int64, invoicedRefs map[string]struct{}, rate decimal.Decimal, lines map[int64]*creditLineBuild) (map[string]int64, []string, error) {
	records, err := e.reader.SearchRead(ctx, erp.Query{
		Model: modelOrder,
		Filter: []erp.Condition{
			erp.In("partner_id", supplierIDs),
			erp.Eq("state", "confirmed"),
		},
		Fields: []string{"name", "partner_id", "amount_total", "currency_id", "date_order", "invoice_count"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrUpstreamRead, err)
	}

	orderSuppliers := make(map[string]int64, len(records))
	orderNames := make([]string, 0, len(records))
	for _, rec := range records {
		name := rec.String("name")
		supplierID := rec.Ref("partner_id").ID
		orderSuppliers[name] = supplierID
		orderNames = append(orderNames, name)

		b, ok := lines[supplierID]
		if !ok {
			continue
		}
		if _, invoiced := invoicedRefs[name]; invoiced || rec.Int64("invoice_count") > 0 {
			continue
		}
		currency := rec.Ref("currency_id").Label
		b.line.Tentative = append(b.line.Tentative, credit.TentativeOrder{
			OrderID:    rec.Int64("id"),
			Name:       name,
			SupplierID: supplierID,
			Amount:     normalize(rec.Decimal("amount_total"), currency, rate),
			Currency:   currency,
			OrderDate:  rec.Time("date_order"),
		})
	}
	return orderSuppliers, orderNames, nil
}

// collectUnbilled turns incoming stock movements into received-unbilled
// amounts: for each done movement, the order line's received quantity beyond
// the invoiced quantity times the unit price. These reads refine the usage
// figure, so a failure degrades to no unbilled amounts instead of aborting.
func (e *UsageEngine) collectUnbilled(ctx context.Context, orderNames []string, orderSuppliers map[string]int64, rate decimal.Decimal, lines map[int64]*creditLineBuild) {
	if len(orderNames) == 0 {
		return
	}

	moves, err := e.reader.SearchRead(ctx, erp.Query{
		Model: modelMove,
		Filter: []erp.Condition{
			erp.In("origin", orderNames),
			erp.Gt("quantity_done", 0),
		},
		Fields: []string{"origin", "purchase_line_id", "quantity_done"},
	})
	if err != nil {
		e.logger.Warn("stock move read degraded", zap.Error(err))
		return
	}

	lineOrigins := make(map[int64]string)
	lineIDs := make([]int64, 0, len(moves))
	for _, rec := range moves {
		lineID := rec.Ref("purchase_line_id").ID
		if lineID == 0 {
			continue
		}
		if _, seen := lineOrigins[lineID]; !seen {
			lineIDs = append(lineIDs, lineID)
		}
		lineOrigins[lineID] = rec.String("origin")
	}
	if len(lineIDs) == 0 {
		return
	}

	records, err := e.reader.Read(ctx, modelLine, lineIDs, []string{"name", "qty_received", "qty_invoiced", "price_unit", "currency_id"})
	if err != nil {
		e.logger.Warn("order line read degraded", zap.Error(err))
		return
	}

	for _, rec := range records {
		shortfall := rec.Decimal("qty_received").Sub(rec.Decimal("qty_invoiced"))
		if !shortfall.IsPositive() {
			continue
		}
		origin := lineOrigins[rec.Int64("id")]
		supplierID, ok := orderSuppliers[origin]
		if ok {
			b, tracked := lines[supplierID]
			if !tracked {
				continue
			}
			currency := rec.Ref("currency_id").Label
			amount := normalize(shortfall.Mul(rec.Decimal("price_unit")), currency, rate)
			b.line.Used = b.line.Used.Add(amount)
			b.line.Unbilled = append(b.line.Unbilled, credit.ReceivedUnbilled{
				OrderName:  origin,
				SupplierID: supplierID,
				Product:    rec.String("name"),
				Qty:        shortfall,
				UnitPrice:  rec.Decimal("price_unit"),
				Amount:     amount,
			})
		}
	}
}

func normalize(amount decimal.Decimal, currency string, rate decimal.Decimal) decimal.Decimal {
	if currency == usdCurrency {
		return amount.Mul(rate)
	}
	return amount
}

func toView(line credit.CreditLine) CreditLineView {
	view := CreditLineView{
		SupplierID:   line.SupplierID,
		Supplier:     line.SupplierName,
		Total:        line.Total,
		Used:         line.Used,
		Available:    line.Available,
		UsagePercent: line.UsagePercent,
		Risk:         line.Risk,
		Invoices:     make([]InvoiceView, 0, len(line.Invoices)),
		Tentative:    make([]TentativeView, 0, len(line.Tentative)),
		Unbilled:     make([]UnbilledView, 0, len(line.Unbilled)),
	}
	for _, inv := range line.Invoices {
		view.Invoices = append(view.Invoices, InvoiceView{
			Number:   inv.Number,
			Origin:   inv.Origin,
			Amount:   inv.Amount,
			Residual: inv.Residual,
			Currency: inv.Currency,
			DueDate:  inv.DueDate,
		})
	}
	for _, t := range line.Tentative {
		view.Tentative = append(view.Tentative, TentativeView{
			Order:     t.Name,
			Amount:    t.Amount,
			Currency:  t.Currency,
			OrderDate: t.OrderDate,
		})
	}
	for _, u := range line.Unbilled {
		view.Unbilled = append(view.Unbilled, UnbilledView{
			Order:     u.OrderName,
			Product:   u.Product,
			Qty:       u.Qty,
			UnitPrice: u.UnitPrice,
			Amount:    u.Amount,
		})
	}
	return view
}

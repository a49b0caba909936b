package credit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/procwatch/backend/internal/domain/credit"
	"github.com/procwatch/backend/internal/domain/shared"
	"github.com/procwatch/backend/internal/infrastructure/erp"
)

type mockBatchReader struct {
	mock.Mock
}

func (m *mockBatchReader) SearchRead(ctx context.Context, q erp.Query) ([]erp.Record, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]erp.Record), args.Error(1)
}

func (m *mockBatchReader) Read(ctx context.Context, model string, ids []int64, fields []string) ([]erp.Record, error) {
	args := m.Called(ctx, model, ids, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]erp.Record), args.Error(1)
}

type fixedRates struct {
	rate decimal.Decimal
}

func (f fixedRates) Rate(ctx context.Context) decimal.Decimal {
	return f.rate
}

// steppingRates returns a different rate on every call, as a provider would
// after its snapshot expires mid-request
type steppingRates struct {
	rates []decimal.Decimal
	calls int
}

func (s *steppingRates) Rate(ctx context.Context) decimal.Decimal {
	i := s.calls
	if i >= len(s.rates) {
		i = len(s.rates) - 1
	}
	s.calls++
	return s.rates[i]
}

func forModel(model string) interface{} {
	return mock.MatchedBy(func(q erp.Query) bool { return q.Model == model })
}

// setupSupplierScenario wires one supplier with a 1,000,000 ceiling, an
// unpaid 300,000 invoice, a 200,000 received-unbilled shortfall and a
// 500,000 tentative order.
func setupSupplierScenario(reader *mockBatchReader) {
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{
		{"id": 10.0, "name": "Acme Ltd", "credit_limit": 1000000.0},
	}, nil)

	reader.On("SearchRead", mock.Anything, forModel("account.move")).Return([]erp.Record{
		{
			"id":               100.0,
			"partner_id":       []any{10.0, "Acme Ltd"},
			"name":             "INV/001",
			"invoice_origin":   "PO0001",
			"amount_total":     300000.0,
			"amount_residual":  300000.0,
			"currency_id":      []any{3.0, "GTQ"},
			"invoice_date_due": "2025-04-15",
		},
	}, nil)

	reader.On("SearchRead", mock.Anything, forModel("purchase.order")).Return([]erp.Record{
		{
			"id":            1.0,
			"name":          "PO0001",
			"partner_id":    []any{10.0, "Acme Ltd"},
			"amount_total":  300000.0,
			"currency_id":   []any{3.0, "GTQ"},
			"date_order":    "2025-03-01 09:00:00",
			"invoice_count": 1.0,
		},
		{
			"id":            2.0,
			"name":          "PO0002",
			"partner_id":    []any{10.0, "Acme Ltd"},
			"amount_total":  500000.0,
			"currency_id":   []any{3.0, "GTQ"},
			"date_order":    "2025-03-05 09:00:00",
			"invoice_count": 0.0,
		},
		{
			"id":            3.0,
			"name":          "PO0003",
			"partner_id":    []any{10.0, "Acme Ltd"},
			"amount_total":  200000.0,
			"currency_id":   []any{3.0, "GTQ"},
			"date_order":    "2025-03-07 09:00:00",
			"invoice_count": 1.0,
		},
	}, nil)

	reader.On("SearchRead", mock.Anything, forModel("stock.move")).Return([]erp.Record{
		{"origin": "PO0003", "purchase_line_id": []any{30.0, "Widget"}, "quantity_done": 40.0},
	}, nil)

	reader.On("Read", mock.Anything, "purchase.order.line", []int64{30}, mock.Anything).Return([]erp.Record{
		{
			"id":           30.0,
			"name":         "Widget",
			"qty_received": 40.0,
			"qty_invoiced": 0.0,
			"price_unit":   5000.0,
			"currency_id":  []any{3.0, "GTQ"},
		},
	}, nil)
}

func newTestEngine(reader *mockBatchReader) *UsageEngine {
	return NewUsageEngine(reader, fixedRates{rate: decimal.NewFromFloat(7.8)}, zap.NewNop())
}

func TestListCreditLines_ReconcilesUsage(t *testing.T) {
	reader := new(mockBatchReader)
	setupSupplierScenario(reader)
	engine := newTestEngine(reader)

	views, err := engine.ListCreditLines(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, "Acme Ltd", v.Supplier)
	assert.True(t, v.Used.Equal(decimal.NewFromInt(500000)),
		"unpaid 300k + unbilled 200k, got %s", v.Used)
	assert.True(t, v.Available.Equal(decimal.NewFromInt(500000)))
	assert.True(t, v.UsagePercent.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, credit.RiskLabelAvailable, v.Risk)

	// used + available must reconstruct the ceiling
	assert.True(t, v.Used.Add(v.Available).Equal(v.Total))

	// the tentative order is tracked but not counted as used
	require.Len(t, v.Tentative, 1)
	assert.Equal(t, "PO0002", v.Tentative[0].Order)
	require.Len(t, v.Invoices, 1)
	assert.Equal(t, "INV/001", v.Invoices[0].Number)
	require.Len(t, v.Unbilled, 1)
	assert.Equal(t, "PO0003", v.Unbilled[0].Order)
	assert.True(t, v.Unbilled[0].Amount.Equal(decimal.NewFromInt(200000)))
}

func TestListCreditLines_NoSuppliers(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{}, nil)
	engine := newTestEngine(reader)

	views, err := engine.ListCreditLines(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, views)
	// nothing else is read for an empty supplier list
	reader.AssertNumberOfCalls(t, "SearchRead", 1)
}

func TestListCreditLines_SortedRiskiestFirst(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{
		{"id": 10.0, "name": "Calm Co", "credit_limit": 1000000.0},
		{"id": 11.0, "name": "Maxed Out SA", "credit_limit": 100000.0},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("account.move")).Return([]erp.Record{
		{
			"id":               100.0,
			"partner_id":       []any{11.0, "Maxed Out SA"},
			"name":             "INV/002",
			"amount_total":     120000.0,
			"amount_residual":  120000.0,
			"currency_id":      []any{3.0, "GTQ"},
			"invoice_date_due": "2025-04-01",
		},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("purchase.order")).Return([]erp.Record{}, nil)
	engine := newTestEngine(reader)

	views, err := engine.ListCreditLines(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Maxed Out SA", views[0].Supplier)
	assert.Equal(t, credit.RiskLabelExhausted, views[0].Risk)
	assert.True(t, views[0].Available.IsNegative())
	assert.Equal(t, "Calm Co", views[1].Supplier)
	assert.Equal(t, credit.RiskLabelAvailable, views[1].Risk)
}

func TestListCreditLines_USDNormalization(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{
		{"id": 10.0, "name": "Acme Ltd", "credit_limit": 100000.0},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("account.move")).Return([]erp.Record{
		{
			"id":               100.0,
			"partner_id":       []any{10.0, "Acme Ltd"},
			"name":             "INV/003",
			"amount_total":     1000.0,
			"amount_residual":  1000.0,
			"currency_id":      []any{2.0, "USD"},
			"invoice_date_due": "2025-04-01",
		},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("purchase.order")).Return([]erp.Record{}, nil)
	engine := newTestEngine(reader)

	views, err := engine.ListCreditLines(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Used.Equal(decimal.NewFromInt(7800)),
		"1000 USD at rate 7.8, got %s", views[0].Used)
}

func TestListCreditLines_SinceNarrowsInvoiceRead(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{
		{"id": 10.0, "name": "Acme Ltd", "credit_limit": 100000.0},
	}, nil)
	reader.On("SearchRead", mock.Anything, mock.MatchedBy(func(q erp.Query) bool {
		if q.Model != "account.move" {
			return false
		}
		for _, c := range q.Filter {
			if c.Field == "invoice_date" && c.Op == ">=" && c.Value == "2025-01-01" {
				return true
			}
		}
		return false
	})).Return([]erp.Record{}, nil)
	reader.On("SearchRead", mock.Anything, forModel("purchase.order")).Return([]erp.Record{}, nil)
	engine := newTestEngine(reader)

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := engine.ListCreditLines(context.Background(), &since)
	require.NoError(t, err)
	reader.AssertExpectations(t)
}

func TestListCreditLines_StockMoveReadDegrades(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{
		{"id": 10.0, "name": "Acme Ltd", "credit_limit": 100000.0},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("account.move")).Return([]erp.Record{}, nil)
	reader.On("SearchRead", mock.Anything, forModel("purchase.order")).Return([]erp.Record{
		{
			"id":            2.0,
			"name":          "PO0002",
			"partner_id":    []any{10.0, "Acme Ltd"},
			"amount_total":  5000.0,
			"currency_id":   []any{3.0, "GTQ"},
			"date_order":    "2025-03-05 09:00:00",
			"invoice_count": 0.0,
		},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("stock.move")).Return(nil, errors.New("connection reset"))
	engine := newTestEngine(reader)

	views, err := engine.ListCreditLines(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, views[0].Used.IsZero())
	assert.Empty(t, views[0].Unbilled)
}

func TestListCreditLines_SupplierReadFails(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return(nil, errors.New("gateway timeout"))
	engine := newTestEngine(reader)

	_, err := engine.ListCreditLines(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUpstreamRead)
}

func TestSummary_DisplayedRateMatchesNormalization(t *testing.T) {
	reader := new(mockBatchReader)
	reader.On("SearchRead", mock.Anything, forModel("res.partner")).Return([]erp.Record{
		{"id": 10.0, "name": "Acme Ltd", "credit_limit": 100000.0},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("account.move")).Return([]erp.Record{
		{
			"id":               100.0,
			"partner_id":       []any{10.0, "Acme Ltd"},
			"name":             "INV/004",
			"amount_total":     1000.0,
			"amount_residual":  1000.0,
			"currency_id":      []any{2.0, "USD"},
			"invoice_date_due": "2025-04-01",
		},
	}, nil)
	reader.On("SearchRead", mock.Anything, forModel("purchase.order")).Return([]erp.Record{}, nil)

	rates := &steppingRates{rates: []decimal.Decimal{
		decimal.NewFromFloat(7.8),
		decimal.NewFromFloat(8.1),
	}}
	engine := NewUsageEngine(reader, rates, zap.NewNop())

	summary, err := engine.Summary(context.Background(), nil)
	require.NoError(t, err)

	// the rate shown must be the one every figure was normalized with
	assert.True(t, summary.ExchangeRate.Equal(decimal.NewFromFloat(7.8)),
		"displayed rate %s differs from the normalization rate", summary.ExchangeRate)
	assert.True(t, summary.TotalUsed.Equal(decimal.NewFromInt(7800)),
		"1000 USD at rate 7.8, got %s", summary.TotalUsed)
}

func TestSummary(t *testing.T) {
	reader := new(mockBatchReader)
	setupSupplierScenario(reader)
	engine := newTestEngine(reader)

	summary, err := engine.Summary(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Suppliers)
	assert.True(t, summary.TotalCeiling.Equal(decimal.NewFromInt(1000000)))
	assert.True(t, summary.TotalUsed.Equal(decimal.NewFromInt(500000)))
	assert.True(t, summary.TotalAvailable.Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, 1, summary.ByRisk[credit.RiskLabelAvailable])
	assert.True(t, summary.ExchangeRate.Equal(decimal.NewFromFloat(7.8)))
}

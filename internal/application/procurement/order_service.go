package procurement

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/procwatch/backend/internal/domain/procurement"
	"github.com/procwatch/backend/internal/domain/shared"
	"github.com/procwatch/backend/internal/infrastructure/cache"
	"github.com/procwatch/backend/internal/infrastructure/erp"
)

// ERP models read by the aggregator
const (
	modelOrder    = "purchase.order"
	modelLine     = "purchase.order.line"
	modelMessage  = "mail.message"
	modelActivity = "mail.activity"
	modelUser     = "res.users"
)

// usdCurrency is the only foreign currency normalized by the rate provider
const usdCurrency = "USD"

const dateLayout = "2006-01-02"

// approvalKeywords mark a message body as an approval signal. Matching is
// case-insensitive substring.
var approvalKeywords = []string{"approved", "aprobado"}

// RateSource provides the USD to local-currency rate; it never fails
type RateSource interface {
	Rate(ctx context.Context) decimal.Decimal
}

// OrderService aggregates purchase orders from the remote ERP into derived
// order views and overview KPIs.
type OrderService struct {
	reader      erp.BatchReader
	rates       RateSource
	cache       *cache.ResultCache
	overviewTTL time.Duration
	batchLimit  int
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(reader erp.BatchReader, rates RateSource, resultCache *cache.ResultCache, overviewTTL time.Duration, batchLimit int, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		reader:      reader,
		rates:       rates,
		cache:       resultCache,
		overviewTTL: overviewTTL,
		batchLimit:  batchLimit,
		logger:      logger,
	}
}

// ListOrders returns the derived view of every in-flight order in the date
// range. The search text narrows the ERP read itself; the status filters
// apply after classification. Secondary read failures degrade the affected
// sub-results instead of failing the listing.
func (s *OrderService) ListOrders(ctx context.Context, q ListQuery) ([]OrderView, error) {
	filter := []erp.Condition{
		erp.In("state", []string{
			procurement.OrderStateDraft.String(),
			procurement.OrderStateToApprove.String(),
			procurement.OrderStateConfirmed.String(),
		}),
		erp.Gte("date_order", q.From.Format(dateLayout)),
		erp.Lte("date_order", q.To.Format(dateLayout)+" 23:59:59"),
	}
	if q.Search != "" {
		filter = append(filter, erp.Condition{Field: "name", Op: "ilike", Value: q.Search})
	}

	orderRecords, err := s.reader.SearchRead(ctx, erp.Query{
		Model:  modelOrder,
		Filter: filter,
		Fields: []string{"name", "partner_id", "company_id", "amount_total", "currency_id", "state", "date_order", "create_uid"},
		Limit:  s.batchLimit,
		Order:  "date_order desc",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamRead, err)
	}
	if len(orderRecords) == 0 {
		return []OrderView{}, nil
	}

	orderIDs := make([]int64, 0, len(orderRecords))
	names := make(map[int64]string) // user id -> display name
	for _, rec := range orderRecords {
		orderIDs = append(orderIDs, rec.Int64("id"))
		if ref := rec.Ref("create_uid"); ref.Label != "" {
			names[ref.ID] = ref.Label
		}
	}

	lines, linesOK := s.readLines(ctx, orderIDs)
	messages, messagesOK := s.readMessages(ctx, orderIDs, names)
	activities, activitiesOK := s.readActivities(ctx, orderIDs, names)
	s.resolveUserNames(ctx, names)

	rate := s.rates.Rate(ctx)

	views := make([]OrderView, 0, len(orderRecords))
	for _, rec := range orderRecords {
		id := rec.Int64("id")
		state := procurement.OrderState(rec.String("state"))

		approvedIDs := map[int64]struct{}{}
		if messagesOK {
			for _, msg := range messages[id] {
				// an unset author reference cannot count as an approver
				if msg.AuthorID != 0 && isApprovalSignal(msg.Body) {
					approvedIDs[msg.AuthorID] = struct{}{}
				}
			}
		}
		requiredIDs := map[int64]struct{}{}
		for uid := range approvedIDs {
			requiredIDs[uid] = struct{}{}
		}
		pendingIDs := map[int64]struct{}{}
		if activitiesOK {
			for _, act := range activities[id] {
				if !act.IsOpen() {
					continue
				}
				requiredIDs[act.AssigneeID] = struct{}{}
				if _, approved := approvedIDs[act.AssigneeID]; !approved {
					pendingIDs[act.AssigneeID] = struct{}{}
				}
			}
		}

		receiveStatus := procurement.ReceiptStatusNotApplicable
		if linesOK {
			receiveStatus = procurement.ClassifyReceipt(lines[id])
		}

		amount := rec.Decimal("amount_total")
		currency := rec.Ref("currency_id").Label
		normalized := amount
		orderRate := decimal.NewFromInt(1)
		if currency == usdCurrency {
			normalized = amount.Mul(rate)
			orderRate = rate
		}

		views = append(views, OrderView{
			ID:               id,
			Name:             rec.String("name"),
			Supplier:         rec.Ref("partner_id").Label,
			Company:          rec.Ref("company_id").Label,
			State:            state.String(),
			OrderDate:        rec.Time("date_order"),
			CreatedBy:        displayName(names, rec.Ref("create_uid").ID),
			Currency:         currency,
			AmountTotal:      amount,
			NormalizedAmount: normalized,
			ExchangeRate:     orderRate,
			ApprovalStatus:   procurement.ClassifyApproval(state, len(approvedIDs), len(requiredIDs)),
			ReceiveStatus:    receiveStatus,
			ApprovedBy:       displayNames(names, approvedIDs),
			PendingBy:        displayNames(names, pendingIDs),
		})
	}

	filtered := views[:0]
	for _, v := range views {
		if q.ApprovalFilter != "" && v.ApprovalStatus != q.ApprovalFilter {
			continue
		}
		if q.ReceiveFilter != "" && v.ReceiveStatus != q.ReceiveFilter {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered, nil
}

// Overview returns the cached KPI aggregates for the date range, recomputing
// from an unfiltered listing on miss or expiry.
func (s *OrderService) Overview(ctx context.Context, from, to time.Time) (OverviewKPIs, error) {
	key := fmt.Sprintf("overview:%s:%s", from.Format(dateLayout), to.Format(dateLayout))
	return cache.GetOrCompute(ctx, s.cache, key, s.overviewTTL, func(ctx context.Context) (OverviewKPIs, error) {
		views, err := s.ListOrders(ctx, ListQuery{From: from, To: to})
		if err != nil {
			return OverviewKPIs{}, err
		}
		return buildOverview(views), nil
	})
}

// OrderLines returns the line drill-down for one order
func (s *OrderService) OrderLines(ctx context.Context, orderID int64) ([]LineView, error) {
	records, err := s.reader.SearchRead(ctx, erp.Query{
		Model:  modelLine,
		Filter: []erp.Condition{erp.Eq("order_id", orderID)},
		Fields: []string{"name", "product_qty", "qty_received", "price_unit", "price_subtotal"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamRead, err)
	}

	views := make([]LineView, 0, len(records))
	for _, rec := range records {
		ordered := rec.Decimal("product_qty")
		views = append(views, LineView{
			Product:     rec.String("name"),
			OrderedQty:  ordered,
			ReceivedQty: rec.Decimal("qty_received"),
			UnitPrice:   rec.Decimal("price_unit"),
			Subtotal:    rec.Decimal("price_subtotal"),
			Service:     ordered.IsZero(),
		})
	}
	return views, nil
}

// readLines bulk-reads and groups order lines; a failure degrades to nil
// with ok=false so every order classifies as NotApplicable.
func (s *OrderService) readLines(ctx context.Context, orderIDs []int64) (map[int64][]procurement.PurchaseOrderLine, bool) {
	records, err := s.reader.SearchRead(ctx, erp.Query{
		Model:  modelLine,
		Filter: []erp.Condition{erp.In("order_id", orderIDs)},
		Fields: []string{"order_id", "name", "product_qty", "qty_received", "qty_invoiced", "price_unit", "price_subtotal"},
	})
	if err != nil {
		s.logger.Warn("order line read degraded", zap.Error(err))
		return nil, false
	}

	grouped := make(map[int64][]procurement.PurchaseOrderLine)
	for _, rec := range records {
		orderID := rec.Ref("order_id").ID
		grouped[orderID] = append(grouped[orderID], procurement.PurchaseOrderLine{
			OrderID:     orderID,
			Product:     rec.String("name"),
			OrderedQty:  rec.Decimal("product_qty"),
			ReceivedQty: rec.Decimal("qty_received"),
			InvoicedQty: rec.Decimal("qty_invoiced"),
			UnitPrice:   rec.Decimal("price_unit"),
			Subtotal:    rec.Decimal("price_subtotal"),
		})
	}
	return grouped, true
}

func (s *OrderService) readMessages(ctx context.Context, orderIDs []int64, names map[int64]string) (map[int64][]procurement.ApprovalMessage, bool) {
	records, err := s.reader.SearchRead(ctx, erp.Query{
		Model: modelMessage,
		Filter: []erp.Condition{
			erp.Eq("model", modelOrder),
			erp.In("res_id", orderIDs),
		},
		Fields: []string{"res_id", "author_id", "body", "date"},
	})
	if err != nil {
		s.logger.Warn("message read degraded", zap.Error(err))
		return nil, false
	}

	grouped := make(map[int64][]procurement.ApprovalMessage)
	for _, rec := range records {
		author := rec.Ref("author_id")
		if author.Label != "" {
			names[author.ID] = author.Label
		}
		orderID := rec.Int64("res_id")
		grouped[orderID] = append(grouped[orderID], procurement.ApprovalMessage{
			OrderID:  orderID,
			AuthorID: author.ID,
			Body:     rec.String("body"),
			PostedAt: rec.Time("date"),
		})
	}
	return grouped, true
}

func (s *OrderService) readActivities(ctx context.Context, orderIDs []int64, names map[int64]string) (map[int64][]procurement.PendingActivity, bool) {
	records, err := s.reader.SearchRead(ctx, erp.Query{
		Model: modelActivity,
		Filter: []erp.Condition{
			erp.Eq("res_model", modelOrder),
			erp.In("res_id", orderIDs),
		},
		Fields: []string{"res_id", "user_id", "state", "summary"},
	})
	if err != nil {
		s.logger.Warn("activity read degraded", zap.Error(err))
		return nil, false
	}

	grouped := make(map[int64][]procurement.PendingActivity)
	for _, rec := range records {
		assignee := rec.Ref("user_id")
		if assignee.Label != "" {
			names[assignee.ID] = assignee.Label
		}
		orderID := rec.Int64("res_id")
		grouped[orderID] = append(grouped[orderID], procurement.PendingActivity{
			OrderID:    orderID,
			AssigneeID: assignee.ID,
			State:      rec.String("state"),
			Summary:    rec.String("summary"),
		})
	}
	return grouped, true
}

// resolveUserNames overlays the reference labels with a bulk user read; a
// failure just leaves the labels in place.
func (s *OrderService) resolveUserNames(ctx context.Context, names map[int64]string) {
	ids := make([]int64, 0, len(names))
	for id := range names {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	records, err := s.reader.Read(ctx, modelUser, ids, []string{"name"})
	if err != nil {
		s.logger.Warn("user name read degraded", zap.Error(err))
		return
	}
	for _, rec := range records {
		if name := rec.String("name"); name != "" {
			names[rec.Int64("id")] = name
		}
	}
}

func isApprovalSignal(body string) bool {
	lower := strings.ToLower(body)
	for _, kw := range approvalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func displayName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok {
		return name
	}
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("user-%d", id)
}

func displayNames(names map[int64]string, ids map[int64]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, displayName(names, id))
	}
	sort.Strings(out)
	return out
}

func buildOverview(views []OrderView) OverviewKPIs {
	kpis := OverviewKPIs{
		TotalOrders:     len(views),
		NormalizedTotal: decimal.Zero,
		ByApproval:      make(map[procurement.ApprovalStatus]StatusBucket),
		ByReceipt:       make(map[procurement.ReceiptStatus]StatusBucket),
	}

	notApplicable := 0
	for _, v := range views {
		kpis.NormalizedTotal = kpis.NormalizedTotal.Add(v.NormalizedAmount)

		a := kpis.ByApproval[v.ApprovalStatus]
		a.Count++
		a.Amount = a.Amount.Add(v.NormalizedAmount)
		kpis.ByApproval[v.ApprovalStatus] = a

		r := kpis.ByReceipt[v.ReceiveStatus]
		r.Count++
		r.Amount = r.Amount.Add(v.NormalizedAmount)
		kpis.ByReceipt[v.ReceiveStatus] = r

		if v.ReceiveStatus == procurement.ReceiptStatusNotApplicable {
			notApplicable++
		}
	}

	if kpis.TotalOrders > 0 {
		approved := kpis.ByApproval[procurement.ApprovalStatusApproved].Count
		kpis.ApprovedPercent = float64(approved) / float64(kpis.TotalOrders) * 100
	}
	if receivable := kpis.TotalOrders - notApplicable; receivable > 0 {
		full := kpis.ByReceipt[procurement.ReceiptStatusFullyReceived].Count
		kpis.FullyReceivedPercent = float64(full) / float64(receivable) * 100
	}
	return kpis
}

package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoUsableRate indicates the series contained no positive rate value
var ErrNoUsableRate = errors.New("rates: no usable rate in series")

// Config holds the exchange-rate provider settings
type Config struct {
	SeriesURL    string
	TTL          time.Duration
	FallbackRate float64
	UTCOffset    int // business timezone as a fixed UTC offset in hours
	Timeout      time.Duration
}

// seriesEntry is one {date, value} element of the upstream series,
// newest first
type seriesEntry struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type snapshot struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// Provider fetches and caches the USD to local-currency exchange rate.
// Rate never fails: a fetch problem falls back to the previous snapshot and
// finally to the configured constant, so callers are never blocked on rate
// availability.
type Provider struct {
	client   *resty.Client
	ttl      time.Duration
	fallback decimal.Decimal
	loc      *time.Location
	logger   *zap.Logger

	mu       sync.Mutex
	snapshot *snapshot
}

// NewProvider creates a new rate provider with the given configuration
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.SeriesURL).
		SetTimeout(cfg.Timeout)

	return &Provider{
		client:   client,
		ttl:      cfg.TTL,
		fallback: decimal.NewFromFloat(cfg.FallbackRate),
		loc:      time.FixedZone(fmt.Sprintf("UTC%+d", cfg.UTCOffset), cfg.UTCOffset*3600),
		logger:   logger,
	}
}

// Rate returns the current USD to local-currency rate. A snapshot younger
// than the TTL is served as is; otherwise the series endpoint is consulted
// and the snapshot replaced. Transport or parse failures degrade to the
// previous snapshot, then to the fallback constant.
func (p *Provider) Rate(ctx context.Context) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snapshot != nil && time.Since(p.snapshot.fetchedAt) < p.ttl {
		return p.snapshot.rate
	}

	rate, err := p.fetch(ctx)
	if err != nil {
		if p.snapshot != nil {
			p.logger.Warn("rate fetch failed, serving stale snapshot",
				zap.Error(err),
				zap.Time("fetched_at", p.snapshot.fetchedAt))
			return p.snapshot.rate
		}
		p.logger.Warn("rate fetch failed with no prior snapshot, using fallback",
			zap.Error(err),
			zap.String("fallback", p.fallback.String()))
		return p.fallback
	}

	p.snapshot = &snapshot{rate: rate, fetchedAt: time.Now()}
	p.logger.Info("exchange rate refreshed", zap.String("rate", rate.String()))
	return rate
}

// Convert normalizes a USD amount to local currency at the current rate
func (p *Provider) Convert(ctx context.Context, amountUSD decimal.Decimal) decimal.Decimal {
	return amountUSD.Mul(p.Rate(ctx))
}

// fetch pulls the series and picks today's entry in the business timezone,
// falling back to the newest entry when today is a non-business day.
func (p *Provider) fetch(ctx context.Context) (decimal.Decimal, error) {
	resp, err := p.client.R().SetContext(ctx).Get("")
	if err != nil {
		return decimal.Zero, err
	}
	if resp.StatusCode() != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rates: series request status %d", resp.StatusCode())
	}

	var series []seriesEntry
	if err := json.Unmarshal(resp.Body(), &series); err != nil {
		return decimal.Zero, fmt.Errorf("rates: parse series: %w", err)
	}
	if len(series) == 0 {
		return decimal.Zero, ErrNoUsableRate
	}

	today := time.Now().In(p.loc).Format("2006-01-02")
	entry := series[0] // newest first
	for _, e := range series {
		if e.Date == today {
			entry = e
			break
		}
	}

	if entry.Value <= 0 {
		return decimal.Zero, ErrNoUsableRate
	}
	return decimal.NewFromFloat(entry.Value), nil
}

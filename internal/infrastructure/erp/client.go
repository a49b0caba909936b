package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize is the maximum allowed response size from the ERP (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ErrRequestFailed indicates the ERP rejected or failed the call
var ErrRequestFailed = errors.New("erp: request failed")

// ErrInvalidResponse indicates the ERP returned an unparseable payload
var ErrInvalidResponse = errors.New("erp: invalid response")

// BatchReader is the read-side port against the remote ERP. All aggregators
// depend on this interface, never on the concrete client.
type BatchReader interface {
	// SearchRead issues one filtered, field-projected bulk read.
	SearchRead(ctx context.Context, q Query) ([]Record, error)
	// Read fetches the given fields for an explicit id list.
	Read(ctx context.Context, model string, ids []int64, fields []string) ([]Record, error)
}

// Config holds the remote ERP connection settings
type Config struct {
	BaseURL  string
	Database string
	UID      int64
	APIKey   string
	Timeout  time.Duration
}

// Client implements BatchReader over the ERP's JSON-RPC object endpoint
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new ERP client with the given configuration
func NewClient(config Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) String() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

// SearchRead issues a search_read call against the given model
func (c *Client) SearchRead(ctx context.Context, q Query) ([]Record, error) {
	kwargs := map[string]any{
		"fields": q.Fields,
	}
	if q.Limit > 0 {
		kwargs["limit"] = q.Limit
	}
	if q.Order != "" {
		kwargs["order"] = q.Order
	}

	filter := q.Filter
	if filter == nil {
		filter = []Condition{}
	}

	start := time.Now()
	records, err := c.execute(ctx, q.Model, "search_read", []any{filter}, kwargs)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ERP search_read",
		zap.String("model", q.Model),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

// Read fetches the given fields for an explicit id list
func (c *Client) Read(ctx context.Context, model string, ids []int64, fields []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}

	records, err := c.execute(ctx, model, "read", []any{ids}, map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ERP read",
		zap.String("model", model),
		zap.Int("ids", len(ids)),
		zap.Int("records", len(records)))
	return records, nil
}

// execute performs one execute_kw call and decodes the record list result
func (c *Client) execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) ([]Record, error) {
	callArgs := []any{c.config.Database, c.config.UID, c.config.APIKey, model, method}
	callArgs = append(callArgs, args...)
	callArgs = append(callArgs, kwargs)

	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: rpcParams{
			Service: "object",
			Method:  "execute_kw",
			Args:    callArgs,
		},
		ID: time.Now().UnixNano(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrRequestFailed, resp.StatusCode)
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrInvalidResponse, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrRequestFailed, rpcResp.Error.String())
	}

	var records []Record
	if err := json.Unmarshal(rpcResp.Result, &records); err != nil {
		return nil, fmt.Errorf("%w: decode records: %v", ErrInvalidResponse, err)
	}
	return records, nil
}

// Ensure Client implements BatchReader
var _ BatchReader = (*Client)(nil)

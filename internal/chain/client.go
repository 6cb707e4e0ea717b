package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"casperEvents/internal/ces"
	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
	"casperEvents/internal/metrics"
)

// Config configures a node client.
type Config struct {
	URL      string
	Protocol string
	Timeout  time.Duration
	Headers  map[string]string
}

// Client is a JSON-RPC client for a ledger node. It implements ces.Ledger.
type Client struct {
	url      string
	rest     *resty.Client
	protocol Protocol
	metrics  *metrics.Metrics
	logger   *zap.Logger
	nextID   atomic.Uint64
}

var _ ces.Ledger = (*Client)(nil)

// NewClient creates a client for the node at cfg.URL. m may be nil.
func NewClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("node rpc url is required")
	}
	protocol, err := ProtocolByName(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rest := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)

	return &Client{
		url:      cfg.URL,
		rest:     rest,
		protocol: protocol,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Protocol returns the active protocol adapter.
func (c *Client) Protocol() Protocol { return c.protocol }

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

const rpcMethodNotFound = -32601

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return fmt.Sprintf("rpc error: code=%d message=%s data=%s", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error: code=%d message=%s", e.Code, e.Message)
}

// notFound reports whether the node answered that the requested entry does not exist.
func (e *RPCError) notFound() bool {
	if e.Code == rpcMethodNotFound {
		return false
	}
	text := strings.ToLower(e.Message + " " + string(e.Data))
	for _, marker := range []string{"not found", "valuenotfound", "no such"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params, out interface{}) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveRPC(method, start, err) }()

	req := rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.url)
	if err != nil {
		return &errs.ConnectionError{Op: method, Err: errors.Wrap(err, "send request")}
	}
	var body rpcResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)
	if resp.IsError() && body.Error == nil {
		snippet := resp.String()
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return &errs.ConnectionError{Op: method, Err: errors.Errorf("HTTP %d: %s", resp.StatusCode(), snippet)}
	}
	if decodeErr != nil {
		return &errs.UnexpectedError{Context: method + " response", Err: errors.WithStack(decodeErr)}
	}
	if body.Error != nil {
		if body.Error.notFound() {
			return &errs.NotFoundError{What: method, Err: body.Error}
		}
		return &errs.ConnectionError{Op: method, Err: body.Error}
	}
	if len(body.Result) == 0 || string(body.Result) == "null" {
		return &errs.UnexpectedError{Context: method + ": empty result"}
	}
	if err := json.Unmarshal(body.Result, out); err != nil {
		return &errs.UnexpectedError{Context: method + " result", Err: errors.WithStack(err)}
	}
	c.logger.Debug("rpc call", zap.String("method", method), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// StateRootHash returns the latest state root hash.
func (c *Client) StateRootHash(ctx context.Context) (string, error) {
	var out struct {
		StateRootHash string `json:"state_root_hash"`
	}
	if err := c.call(ctx, "chain_get_state_root_hash", nil, &out); err != nil {
		return "", err
	}
	if out.StateRootHash == "" {
		return "", errs.Unexpected("chain_get_state_root_hash: missing state_root_hash")
	}
	return out.StateRootHash, nil
}

// NamedKeys returns the named keys of a contract as name to formatted key.
func (c *Client) NamedKeys(ctx context.Context, contract common.Hash) (map[string]string, error) {
	return c.protocol.NamedKeys(ctx, c, contract)
}

// ReadValue reads the value stored under a URef at the latest state root.
func (c *Client) ReadValue(ctx context.Context, ref clvalue.URef) (ces.StoredValue, error) {
	stored, err := c.queryGlobalState(ctx, ref.String())
	if err != nil {
		return ces.StoredValue{}, err
	}
	if stored.CLValue == nil {
		return ces.StoredValue{}, errs.Unexpected("stored value under %s is not a CLValue", ref)
	}
	return stored.CLValue.stored()
}

// ReadDictionaryItem reads one dictionary item under seed at the latest state root.
func (c *Client) ReadDictionaryItem(ctx context.Context, seed clvalue.URef, itemKey string) (ces.StoredValue, error) {
	root, err := c.StateRootHash(ctx)
	if err != nil {
		return ces.StoredValue{}, err
	}
	params := map[string]interface{}{
		"state_root_hash": root,
		"dictionary_identifier": map[string]interface{}{
			"URef": map[string]string{
				"seed_uref":           seed.String(),
				"dictionary_item_key": itemKey,
			},
		},
	}
	var out struct {
		DictionaryKey string      `json:"dictionary_key"`
		StoredValue   storedValue `json:"stored_value"`
	}
	if err := c.call(ctx, "state_get_dictionary_item", params, &out); err != nil {
		return ces.StoredValue{}, err
	}
	if out.StoredValue.CLValue == nil {
		return ces.StoredValue{}, errs.Unexpected("dictionary item %s is not a CLValue", itemKey)
	}
	return out.StoredValue.CLValue.stored()
}

// ExecutionEffects returns the global state writes of one execution, in order.
func (c *Client) ExecutionEffects(ctx context.Context, executionHash common.Hash) ([]ces.Write, error) {
	return c.protocol.ExecutionEffects(ctx, c, executionHash)
}

func (c *Client) queryGlobalState(ctx context.Context, key string) (storedValue, error) {
	root, err := c.StateRootHash(ctx)
	if err != nil {
		return storedValue{}, err
	}
	params := map[string]interface{}{
		"state_identifier": map[string]string{"StateRootHash": root},
		"key":              key,
		"path":             []string{},
	}
	var out struct {
		StoredValue storedValue `json:"stored_value"`
	}
	if err := c.call(ctx, "query_global_state", params, &out); err != nil {
		return storedValue{}, err
	}
	return out.StoredValue, nil
}

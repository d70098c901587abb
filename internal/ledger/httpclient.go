package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// HTTPClient implements Client against the ledger node's JSON-over-HTTP API
type HTTPClient struct {
	endpoint string
	http     *http.Client
	logger   *logger.Logger
}

// NewHTTPClient creates a ledger client with a per-call request timeout
func NewHTTPClient(cfg *config.LedgerConfig, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		http: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
		logger: log,
	}
}

// SubmitHealthRecord anchors an encrypted record on the ledger
func (c *HTTPClient) SubmitHealthRecord(ctx context.Context, req *SubmitRecordRequest) (*SubmitRecordResponse, error) {
	var resp SubmitRecordResponse
	if err := c.post(ctx, "/v1/records", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, types.NewBlockchainError(resp.Message, nil)
	}
	return &resp, nil
}

// VerifyHealthRecord checks an anchored hash against an expected value
func (c *HTTPClient) VerifyHealthRecord(ctx context.Context, req *VerifyRecordRequest) (*VerifyRecordResponse, error) {
	var resp VerifyRecordResponse
	if err := c.post(ctx, "/v1/records/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyWithZKP submits a proof for on-ledger verification
func (c *HTTPClient) VerifyWithZKP(ctx context.Context, req *VerifyZKPRequest) (*VerifyZKPResponse, error) {
	var resp VerifyZKPResponse
	if err := c.post(ctx, "/v1/zkp/verify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetHealthDataRecords pages through anchored records
func (c *HTTPClient) GetHealthDataRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error) {
	var resp ListRecordsResponse
	if err := c.post(ctx, "/v1/records/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AuthorizeAccess registers an access grant on the ledger
func (c *HTTPClient) AuthorizeAccess(ctx context.Context, req *AuthorizeAccessRequest) (*AuthorizeAccessResponse, error) {
	var resp AuthorizeAccessResponse
	if err := c.post(ctx, "/v1/access/authorize", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, types.NewBlockchainError(resp.Message, nil)
	}
	return &resp, nil
}

// RevokeAccess revokes a previously registered grant
func (c *HTTPClient) RevokeAccess(ctx context.Context, req *RevokeAccessRequest) (*RevokeAccessResponse, error) {
	var resp RevokeAccessResponse
	if err := c.post(ctx, "/v1/access/revoke", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBlockchainStatus fetches node health
func (c *HTTPClient) GetBlockchainStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.post(ctx, "/v1/status", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post performs one JSON round trip and classifies failures. Anything that
// fails before a response arrives is a pre-acknowledgement NETWORK_ERROR;
// once the node has answered, HTTP-level rejection is classified by status.
func (c *HTTPClient) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return types.NewInvalidRequestError("failed to encode request", map[string]interface{}{"path": path})
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return types.NewInvalidRequestError("failed to build request", map[string]interface{}{"path": path})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return classifyTransportError(path, err, ctx.Err())
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return types.NewNetworkError(fmt.Sprintf("failed to read ledger response for %s", path), err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
		// fall through to decode
	case httpResp.StatusCode == http.StatusNotFound:
		return types.NewDataNotFoundError(fmt.Sprintf("ledger resource not found: %s", path))
	case httpResp.StatusCode == http.StatusForbidden:
		return types.NewPermissionDeniedError(fmt.Sprintf("ledger rejected %s: forbidden", path))
	case httpResp.StatusCode >= 400 && httpResp.StatusCode < 500:
		return types.NewInvalidRequestError(
			fmt.Sprintf("ledger rejected %s: %s", path, string(body)),
			map[string]interface{}{"status_code": httpResp.StatusCode},
		)
	default:
		// The node received and processed the request; retrying blindly
		// could double-anchor, so this is not a NETWORK_ERROR.
		return types.NewBlockchainError(
			fmt.Sprintf("ledger error on %s: status %d", path, httpResp.StatusCode), nil,
		)
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return types.NewBlockchainError(fmt.Sprintf("failed to decode ledger response for %s", path), err)
	}

	return nil
}

// classifyTransportError maps a failed round trip to the error taxonomy. A
// dial failure means no connection was ever established, so the node cannot
// have seen the request: that stays a retryable NETWORK_ERROR even when the
// dial itself timed out. Deadline expiry after the connection was made is
// ambiguous and maps to TIMEOUT.
func classifyTransportError(path string, err, ctxErr error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return types.NewNetworkError(fmt.Sprintf("ledger call %s failed before acknowledgement", path), err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctxErr, context.DeadlineExceeded) {
		return types.NewTimeoutError(fmt.Sprintf("ledger call %s timed out", path), err)
	}
	if errors.Is(err, context.Canceled) {
		return types.NewTimeoutError(fmt.Sprintf("ledger call %s canceled", path), err)
	}
	return types.NewNetworkError(fmt.Sprintf("ledger call %s failed before acknowledgement", path), err)
}

package ledger

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

func newTestClient(endpoint string) *HTTPClient {
	return NewHTTPClient(&config.LedgerConfig{
		Endpoint:       endpoint,
		RequestTimeout: 2,
	}, logger.New("test", "error"))
}

func TestHTTPClient_SubmitHealthRecord(t *testing.T) {
	t.Run("successful submission", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/records", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req SubmitRecordRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "subject-1", req.SubjectID)

			json.NewEncoder(w).Encode(SubmitRecordResponse{
				TransactionID: "tx-001",
				BlockHash:     "0xabc",
				Success:       true,
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		resp, err := client.SubmitHealthRecord(context.Background(), &SubmitRecordRequest{
			SubjectID:   "subject-1",
			DataType:    "vitals",
			ContentHash: []byte{0x01},
			Timestamp:   time.Now(),
		})

		require.NoError(t, err)
		assert.Equal(t, "tx-001", resp.TransactionID)
	})

	t.Run("acknowledged rejection surfaces as ledger error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(SubmitRecordResponse{
				Success: false,
				Message: "endorsement policy failure",
			})
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.SubmitHealthRecord(context.Background(), &SubmitRecordRequest{SubjectID: "subject-1"})

		assert.Equal(t, types.ErrCodeBlockchainError, types.CodeOf(err))
		assert.False(t, types.IsRetryable(err))
	})
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	t.Run("unreachable node is a retryable network error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // refuse connections

		client := newTestClient(server.URL)
		_, err := client.GetBlockchainStatus(context.Background(), &StatusRequest{})

		assert.Equal(t, types.ErrCodeNetworkError, types.CodeOf(err))
		assert.True(t, types.IsRetryable(err))
	})

	t.Run("5xx after acknowledgement is a non-retryable ledger error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.GetBlockchainStatus(context.Background(), &StatusRequest{})

		assert.Equal(t, types.ErrCodeBlockchainError, types.CodeOf(err))
		assert.False(t, types.IsRetryable(err))
	})

	t.Run("404 maps to data not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.GetHealthDataRecords(context.Background(), &ListRecordsRequest{SubjectID: "subject-1"})

		assert.Equal(t, types.ErrCodeDataNotFound, types.CodeOf(err))
	})

	t.Run("403 maps to permission denied", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.RevokeAccess(context.Background(), &RevokeAccessRequest{AuthorizationID: "grant-1"})

		assert.Equal(t, types.ErrCodePermissionDenied, types.CodeOf(err))
	})

	t.Run("other 4xx maps to invalid request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.VerifyHealthRecord(context.Background(), &VerifyRecordRequest{TransactionID: "tx-1"})

		assert.Equal(t, types.ErrCodeInvalidRequest, types.CodeOf(err))
	})

	t.Run("dial timeout is a retryable network error", func(t *testing.T) {
		// The deadline fired before any connection existed, so the node
		// cannot have seen the request.
		dialErr := &url.Error{
			Op:  "Post",
			URL: "http://ledger.internal/v1/records",
			Err: &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded},
		}

		err := classifyTransportError("/v1/records", dialErr, context.DeadlineExceeded)

		assert.Equal(t, types.ErrCodeNetworkError, types.CodeOf(err))
		assert.True(t, types.IsRetryable(err))
	})

	t.Run("deadline expiry after the connection maps to timeout", func(t *testing.T) {
		wrapped := &url.Error{
			Op:  "Post",
			URL: "http://ledger.internal/v1/records",
			Err: context.DeadlineExceeded,
		}

		err := classifyTransportError("/v1/records", wrapped, context.DeadlineExceeded)

		assert.Equal(t, types.ErrCodeTimeout, types.CodeOf(err))
		assert.False(t, types.IsRetryable(err))
	})

	t.Run("expired context maps to timeout", func(t *testing.T) {
		blocked := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-blocked
		}))
		defer server.Close()
		defer close(blocked)

		client := newTestClient(server.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.GetBlockchainStatus(ctx, &StatusRequest{})

		assert.Equal(t, types.ErrCodeTimeout, types.CodeOf(err))
		assert.False(t, types.IsRetryable(err))
	})
}

// Package integrity confirms that anchored records still match the hash
// commitments recorded on the ledger.
package integrity

import (
	"bytes"
	"context"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/internal/status"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// Verifier re-checks anchored hashes against the ledger. Verification is a
// pure read: it holds no state, so concurrent and repeated calls on the same
// transaction are safe and idempotent.
type Verifier struct {
	client  ledger.Client
	monitor *status.Monitor
	logger  *logger.Logger
	now     func() time.Time
}

// NewVerifier creates an integrity verifier
func NewVerifier(client ledger.Client, monitor *status.Monitor, log *logger.Logger) *Verifier {
	return &Verifier{
		client:  client,
		monitor: monitor,
		logger:  log,
		now:     time.Now,
	}
}

// Verify re-fetches the anchored record and compares its hash byte-for-byte
// with expectedHash. The caller-supplied hash is never treated as ground
// truth — the anchored value is, and equality plus confirmed status is what
// makes the result valid. A mismatch yields Valid=false, not an error: the
// outcome is terminal for these exact inputs and retrying cannot change it.
func (v *Verifier) Verify(ctx context.Context, transactionID string, expectedHash []byte) (*types.VerificationResult, error) {
	if transactionID == "" {
		return nil, types.NewInvalidRequestError("transaction ID is required", nil)
	}
	if len(expectedHash) == 0 {
		return nil, types.NewInvalidRequestError("expected hash is required", nil)
	}

	if !v.monitor.Allow() {
		return nil, types.NewNetworkError("ledger circuit breaker is open", nil)
	}

	// Ask the node for its own verdict first; it compares against the
	// anchored commitment on its side.
	resp, err := v.client.VerifyHealthRecord(ctx, &ledger.VerifyRecordRequest{
		TransactionID: transactionID,
		ContentHash:   expectedHash,
	})
	if err != nil {
		return nil, err
	}

	// Independently re-fetch the anchored record and compare locally. The
	// record itself, not the node's boolean, carries the hash we trust.
	listResp, err := v.client.GetHealthDataRecords(ctx, &ledger.ListRecordsRequest{
		TransactionID: transactionID,
		Page:          1,
		PageSize:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(listResp.Records) == 0 {
		return nil, types.NewDataNotFoundError("transaction not found on ledger: " + transactionID)
	}
	anchored := listResp.Records[0]

	verifiedAt := resp.VerificationTimestamp
	if verifiedAt.IsZero() {
		verifiedAt = v.now()
	}

	result := &types.VerificationResult{
		VerificationTimestamp: verifiedAt,
	}

	switch {
	case !bytes.Equal(anchored.ContentHash, expectedHash):
		result.Valid = false
		result.Message = "content hash does not match the anchored value"
	case anchored.Status != types.RecordStatusConfirmed:
		result.Valid = false
		result.Message = "record is not confirmed on the ledger (status: " + string(anchored.Status) + ")"
	case !resp.Valid:
		result.Valid = false
		result.Message = "ledger rejected the verification: " + resp.Message
	default:
		result.Valid = true
		result.Message = "data integrity confirmed"
	}

	v.logger.Audit(anchored.SubjectID, "verify_record_integrity", transactionID, result.Valid, map[string]interface{}{
		"record_status": string(anchored.Status),
	})

	return result, nil
}

// Package anchor hashes and encrypts health records and submits the hash
// commitments to the ledger.
package anchor

import (
	"context"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/internal/status"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/encryption"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// RecordStore mirrors anchored records locally for disconnected reads. The
// ledger remains the source of truth; mirror failures are logged, never
// surfaced to the caller.
type RecordStore interface {
	SaveRecord(ctx context.Context, record *types.HealthRecord) error
	UpdateRecordStatus(ctx context.Context, transactionID string, recordStatus types.RecordStatus, blockHash string) error
	ListRecords(ctx context.Context, subjectID, dataType string, page, pageSize int) (*types.RecordPage, error)
}

// Service implements health record anchoring
type Service struct {
	client  ledger.Client
	monitor *status.Monitor
	deriver *encryption.KeyDeriver
	retry   ledger.RetryPolicy
	store   RecordStore
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a record anchoring service. store may be nil when no
// local mirror is configured.
func NewService(
	client ledger.Client,
	monitor *status.Monitor,
	deriver *encryption.KeyDeriver,
	retry ledger.RetryPolicy,
	store RecordStore,
	log *logger.Logger,
) *Service {
	return &Service{
		client:  client,
		monitor: monitor,
		deriver: deriver,
		retry:   retry,
		store:   store,
		logger:  log,
		now:     time.Now,
	}
}

// Submit hashes and encrypts the payload, then anchors the commitment on the
// ledger. The returned record is pending; confirmation arrives out-of-band
// via RefreshRecord or integrity verification. Retries cover only
// pre-acknowledgement transport failures — an acknowledged-then-rejected
// transaction is never resubmitted, since that could double-anchor.
func (s *Service) Submit(ctx context.Context, subjectID, dataType string, rawPayload []byte, metadata types.Metadata) (*types.HealthRecord, error) {
	if subjectID == "" {
		return nil, types.NewInvalidRequestError("subject ID is required", nil)
	}
	if dataType == "" {
		return nil, types.NewInvalidRequestError("data type is required", nil)
	}
	if len(rawPayload) == 0 {
		return nil, types.NewInvalidRequestError("payload must not be empty", nil)
	}

	contentHash := encryption.HashData(rawPayload)

	cipher, err := s.deriver.SubjectCipher(subjectID)
	if err != nil {
		return nil, types.NewEncryptionError("failed to derive subject key", err)
	}
	encryptedPayload, err := cipher.Encrypt(rawPayload)
	if err != nil {
		return nil, types.NewEncryptionError("failed to encrypt payload", err)
	}

	// Breaker consult happens before any network attempt.
	if !s.monitor.Allow() {
		return nil, types.NewNetworkError("ledger circuit breaker is open", nil)
	}

	req := &ledger.SubmitRecordRequest{
		SubjectID:        subjectID,
		DataType:         dataType,
		ContentHash:      contentHash,
		EncryptedPayload: encryptedPayload,
		Metadata:         metadata.Clone(),
		Timestamp:        s.now(),
	}

	var resp *ledger.SubmitRecordResponse
	err = s.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = s.client.SubmitHealthRecord(ctx, req)
		return callErr
	})
	if err != nil {
		s.logger.LedgerTransaction("submit_health_record", "", false, map[string]interface{}{
			"subject_id": subjectID,
			"data_type":  dataType,
			"error":      err.Error(),
		})
		return nil, err
	}

	record := &types.HealthRecord{
		ID:               resp.TransactionID,
		SubjectID:        subjectID,
		DataType:         dataType,
		ContentHash:      contentHash,
		EncryptedPayload: encryptedPayload,
		Metadata:         req.Metadata,
		Timestamp:        req.Timestamp,
		BlockHash:        resp.BlockHash,
		Status:           types.RecordStatusPending,
	}

	if s.store != nil {
		if storeErr := s.store.SaveRecord(ctx, record); storeErr != nil {
			s.logger.WithComponent("anchor").WithError(storeErr).Warn("Failed to mirror record locally")
		}
	}

	s.logger.LedgerTransaction("submit_health_record", record.ID, true, map[string]interface{}{
		"subject_id": subjectID,
		"data_type":  dataType,
	})

	return record.Clone(), nil
}

// RefreshRecord re-reads the record's ledger state and returns an updated
// copy. Pending records move to confirmed or failed according to the ledger;
// a confirmed record never changes again.
func (s *Service) RefreshRecord(ctx context.Context, record *types.HealthRecord) (*types.HealthRecord, error) {
	if record == nil || record.ID == "" {
		return nil, types.NewInvalidRequestError("record with transaction ID is required", nil)
	}
	if record.Status == types.RecordStatusConfirmed {
		return record.Clone(), nil
	}

	if !s.monitor.Allow() {
		return nil, types.NewNetworkError("ledger circuit breaker is open", nil)
	}

	resp, err := s.client.GetHealthDataRecords(ctx, &ledger.ListRecordsRequest{
		SubjectID:     record.SubjectID,
		TransactionID: record.ID,
		Page:          1,
		PageSize:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, types.NewDataNotFoundError("transaction not found on ledger: " + record.ID)
	}

	current := resp.Records[0]
	updated := record.Clone()
	updated.Status = current.Status
	if current.BlockHash != "" {
		updated.BlockHash = current.BlockHash
	}

	if s.store != nil && updated.Status != record.Status {
		if storeErr := s.store.UpdateRecordStatus(ctx, updated.ID, updated.Status, updated.BlockHash); storeErr != nil {
			s.logger.WithComponent("anchor").WithError(storeErr).Warn("Failed to update mirrored record status")
		}
	}

	return updated, nil
}

// ListRecords pages through a subject's anchored records. When the ledger is
// unreachable the local mirror, if configured, serves the listing instead.
func (s *Service) ListRecords(ctx context.Context, subjectID, dataType string, page, pageSize int) (*types.RecordPage, error) {
	if subjectID == "" {
		return nil, types.NewInvalidRequestError("subject ID is required", nil)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	if s.monitor.Allow() {
		resp, err := s.client.GetHealthDataRecords(ctx, &ledger.ListRecordsRequest{
			SubjectID: subjectID,
			DataType:  dataType,
			Page:      page,
			PageSize:  pageSize,
		})
		if err == nil {
			return &types.RecordPage{
				Records:    resp.Records,
				TotalCount: resp.TotalCount,
				Page:       resp.Page,
				PageSize:   resp.PageSize,
			}, nil
		}
		if s.store == nil || !types.IsRetryable(err) {
			return nil, err
		}
		s.logger.WithComponent("anchor").WithError(err).Warn("Ledger listing failed, serving local mirror")
	} else if s.store == nil {
		return nil, types.NewNetworkError("ledger circuit breaker is open", nil)
	}

	return s.store.ListRecords(ctx, subjectID, dataType, page, pageSize)
}

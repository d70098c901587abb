// Package repository implements the local mirror persistence over PostgreSQL.
// The mirror serves listings when the ledger is unreachable; it is never the
// source of truth.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// RecordRepository mirrors anchored health records
type RecordRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRecordRepository creates a record mirror repository
func NewRecordRepository(db *sql.DB, log *logger.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: log,
	}
}

// SaveRecord upserts a mirrored record keyed by its transaction ID
func (r *RecordRepository) SaveRecord(ctx context.Context, record *types.HealthRecord) error {
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal record metadata: %w", err)
	}

	query := `
		INSERT INTO health_records (
			transaction_id, subject_id, data_type, content_hash,
			encrypted_payload, metadata, record_timestamp, block_hash,
			status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (transaction_id) DO UPDATE SET
			block_hash = EXCLUDED.block_hash,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.SubjectID,
		record.DataType,
		record.ContentHash,
		record.EncryptedPayload,
		metadataJSON,
		record.Timestamp,
		record.BlockHash,
		string(record.Status),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save health record: %w", err)
	}

	return nil
}

// UpdateRecordStatus moves a mirrored record to the given ledger status
func (r *RecordRepository) UpdateRecordStatus(ctx context.Context, transactionID string, recordStatus types.RecordStatus, blockHash string) error {
	query := `
		UPDATE health_records
		SET status = $1, block_hash = $2, updated_at = $3
		WHERE transaction_id = $4`

	result, err := r.db.ExecContext(ctx, query, string(recordStatus), blockHash, time.Now(), transactionID)
	if err != nil {
		return fmt.Errorf("failed to update record status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("health record not found: %s", transactionID)
	}

	return nil
}

// ListRecords pages through mirrored records for a subject, newest first
func (r *RecordRepository) ListRecords(ctx context.Context, subjectID, dataType string, page, pageSize int) (*types.RecordPage, error) {
	countQuery := `SELECT COUNT(*) FROM health_records WHERE subject_id = $1`
	listQuery := `
		SELECT transaction_id, subject_id, data_type, content_hash,
			   encrypted_payload, metadata, record_timestamp, block_hash, status
		FROM health_records
		WHERE subject_id = $1`

	args := []interface{}{subjectID}
	if dataType != "" {
		countQuery += " AND data_type = $2"
		listQuery += " AND data_type = $2"
		args = append(args, dataType)
	}

	var totalCount int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count health records: %w", err)
	}

	listQuery += fmt.Sprintf(" ORDER BY record_timestamp DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list health records: %w", err)
	}
	defer rows.Close()

	var records []*types.HealthRecord
	for rows.Next() {
		var record types.HealthRecord
		var metadataJSON []byte
		var recordStatus string

		err := rows.Scan(
			&record.ID,
			&record.SubjectID,
			&record.DataType,
			&record.ContentHash,
			&record.EncryptedPayload,
			&metadataJSON,
			&record.Timestamp,
			&record.BlockHash,
			&recordStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health record row: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal record metadata: %w", err)
			}
		}
		record.Status = types.RecordStatus(recordStatus)

		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health record rows: %w", err)
	}

	return &types.RecordPage{
		Records:    records,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

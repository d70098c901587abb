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

// GrantRepository persists access grants for display and audit
type GrantRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewGrantRepository creates a grant repository
func NewGrantRepository(db *sql.DB, log *logger.Logger) *GrantRepository {
	return &GrantRepository{
		db:     db,
		logger: log,
	}
}

// SaveGrant upserts a grant keyed by its authorization ID
func (r *GrantRepository) SaveGrant(ctx context.Context, grant *types.AccessGrant) error {
	dataTypesJSON, err := json.Marshal(grant.DataTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal grant data types: %w", err)
	}
	permissionsJSON, err := json.Marshal(grant.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal grant permissions: %w", err)
	}
	var policiesJSON []byte
	if grant.Policies != nil {
		policiesJSON, err = json.Marshal(grant.Policies)
		if err != nil {
			return fmt.Errorf("failed to marshal grant policies: %w", err)
		}
	}

	query := `
		INSERT INTO access_grants (
			id, subject_id, grantee_id, data_types, permissions,
			policies, expiration_time, created_at, status, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		grant.ID,
		grant.SubjectID,
		grant.GranteeID,
		dataTypesJSON,
		permissionsJSON,
		policiesJSON,
		grant.ExpirationTime,
		grant.CreatedAt,
		string(grant.Status),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save access grant: %w", err)
	}

	return nil
}

// UpdateGrantRevocation marks a grant as revoked with its revocation time
func (r *GrantRepository) UpdateGrantRevocation(ctx context.Context, grantID string, revokedAt time.Time, reason string) error {
	query := `
		UPDATE access_grants
		SET status = $1, revoked_at = $2, revocation_reason = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.ExecContext(ctx, query,
		string(types.GrantStatusRevoked), revokedAt, reason, time.Now(), grantID)
	if err != nil {
		return fmt.Errorf("failed to update grant revocation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("access grant not found: %s", grantID)
	}

	return nil
}

// ListGrantsBySubject returns the persisted grants issued by a subject,
// newest first
func (r *GrantRepository) ListGrantsBySubject(ctx context.Context, subjectID string) ([]*types.AccessGrant, error) {
	query := `
		SELECT id, subject_id, grantee_id, data_types, permissions,
			   policies, expiration_time, created_at, status,
			   revoked_at, revocation_reason
		FROM access_grants
		WHERE subject_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}
	defer rows.Close()

	var grants []*types.AccessGrant
	for rows.Next() {
		var grant types.AccessGrant
		var dataTypesJSON, permissionsJSON, policiesJSON []byte
		var grantStatus string
		var revokedAt sql.NullTime
		var revocationReason sql.NullString

		err := rows.Scan(
			&grant.ID,
			&grant.SubjectID,
			&grant.GranteeID,
			&dataTypesJSON,
			&permissionsJSON,
			&policiesJSON,
			&grant.ExpirationTime,
			&grant.CreatedAt,
			&grantStatus,
			&revokedAt,
			&revocationReason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access grant row: %w", err)
		}

		if err := json.Unmarshal(dataTypesJSON, &grant.DataTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grant data types: %w", err)
		}
		if err := json.Unmarshal(permissionsJSON, &grant.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grant permissions: %w", err)
		}
		if len(policiesJSON) > 0 {
			if err := json.Unmarshal(policiesJSON, &grant.Policies); err != nil {
				return nil, fmt.Errorf("failed to unmarshal grant policies: %w", err)
			}
		}
		grant.Status = types.GrantStatus(grantStatus)
		if revokedAt.Valid {
			t := revokedAt.Time
			grant.RevokedAt = &t
		}
		if revocationReason.Valid {
			grant.RevocationReason = revocationReason.String
		}

		grants = append(grants, &grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access grant rows: %w", err)
	}

	return grants, nil
}

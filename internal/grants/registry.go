// Package grants issues, queries, and revokes time-bound access grants over
// a subject's health data.
package grants

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// GrantStore persists grants for display and audit. Failures are logged,
// never surfaced: the in-memory set is authoritative for decisions.
type GrantStore interface {
	SaveGrant(ctx context.Context, grant *types.AccessGrant) error
	UpdateGrantRevocation(ctx context.Context, grantID string, revokedAt time.Time, reason string) error
}

// Registry owns the grant set. It is the single writer: all mutations go
// through Authorize and Revoke, and queries read under the same lock.
// Expiry is decided by comparing the clock against ExpirationTime at query
// time, so no background sweep exists and the stored EXPIRED status is
// cosmetic.
type Registry struct {
	client ledger.Client
	store  GrantStore
	logger *logger.Logger

	// now is injectable so expiry tests can run on a fixed clock
	now func() time.Time

	// revokeMu serializes revocations end to end, ledger call included, so
	// racing revokes of the same grant cannot both issue the RPC. mu guards
	// the map and grant fields and is never held across a ledger call.
	revokeMu sync.Mutex
	mu       sync.RWMutex
	grants   map[string]*types.AccessGrant
}

// NewRegistry creates a grant registry. store may be nil when no persistence
// is configured.
func NewRegistry(client ledger.Client, store GrantStore, log *logger.Logger) *Registry {
	return &Registry{
		client: client,
		store:  store,
		logger: log,
		now:    time.Now,
		grants: make(map[string]*types.AccessGrant),
	}
}

// Authorize issues a grant letting granteeID exercise the given permissions
// over subjectID's data types until now+ttlSeconds. Policies may widen the
// permission set: full_access grants everything, write_access adds WRITE.
func (r *Registry) Authorize(
	ctx context.Context,
	subjectID, granteeID string,
	dataTypes []string,
	permissions []types.Permission,
	ttlSeconds int64,
	policies map[string]string,
) (*types.AccessGrant, error) {
	if subjectID == "" || granteeID == "" {
		return nil, types.NewInvalidRequestError("subject and grantee IDs are required", nil)
	}
	if ttlSeconds <= 0 {
		return nil, types.NewInvalidRequestError("ttlSeconds must be positive", map[string]interface{}{
			"ttl_seconds": ttlSeconds,
		})
	}
	if len(dataTypes) == 0 {
		return nil, types.NewInvalidRequestError("at least one data type is required", nil)
	}
	permissions = expandPolicyPermissions(permissions, policies)
	if len(permissions) == 0 {
		return nil, types.NewInvalidRequestError("at least one permission is required", nil)
	}
	for _, p := range permissions {
		if !p.Valid() {
			return nil, types.NewInvalidRequestError("unknown permission: "+string(p), nil)
		}
	}

	createdAt := r.now()
	expiration := createdAt.Add(time.Duration(ttlSeconds) * time.Second)

	resp, err := r.client.AuthorizeAccess(ctx, &ledger.AuthorizeAccessRequest{
		SubjectID:      subjectID,
		GranteeID:      granteeID,
		DataTypes:      dataTypes,
		Permissions:    permissions,
		ExpirationTime: expiration,
		Policies:       policies,
	})
	if err != nil {
		return nil, err
	}

	grantID := resp.AuthorizationID
	if grantID == "" {
		grantID = uuid.New().String()
	}

	grant := &types.AccessGrant{
		ID:             grantID,
		SubjectID:      subjectID,
		GranteeID:      granteeID,
		DataTypes:      append([]string(nil), dataTypes...),
		Permissions:    permissions,
		Policies:       clonePolicies(policies),
		ExpirationTime: expiration,
		CreatedAt:      createdAt,
		Status:         types.GrantStatusActive,
	}

	r.mu.Lock()
	r.grants[grant.ID] = grant
	r.mu.Unlock()

	if r.store != nil {
		if storeErr := r.store.SaveGrant(ctx, grant); storeErr != nil {
			r.logger.WithComponent("grants").WithError(storeErr).Warn("Failed to persist grant")
		}
	}

	r.logger.Audit(subjectID, "authorize_access", grant.ID, true, map[string]interface{}{
		"grantee_id": granteeID,
		"data_types": dataTypes,
		"expires_at": expiration,
	})

	return grant.Clone(), nil
}

// Revoke transitions the grant to REVOKED, the sole terminal state. Only the
// grant's subject may revoke. Revoking an already-revoked grant is a no-op
// that succeeds with the original revocation timestamp.
func (r *Registry) Revoke(ctx context.Context, grantID, requesterID, reason string) (*types.RevocationResult, error) {
	if grantID == "" || requesterID == "" {
		return nil, types.NewInvalidRequestError("grant ID and requester ID are required", nil)
	}

	r.revokeMu.Lock()
	defer r.revokeMu.Unlock()

	// With revokeMu held no other revocation can mutate the grant, so the
	// fields read here cannot change before the write below.
	r.mu.RLock()
	grant, ok := r.grants[grantID]
	var ownerID string
	var alreadyRevokedAt *time.Time
	if ok {
		ownerID = grant.SubjectID
		if grant.Status == types.GrantStatusRevoked {
			alreadyRevokedAt = grant.RevokedAt
		}
	}
	r.mu.RUnlock()

	if !ok {
		return nil, types.NewDataNotFoundError("grant not found: " + grantID)
	}

	if ownerID != requesterID {
		r.logger.Security("revoke_denied", requesterID, map[string]interface{}{
			"grant_id": grantID,
			"owner":    ownerID,
		})
		return nil, types.NewPermissionDeniedError("only the grant's subject may revoke it")
	}

	if alreadyRevokedAt != nil {
		return &types.RevocationResult{
			Success:             true,
			RevocationTimestamp: *alreadyRevokedAt,
		}, nil
	}

	if reason == "" {
		reason = "revoked by subject"
	}

	resp, err := r.client.RevokeAccess(ctx, &ledger.RevokeAccessRequest{
		AuthorizationID: grantID,
		SubjectID:       requesterID,
		Reason:          reason,
	})
	if err != nil {
		return nil, err
	}

	revokedAt := resp.RevocationTimestamp
	if revokedAt.IsZero() {
		revokedAt = r.now()
	}

	r.mu.Lock()
	grant.Status = types.GrantStatusRevoked
	grant.RevokedAt = &revokedAt
	grant.RevocationReason = reason
	r.mu.Unlock()

	if r.store != nil {
		if storeErr := r.store.UpdateGrantRevocation(ctx, grantID, revokedAt, reason); storeErr != nil {
			r.logger.WithComponent("grants").WithError(storeErr).Warn("Failed to persist grant revocation")
		}
	}

	r.logger.Audit(requesterID, "revoke_access", grantID, true, map[string]interface{}{
		"reason": reason,
	})

	return &types.RevocationResult{Success: true, RevocationTimestamp: revokedAt}, nil
}

// IsAuthorized reports whether granteeID may exercise permission over
// subjectID's dataType right now. Pure query: the decision compares the
// clock against each grant's expiration directly and never trusts the
// stored status field for expiry.
func (r *Registry) IsAuthorized(granteeID, subjectID, dataType string, permission types.Permission) bool {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, grant := range r.grants {
		if grant.GranteeID != granteeID || grant.SubjectID != subjectID {
			continue
		}
		if grant.Allows(dataType, permission, now) {
			return true
		}
	}
	return false
}

// Get returns a display copy of the grant. The copy's status reads EXPIRED
// when the deadline has passed and the grant is not revoked; the stored
// grant is never rewritten.
func (r *Registry) Get(grantID string) (*types.AccessGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grant, ok := r.grants[grantID]
	if !ok {
		return nil, types.NewDataNotFoundError("grant not found: " + grantID)
	}
	return r.displayCopy(grant), nil
}

// ListBySubject returns display copies of all grants issued by the subject
func (r *Registry) ListBySubject(subjectID string) []*types.AccessGrant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*types.AccessGrant
	for _, grant := range r.grants {
		if grant.SubjectID == subjectID {
			out = append(out, r.displayCopy(grant))
		}
	}
	return out
}

func (r *Registry) displayCopy(grant *types.AccessGrant) *types.AccessGrant {
	out := grant.Clone()
	if out.Status != types.GrantStatusRevoked && out.ExpiredAt(r.now()) {
		out.Status = types.GrantStatusExpired
	}
	return out
}

// clonePolicies copies the caller's policy map so the stored grant never
// aliases caller-owned memory.
func clonePolicies(policies map[string]string) map[string]string {
	if policies == nil {
		return nil
	}
	out := make(map[string]string, len(policies))
	for k, v := range policies {
		out[k] = v
	}
	return out
}

func expandPolicyPermissions(permissions []types.Permission, policies map[string]string) []types.Permission {
	out := append([]types.Permission(nil), permissions...)

	add := func(p types.Permission) {
		for _, existing := range out {
			if existing == p {
				return
			}
		}
		out = append(out, p)
	}

	if policies["full_access"] == "true" {
		add(types.PermissionRead)
		add(types.PermissionWrite)
		add(types.PermissionShare)
		add(types.PermissionDelete)
	} else if policies["write_access"] == "true" {
		add(types.PermissionWrite)
	}

	return out
}

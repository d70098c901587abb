package types

import "time"

// Permission is a single operation a grantee may perform on a data type
type Permission string

const (
	PermissionRead   Permission = "READ"
	PermissionWrite  Permission = "WRITE"
	PermissionShare  Permission = "SHARE"
	PermissionDelete Permission = "DELETE"
)

// Valid reports whether p is a known permission
func (p Permission) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionShare, PermissionDelete:
		return true
	}
	return false
}

// GrantStatus tracks the stored lifecycle of an access grant. EXPIRED is
// cosmetic only: authorization decisions always compare the expiration time
// against the clock at query time. REVOKED is the sole terminal transition.
type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "ACTIVE"
	GrantStatusExpired GrantStatus = "EXPIRED"
	GrantStatusRevoked GrantStatus = "REVOKED"
	GrantStatusPending GrantStatus = "PENDING"
)

// AccessGrant is a time-bound authorization letting a grantee exercise
// specific permissions over a subject's data types.
type AccessGrant struct {
	ID               string            `json:"id"`
	SubjectID        string            `json:"subject_id"`
	GranteeID        string            `json:"grantee_id"`
	DataTypes        []string          `json:"data_types"`
	Permissions      []Permission      `json:"permissions"`
	Policies         map[string]string `json:"policies,omitempty"`
	ExpirationTime   time.Time         `json:"expiration_time"`
	CreatedAt        time.Time         `json:"created_at"`
	Status           GrantStatus       `json:"status"`
	RevokedAt        *time.Time        `json:"revoked_at,omitempty"`
	RevocationReason string            `json:"revocation_reason,omitempty"`
}

// ExpiredAt reports whether the grant's deadline has passed at the given time
func (g *AccessGrant) ExpiredAt(now time.Time) bool {
	return !now.Before(g.ExpirationTime)
}

// Allows reports whether the grant authorizes the given operation at the
// given time. The stored status field is consulted only to exclude revoked
// and pending grants; expiry is decided by the clock.
func (g *AccessGrant) Allows(dataType string, permission Permission, now time.Time) bool {
	if g.Status == GrantStatusRevoked || g.Status == GrantStatusPending {
		return false
	}
	if g.ExpiredAt(now) {
		return false
	}
	if !containsString(g.DataTypes, dataType) {
		return false
	}
	for _, p := range g.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Clone returns a deep copy for use as a read-only view model
func (g *AccessGrant) Clone() *AccessGrant {
	if g == nil {
		return nil
	}
	out := *g
	out.DataTypes = append([]string(nil), g.DataTypes...)
	out.Permissions = append([]Permission(nil), g.Permissions...)
	if g.Policies != nil {
		out.Policies = make(map[string]string, len(g.Policies))
		for k, v := range g.Policies {
			out.Policies[k] = v
		}
	}
	if g.RevokedAt != nil {
		t := *g.RevokedAt
		out.RevokedAt = &t
	}
	return &out
}

// RevocationResult is the outcome of a revoke call
type RevocationResult struct {
	Success             bool      `json:"success"`
	RevocationTimestamp time.Time `json:"revocation_timestamp"`
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

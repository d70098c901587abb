package grants

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

type stubLedger struct {
	authorizeCalls int
	revokeCalls    int

	authorizeFunc func(ctx context.Context, req *ledger.AuthorizeAccessRequest) (*ledger.AuthorizeAccessResponse, error)
	revokeFunc    func(ctx context.Context, req *ledger.RevokeAccessRequest) (*ledger.RevokeAccessResponse, error)
}

func (s *stubLedger) SubmitHealthRecord(ctx context.Context, req *ledger.SubmitRecordRequest) (*ledger.SubmitRecordResponse, error) {
	return nil, types.NewBlockchainError("not implemented", nil)
}

func (s *stubLedger) VerifyHealthRecord(ctx context.Context, req *ledger.VerifyRecordRequest) (*ledger.VerifyRecordResponse, error) {
	return nil, types.NewBlockchainError("not implemented", nil)
}

func (s *stubLedger) VerifyWithZKP(ctx context.Context, req *ledger.VerifyZKPRequest) (*ledger.VerifyZKPResponse, error) {
	return nil, types.NewBlockchainError("not implemented", nil)
}

func (s *stubLedger) GetHealthDataRecords(ctx context.Context, req *ledger.ListRecordsRequest) (*ledger.ListRecordsResponse, error) {
	return nil, types.NewBlockchainError("not implemented", nil)
}

func (s *stubLedger) AuthorizeAccess(ctx context.Context, req *ledger.AuthorizeAccessRequest) (*ledger.AuthorizeAccessResponse, error) {
	s.authorizeCalls++
	if s.authorizeFunc != nil {
		return s.authorizeFunc(ctx, req)
	}
	return &ledger.AuthorizeAccessResponse{AuthorizationID: "grant-001", Success: true}, nil
}

func (s *stubLedger) RevokeAccess(ctx context.Context, req *ledger.RevokeAccessRequest) (*ledger.RevokeAccessResponse, error) {
	s.revokeCalls++
	if s.revokeFunc != nil {
		return s.revokeFunc(ctx, req)
	}
	return &ledger.RevokeAccessResponse{Success: true}, nil
}

func (s *stubLedger) GetBlockchainStatus(ctx context.Context, req *ledger.StatusRequest) (*ledger.StatusResponse, error) {
	return nil, types.NewNetworkError("node unreachable", nil)
}

// fixedClock lets tests move time forward explicitly
type fixedClock struct {
	current time.Time
}

func (c *fixedClock) now() time.Time {
	return c.current
}

func (c *fixedClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestRegistry(client ledger.Client) (*Registry, *fixedClock) {
	clock := &fixedClock{current: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)}
	r := NewRegistry(client, nil, logger.New("test", "error"))
	r.now = clock.now
	return r, clock
}

func authorizeTestGrant(t *testing.T, r *Registry, ttlSeconds int64) *types.AccessGrant {
	t.Helper()
	grant, err := r.Authorize(context.Background(), "subject-1", "doctor-1",
		[]string{"vitals"}, []types.Permission{types.PermissionRead}, ttlSeconds, nil)
	require.NoError(t, err)
	return grant
}

func TestRegistry_Authorize(t *testing.T) {
	t.Run("issues an active grant expiring after the ttl", func(t *testing.T) {
		r, clock := newTestRegistry(&stubLedger{})

		grant := authorizeTestGrant(t, r, 3600)

		assert.Equal(t, "grant-001", grant.ID)
		assert.Equal(t, types.GrantStatusActive, grant.Status)
		assert.Equal(t, clock.current.Add(time.Hour), grant.ExpirationTime)
	})

	t.Run("rejects invalid requests without a ledger call", func(t *testing.T) {
		client := &stubLedger{}
		r, _ := newTestRegistry(client)

		cases := []struct {
			name        string
			subjectID   string
			granteeID   string
			dataTypes   []string
			permissions []types.Permission
			ttlSeconds  int64
		}{
			{"zero ttl", "subject-1", "doctor-1", []string{"vitals"}, []types.Permission{types.PermissionRead}, 0},
			{"negative ttl", "subject-1", "doctor-1", []string{"vitals"}, []types.Permission{types.PermissionRead}, -60},
			{"no data types", "subject-1", "doctor-1", nil, []types.Permission{types.PermissionRead}, 3600},
			{"no permissions", "subject-1", "doctor-1", []string{"vitals"}, nil, 3600},
			{"unknown permission", "subject-1", "doctor-1", []string{"vitals"}, []types.Permission{"ADMIN"}, 3600},
			{"empty subject", "", "doctor-1", []string{"vitals"}, []types.Permission{types.PermissionRead}, 3600},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := r.Authorize(context.Background(), tc.subjectID, tc.granteeID, tc.dataTypes, tc.permissions, tc.ttlSeconds, nil)
				assert.Equal(t, types.ErrCodeInvalidRequest, types.CodeOf(err))
			})
		}

		assert.Equal(t, 0, client.authorizeCalls)
	})

	t.Run("full_access policy widens permissions", func(t *testing.T) {
		r, _ := newTestRegistry(&stubLedger{})

		grant, err := r.Authorize(context.Background(), "subject-1", "doctor-1",
			[]string{"vitals"}, []types.Permission{types.PermissionRead}, 3600,
			map[string]string{"full_access": "true"})

		require.NoError(t, err)
		assert.ElementsMatch(t, []types.Permission{
			types.PermissionRead, types.PermissionWrite, types.PermissionShare, types.PermissionDelete,
		}, grant.Permissions)
	})

	t.Run("stored grant does not alias the caller's policy map", func(t *testing.T) {
		r, _ := newTestRegistry(&stubLedger{})
		policies := map[string]string{"write_access": "true"}

		grant, err := r.Authorize(context.Background(), "subject-1", "doctor-1",
			[]string{"vitals"}, []types.Permission{types.PermissionRead}, 3600, policies)
		require.NoError(t, err)

		policies["write_access"] = "false"
		policies["full_access"] = "true"

		stored, err := r.Get(grant.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"write_access": "true"}, stored.Policies)
	})

	t.Run("surfaces ledger failures", func(t *testing.T) {
		client := &stubLedger{
			authorizeFunc: func(ctx context.Context, req *ledger.AuthorizeAccessRequest) (*ledger.AuthorizeAccessResponse, error) {
				return nil, types.NewBlockchainError("policy chaincode rejected", nil)
			},
		}
		r, _ := newTestRegistry(client)

		_, err := r.Authorize(context.Background(), "subject-1", "doctor-1",
			[]string{"vitals"}, []types.Permission{types.PermissionRead}, 3600, nil)

		assert.Equal(t, types.ErrCodeBlockchainError, types.CodeOf(err))
	})
}

func TestRegistry_IsAuthorized(t *testing.T) {
	t.Run("active grant within its window allows access", func(t *testing.T) {
		r, _ := newTestRegistry(&stubLedger{})
		authorizeTestGrant(t, r, 3600)

		assert.True(t, r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionRead))
	})

	t.Run("expiry is decided by the clock, not the stored status", func(t *testing.T) {
		r, clock := newTestRegistry(&stubLedger{})
		grant := authorizeTestGrant(t, r, 3600)

		clock.advance(2 * time.Hour)

		// The stored grant still says ACTIVE; the decision must not trust it.
		assert.False(t, r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionRead))

		stored, err := r.Get(grant.ID)
		require.NoError(t, err)
		assert.Equal(t, types.GrantStatusExpired, stored.Status)
	})

	t.Run("expiry boundary is exclusive", func(t *testing.T) {
		r, clock := newTestRegistry(&stubLedger{})
		authorizeTestGrant(t, r, 3600)

		clock.advance(time.Hour - time.Second)
		assert.True(t, r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionRead))

		clock.advance(time.Second)
		assert.False(t, r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionRead))
	})

	t.Run("denies mismatched grantee, data type, or permission", func(t *testing.T) {
		r, _ := newTestRegistry(&stubLedger{})
		authorizeTestGrant(t, r, 3600)

		assert.False(t, r.IsAuthorized("nurse-1", "subject-1", "vitals", types.PermissionRead))
		assert.False(t, r.IsAuthorized("doctor-1", "subject-1", "medication", types.PermissionRead))
		assert.False(t, r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionWrite))
	})

	t.Run("revoked grant denies access immediately", func(t *testing.T) {
		r, _ := newTestRegistry(&stubLedger{})
		grant := authorizeTestGrant(t, r, 3600)

		_, err := r.Revoke(context.Background(), grant.ID, "subject-1", "test")
		require.NoError(t, err)

		assert.False(t, r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionRead))
	})
}

func TestRegistry_Revoke(t *testing.T) {
	t.Run("only the subject may revoke", func(t *testing.T) {
		client := &stubLedger{}
		r, _ := newTestRegistry(client)
		grant := authorizeTestGrant(t, r, 3600)

		_, err := r.Revoke(context.Background(), grant.ID, "doctor-1", "self-serve")

		assert.Equal(t, types.ErrCodePermissionDenied, types.CodeOf(err))
		assert.Equal(t, 0, client.revokeCalls)
	})

	t.Run("revocation is terminal and idempotent", func(t *testing.T) {
		client := &stubLedger{}
		r, clock := newTestRegistry(client)
		grant := authorizeTestGrant(t, r, 3600)

		first, err := r.Revoke(context.Background(), grant.ID, "subject-1", "care ended")
		require.NoError(t, err)
		require.True(t, first.Success)

		clock.advance(10 * time.Minute)

		second, err := r.Revoke(context.Background(), grant.ID, "subject-1", "care ended")
		require.NoError(t, err)

		assert.True(t, second.Success)
		assert.Equal(t, first.RevocationTimestamp, second.RevocationTimestamp)
		assert.Equal(t, 1, client.revokeCalls)
	})

	t.Run("unknown grant yields not found", func(t *testing.T) {
		r, _ := newTestRegistry(&stubLedger{})

		_, err := r.Revoke(context.Background(), "no-such-grant", "subject-1", "")

		assert.Equal(t, types.ErrCodeDataNotFound, types.CodeOf(err))
	})

	t.Run("concurrent revocations settle on one ledger call", func(t *testing.T) {
		client := &stubLedger{}
		r, _ := newTestRegistry(client)
		grant := authorizeTestGrant(t, r, 3600)

		const workers = 8
		results := make(chan *types.RevocationResult, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := r.Revoke(context.Background(), grant.ID, "subject-1", "care ended")
				assert.NoError(t, err)
				results <- result
			}()
			// Readers racing with the revocations must see a consistent grant.
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.IsAuthorized("doctor-1", "subject-1", "vitals", types.PermissionRead)
				_, err := r.Get(grant.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		close(results)

		assert.Equal(t, 1, client.revokeCalls)
		first := <-results
		require.NotNil(t, first)
		for result := range results {
			require.NotNil(t, result)
			assert.True(t, result.Success)
			assert.Equal(t, first.RevocationTimestamp, result.RevocationTimestamp)
		}
	})

	t.Run("uses the ledger's revocation timestamp when provided", func(t *testing.T) {
		ledgerTime := time.Date(2026, 8, 24, 12, 34, 56, 0, time.UTC)
		client := &stubLedger{
			revokeFunc: func(ctx context.Context, req *ledger.RevokeAccessRequest) (*ledger.RevokeAccessResponse, error) {
				return &ledger.RevokeAccessResponse{Success: true, RevocationTimestamp: ledgerTime}, nil
			},
		}
		r, _ := newTestRegistry(client)
		grant := authorizeTestGrant(t, r, 3600)

		result, err := r.Revoke(context.Background(), grant.ID, "subject-1", "")

		require.NoError(t, err)
		assert.Equal(t, ledgerTime, result.RevocationTimestamp)
	})
}

func TestRegistry_ListBySubject(t *testing.T) {
	// Distinct ledger IDs per grant.
	client := &stubLedger{}
	ids := []string{"grant-a", "grant-b"}
	client.authorizeFunc = func(ctx context.Context, req *ledger.AuthorizeAccessRequest) (*ledger.AuthorizeAccessResponse, error) {
		id := ids[client.authorizeCalls-1]
		return &ledger.AuthorizeAccessResponse{AuthorizationID: id, Success: true}, nil
	}
	r, clock := newTestRegistry(client)

	_, err := r.Authorize(context.Background(), "subject-1", "doctor-1",
		[]string{"vitals"}, []types.Permission{types.PermissionRead}, 1800, nil)
	require.NoError(t, err)
	_, err = r.Authorize(context.Background(), "subject-1", "nurse-1",
		[]string{"vitals"}, []types.Permission{types.PermissionRead}, 7200, nil)
	require.NoError(t, err)

	clock.advance(time.Hour)

	grants := r.ListBySubject("subject-1")
	require.Len(t, grants, 2)

	statuses := map[string]types.GrantStatus{}
	for _, g := range grants {
		statuses[g.ID] = g.Status
	}
	assert.Equal(t, types.GrantStatusExpired, statuses["grant-a"])
	assert.Equal(t, types.GrantStatusActive, statuses["grant-b"])

	assert.Empty(t, r.ListBySubject("subject-2"))
}

// Package status polls ledger node health and owns the circuit breaker that
// gates outbound anchoring and verification traffic.
package status

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SUOKE2024/suoke-life-sub003/internal/ledger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/config"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/logger"
	"github.com/SUOKE2024/suoke-life-sub003/pkg/types"
)

// Monitor polls the ledger health endpoint and tracks sync state. It is the
// sole owner of the status snapshot and the consecutive-failure counter;
// other components only read through Allow and Status.
type Monitor struct {
	client    ledger.Client
	logger    *logger.Logger
	threshold int

	// now is injectable so breaker tests can run on a fixed clock
	now func() time.Time

	mu          sync.Mutex
	snapshot    *types.LedgerStatus
	failures    int
	breakerOpen bool
}

// NewMonitor creates a status monitor. Configuration problems surface here;
// Refresh itself never fails transiently.
func NewMonitor(client ledger.Client, cfg config.BreakerConfig, log *logger.Logger) (*Monitor, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger client is required")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("invalid breaker failure threshold: %d", cfg.FailureThreshold)
	}

	return &Monitor{
		client:    client,
		logger:    log,
		threshold: cfg.FailureThreshold,
		now:       time.Now,
	}, nil
}

// Refresh polls the ledger node and returns the fresh snapshot. On transient
// failure it returns the last-known-good status marked disconnected and
// stale instead of an error.
func (m *Monitor) Refresh(ctx context.Context) *types.LedgerStatus {
	return m.RefreshDetailed(ctx, false)
}

// RefreshDetailed is Refresh with optional node info in the snapshot
func (m *Monitor) RefreshDetailed(ctx context.Context, includeNodeInfo bool) *types.LedgerStatus {
	resp, err := m.client.GetBlockchainStatus(ctx, &ledger.StatusRequest{IncludeNodeInfo: includeNodeInfo})

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.failures++
		if m.failures >= m.threshold && !m.breakerOpen {
			m.breakerOpen = true
			m.logger.WithComponent("status-monitor").WithError(err).
				Warn(fmt.Sprintf("Circuit breaker opened after %d consecutive failed refreshes", m.failures))
		}
		m.snapshot = m.degradedSnapshotLocked()
		m.logger.WithComponent("status-monitor").WithError(err).Debug("Ledger status refresh failed")
		return m.snapshot.Clone()
	}

	if m.breakerOpen {
		m.logger.WithComponent("status-monitor").Info("Circuit breaker closed after successful refresh")
	}
	m.failures = 0
	m.breakerOpen = false
	m.snapshot = m.healthySnapshotLocked(resp)
	return m.snapshot.Clone()
}

// Allow reports whether outbound ledger calls may proceed. False while the
// breaker is open.
func (m *Monitor) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.breakerOpen
}

// BreakerOpen reports the breaker flag
func (m *Monitor) BreakerOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.breakerOpen
}

// Status returns the last snapshot without polling, or nil before the first
// refresh
func (m *Monitor) Status() *types.LedgerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// Run polls on the configured interval until the context is canceled
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// healthySnapshotLocked builds a snapshot from a successful reading.
// SYNCED requires the node to report 100% sync.
func (m *Monitor) healthySnapshotLocked(resp *ledger.StatusResponse) *types.LedgerStatus {
	state := types.ConsensusSyncing
	switch strings.ToLower(resp.ConsensusStatus) {
	case "in_sync", "synced":
		state = types.ConsensusSynced
	case "error":
		state = types.ConsensusError
	}
	if resp.SyncPercentage >= 100 {
		state = types.ConsensusSynced
	} else if state == types.ConsensusSynced {
		// Node claims sync but reports a partial percentage; trust the number.
		state = types.ConsensusSyncing
	}

	return &types.LedgerStatus{
		BlockHeight:        resp.CurrentBlockHeight,
		NodeCount:          resp.ConnectedNodes,
		ConsensusState:     state,
		SyncPercentage:     resp.SyncPercentage,
		TxPoolSize:         resp.TxPoolSize,
		LastBlockTimestamp: resp.LastBlockTimestamp,
		IsConnected:        true,
		Stale:              false,
		CheckedAt:          m.now(),
		NodeInfo:           resp.NodeInfo,
	}
}

// degradedSnapshotLocked carries forward the last-known-good reading marked
// disconnected and stale. A failed refresh from any previous state lands in
// ERROR.
func (m *Monitor) degradedSnapshotLocked() *types.LedgerStatus {
	if m.snapshot == nil {
		return &types.LedgerStatus{
			ConsensusState: types.ConsensusError,
			IsConnected:    false,
			Stale:          true,
			CheckedAt:      m.now(),
		}
	}

	degraded := m.snapshot.Clone()
	degraded.ConsensusState = types.ConsensusError
	degraded.IsConnected = false
	degraded.Stale = true
	degraded.CheckedAt = m.now()
	return degraded
}

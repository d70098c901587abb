package types

import "time"

// ConsensusState is the ledger node's sync state
type ConsensusState string

const (
	ConsensusSyncing ConsensusState = "SYNCING"
	ConsensusSynced  ConsensusState = "SYNCED"
	ConsensusError   ConsensusState = "ERROR"
)

// LedgerStatus is a snapshot of ledger connectivity and sync health, owned
// exclusively by the status monitor. SYNCED implies SyncPercentage == 100.
// Stale marks a snapshot carried over from the last successful refresh after
// a transient polling failure.
type LedgerStatus struct {
	BlockHeight        uint64            `json:"block_height"`
	NodeCount          int               `json:"node_count"`
	ConsensusState     ConsensusState    `json:"consensus_state"`
	SyncPercentage     float64           `json:"sync_percentage"`
	TxPoolSize         int               `json:"tx_pool_size"`
	LastBlockTimestamp time.Time         `json:"last_block_timestamp"`
	IsConnected        bool              `json:"is_connected"`
	Stale              bool              `json:"stale"`
	CheckedAt          time.Time         `json:"checked_at"`
	NodeInfo           map[string]string `json:"node_info,omitempty"`
}

// Clone returns a copy safe to hand to other components
func (s *LedgerStatus) Clone() *LedgerStatus {
	if s == nil {
		return nil
	}
	out := *s
	if s.NodeInfo != nil {
		out.NodeInfo = make(map[string]string, len(s.NodeInfo))
		for k, v := range s.NodeInfo {
			out.NodeInfo[k] = v
		}
	}
	return &out
}

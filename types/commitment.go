// Package types holds the wire-level data model shared between the
// sequencer API client, the registry client, and the anchor control loop.
package types

import (
	"time"

	"github.com/google/uuid"
)

// BatchCommitment is an immutable descriptor the sequencer hands to the
// bridge. The core trusts the sequencer for its invariants (contiguous,
// strictly increasing sequence ranges per tenant/store; stable batch
// contents for a given id) and never re-derives or re-validates them.
type BatchCommitment struct {
	BatchID       uuid.UUID `json:"batch_id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	StoreID       uuid.UUID `json:"store_id"`
	PrevStateRoot string    `json:"prev_state_root"`
	NewStateRoot  string    `json:"new_state_root"`
	EventsRoot    string    `json:"events_root"`
	SequenceStart uint64    `json:"sequence_start"`
	SequenceEnd   uint64    `json:"sequence_end"`
	EventCount    uint32    `json:"event_count"`
	CommittedAt   time.Time `json:"committed_at"`
	ChainTxHash   *string   `json:"chain_tx_hash,omitempty"`
}

// PendingCommitmentsResponse is the envelope returned by
// GET {base}/v1/commitments/pending.
type PendingCommitmentsResponse struct {
	Commitments []BatchCommitment `json:"commitments"`
	Total       int               `json:"total"`
}

// AnchorNotification is sent back to the sequencer once a batch is on-chain.
type AnchorNotification struct {
	ChainTxHash string  `json:"chain_tx_hash"`
	ChainID     uint64  `json:"chain_id"`
	BlockNumber *uint64 `json:"block_number,omitempty"`
	GasUsed     *uint64 `json:"gas_used,omitempty"`
}

// AnchorResult is the internal per-batch outcome of one retry loop.
type AnchorResult struct {
	BatchID     uuid.UUID
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	Success     bool
	Error       string
}

// Package history keeps the wallet's displayed transaction list and merges
// transaction updates arriving from several backend calls into it.
package history

import (
	"encoding/json"

	"github.com/samber/lo"
	"github.com/zeebo/blake3"
)

// Blockchain holds the on-chain placement of a transaction.
type Blockchain struct {
	Timestamp int64  `json:"timestamp"`
	Height    uint64 `json:"height,omitempty"`
	BlockHash string `json:"block_hash,omitempty"`
}

// Input is a transaction input as reported by the wallet.
type Input struct {
	IsMatched       bool   `json:"is_matched,omitempty"`
	MatchedOutputID string `json:"matched_output_id,omitempty"`
}

// Details carries the data used to cross-match records from different
// sources.
type Details struct {
	SentOutputHashes []string `json:"sent_output_hashes,omitempty"`
	Inputs           []Input  `json:"inputs,omitempty"`
}

// BridgeDetails is enrichment attached to bridged transactions. Only some
// backend calls report it.
type BridgeDetails struct {
	SourceChain       string `json:"source_chain,omitempty"`
	DestinationChain  string `json:"destination_chain,omitempty"`
	SourceTxHash      string `json:"source_tx_hash,omitempty"`
	DestinationTxHash string `json:"destination_tx_hash,omitempty"`
	Status            string `json:"status,omitempty"`
}

// Transaction is a normalized transaction record.
type Transaction struct {
	ID         string         `json:"id"`
	Blockchain Blockchain     `json:"blockchain"`
	Details    Details        `json:"details"`
	Bridge     *BridgeDetails `json:"bridge_transaction_details,omitempty"`
	Direction  string         `json:"direction,omitempty"`
	Amount     uint64         `json:"amount,omitempty"`
	Status     string         `json:"status,omitempty"`
}

// IsPending reports whether the transaction is not yet in a block.
func (t Transaction) IsPending() bool {
	return t.Blockchain.Height == 0 || t.Status == "pending"
}

// IsMatch reports whether a and b denote the same logical transaction:
// equal ids, a shared output hash, or a matched input on each side
// referencing the same output id. Empty ids and hashes never match.
func IsMatch(a, b Transaction) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	if lo.Some(lo.Compact(a.Details.SentOutputHashes), b.Details.SentOutputHashes) {
		return true
	}
	return lo.Some(matchedOutputs(a), matchedOutputs(b))
}

func matchedOutputs(t Transaction) []string {
	return lo.FilterMap(t.Details.Inputs, func(in Input, _ int) (string, bool) {
		return in.MatchedOutputID, in.IsMatched && in.MatchedOutputID != ""
	})
}

// Fingerprint is a content hash of the record's JSON encoding.
func Fingerprint(t Transaction) [32]byte {
	data, err := json.Marshal(t)
	if err != nil {
		// Every field is JSON-safe; unreachable.
		panic(err)
	}
	return blake3.Sum256(data)
}

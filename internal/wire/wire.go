// Package wire defines the JSON payloads exchanged between cluster nodes:
// global metadata envelopes (metadata.Manager's gossip payload) and the
// per-target request/response pairs QueryFanout sends for search and
// info fanout operations, per spec.md §4.4 and §4.5.
//
// Grounded on internal/cluster.BroadcastRequest's JSON envelope shape
// for inter-node payloads, and encoded/decoded with
// github.com/goccy/go-json rather than encoding/json, matching the
// pack's preferred JSON codec (see AKJUS-bsc-erigon's go.mod) for the
// hot path of coordinator<->node metadata exchange.
package wire

import (
	"github.com/goccy/go-json"
)

// GlobalMetadataVersionHeader identifies a specific revision of the
// cluster-wide metadata without carrying its full body. No code in this
// module sends it on its own: gossip fetches the full GlobalMetadata.
type GlobalMetadataVersionHeader struct {
	Fingerprint    uint64 `json:"fingerprint"`
	Version        uint64 `json:"version"`
	EncodingVersion uint32 `json:"encoding_version"`
}

// GlobalMetadataEntry is one (ObjName -> payload) mapping inside the
// cluster's global metadata: an index schema definition, keyed by its
// encoded ObjName string, with its own independent version and
// fingerprint so a reconcile can detect and replace just this entry.
type GlobalMetadataEntry struct {
	Name            string `json:"name"`
	Payload         []byte `json:"payload"`
	Version         uint64 `json:"version"`
	Fingerprint     uint64 `json:"fingerprint"`
	EncodingVersion uint32 `json:"encoding_version"`
	Tombstone       bool   `json:"tombstone,omitempty"`
}

// GlobalMetadata is the full envelope a node gossips to its peers: a
// top-level version/fingerprint pair plus the entries it currently
// believes are live.
type GlobalMetadata struct {
	Entries         []GlobalMetadataEntry `json:"entries"`
	Version         uint64                `json:"version"`
	Fingerprint     uint64                `json:"fingerprint"`
	EncodingVersion uint32                `json:"encoding_version"`
}

// Marshal/Unmarshal wrap goccy/go-json so call sites never import
// encoding/json directly, keeping the wire codec centralized in this
// package and swappable in one place.
func Marshal(v any) ([]byte, error)       { return json.Marshal(v) }
func Unmarshal(data []byte, v any) error  { return json.Unmarshal(data, v) }

// TargetMode selects which cluster nodes a fanout operation addresses.
type TargetMode string

const (
	TargetAll     TargetMode = "all"
	TargetPrimary TargetMode = "primary"
)

// SearchIndexPartitionRequest is sent to one shard's owning node(s) to
// execute a query against that shard's local partition of an index.
type SearchIndexPartitionRequest struct {
	IndexName        string `json:"index_name"`
	Query            string `json:"query"`
	ExpectedFingerprint uint64 `json:"expected_fingerprint"`
	Limit            int    `json:"limit"`
	Offset           int    `json:"offset"`
	ShardID          int    `json:"shard_id"`
}

// PartitionStatus classifies how a single partition's request fared,
// matching spec.md §4.5's OK / INDEX_NAME_ERROR / INCONSISTENT_STATE_ERROR
// / COMMUNICATION_ERROR taxonomy.
type PartitionStatus string

const (
	StatusOK                     PartitionStatus = "OK"
	StatusIndexNameError         PartitionStatus = "INDEX_NAME_ERROR"
	StatusInconsistentStateError PartitionStatus = "INCONSISTENT_STATE_ERROR"
	StatusCommunicationError     PartitionStatus = "COMMUNICATION_ERROR"
)

// SearchIndexPartitionResponse is the per-shard reply: either a neighbor
// set of scored document keys, or a status explaining why none was
// produced.
type SearchIndexPartitionResponse struct {
	Status      PartitionStatus `json:"status"`
	Keys        []string        `json:"keys,omitempty"`
	Scores      []float64       `json:"scores,omitempty"`
	Fingerprint uint64          `json:"fingerprint"`
	ShardID     int             `json:"shard_id"`
}

// InfoIndexPartitionRequest asks a shard's owning node(s) for that
// partition's local statistics (used by FT.INFO aggregation).
type InfoIndexPartitionRequest struct {
	IndexName string `json:"index_name"`
	ShardID   int    `json:"shard_id"`
}

// InfoIndexPartitionResponse carries one shard's local document count,
// memory usage, and backfill progress, for the coordinator to sum across
// shards.
type InfoIndexPartitionResponse struct {
	Status          PartitionStatus `json:"status"`
	DocCount        int64           `json:"doc_count"`
	MemoryBytes     int64           `json:"memory_bytes"`
	BackfillPercent float64         `json:"backfill_percent"`
	PausedByOOM     bool            `json:"paused_by_oom"`
	Fingerprint     uint64          `json:"fingerprint"`
	ShardID         int             `json:"shard_id"`
}

// Package cluster provides the membership, slot-assignment, liveness, and
// HTTP transport primitives shared by the coordinator and node processes.
//
// # Overview
//
// The cluster package is the foundation of the engine's distributed
// topology, managing how nodes discover each other, how the keyspace is
// partitioned across them, and how the coordinator detects and reacts to
// node failure. It implements a coordinator-based topology where a
// central coordinator orchestrates multiple index nodes.
//
// # Architecture
//
// The package follows a hub-and-spoke model:
//
//	              ┌──────────────┐
//	              │ Coordinator  │
//	              │              │
//	              │ - SlotRegistry
//	              │ - LivenessMonitor
//	              │ - Fanout via PostJSON/GetJSON
//	              └──────┬───────┘
//	                     │
//	      ┌──────────────┼──────────────┐
//	      │              │              │
//	┌─────▼─────┐ ┌─────▼─────┐ ┌─────▼─────┐
//	│  Node 1   │ │  Node 2   │ │  Node 3   │
//	│           │ │           │ │           │
//	│ Slots:    │ │ Slots:    │ │ Slots:    │
//	│ [0,1,2]   │ │ [3,4,5]   │ │ [6,7,8]   │
//	└───────────┘ └───────────┘ └───────────┘
//
// # Core Components
//
// NodeInfo: identifies one index node (ID, address); carried in
// registration and fanout requests but otherwise opaque to this package.
//
// SlotRegistry: partitions a fixed keyspace (numSlots hash slots,
// FNV-1a(key) % numSlots) across registered nodes, tracking a primary
// (and optionally replica) assignment per slot and supporting full
// round-robin Rebalance on membership change.
//
// LivenessMonitor: polls each known node's /health endpoint on an
// interval, tracks consecutive-failure counts per node, and invokes a
// caller-supplied callback the first time a node crosses the unhealthy
// threshold so the coordinator can trigger a rebalance.
//
// # Communication Protocol
//
// The package uses HTTP/JSON for all inter-node communication, via the
// PostJSON/GetJSON helpers in types.go:
//
// Node Registration (POST /register):
//   - Nodes announce themselves to the coordinator on startup
//   - Coordinator assigns the node into the slot rotation
//
// Health Checking (GET /health):
//   - Periodic liveness probes from coordinator to nodes
//   - Timeout-based failure detection, consecutive-failure threshold
//
// Metadata Gossip (GET /metadata/gossip):
//   - Peers reconcile index schema definitions against the coordinator's
//     copy; see internal/metadata for the reconciliation protocol itself
//
// # Concurrency Model
//
// All exported types are safe for concurrent use:
//   - SlotRegistry and LivenessMonitor serialize state under sync.RWMutex
//   - Read operations (GetAssignment, IsHealthy) use RLock
//   - No operation holds a lock across network I/O
//
// # See Also
//
// Related packages:
//   - internal/metadata: global metadata gossip and reconciliation
//   - internal/fanout: query fanout and result merging across nodes
//   - internal/schema: per-node index partition state, assigned by slot
package cluster

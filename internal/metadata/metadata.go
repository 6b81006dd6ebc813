// Package metadata implements MetadataManager: the gossip-reconciled
// cluster-wide index metadata registry described in spec.md §4.4 — every
// node keeps its own GlobalMetadata snapshot and periodically exchanges
// it with peers, reconciling by (version, encoding_version, fingerprint)
// lexicographic ordering so the cluster converges on one history without
// a single leader.
//
// Grounded on original_source/src/coordinator/metadata_manager.{cc,h}
// for the reconcile ordering and on internal/cluster's GetJSON
// transport for the gossip fetch itself. Per-peer fetch retries use
// github.com/cenkalti/backoff/v4 (grounded on steveyegge-beads's go.mod)
// rather than a fixed-sleep retry loop (an earlier node registration's
// register function), since gossip fan-out to many peers benefits from
// jittered backoff in a way a single bounded registration retry does
// not.
package metadata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dreamware/ftindex/internal/cluster"
	"github.com/dreamware/ftindex/internal/enginerr"
	"github.com/dreamware/ftindex/internal/fingerprint"
	"github.com/dreamware/ftindex/internal/objname"
	"github.com/dreamware/ftindex/internal/wire"
)

// Entry is an in-memory GlobalMetadata entry, keyed by its encoded
// ObjName. Mirrors wire.GlobalMetadataEntry but keeps Payload as a typed
// field so callers don't re-decode it on every read.
type Entry struct {
	Name            string
	Payload         []byte
	Version         uint64
	Fingerprint     fingerprint.Fingerprint
	EncodingVersion uint32
	Tombstone       bool
}

// UpdateCallback is invoked whenever Put or Reconcile accepts a new or
// changed entry, mirroring spec.md §4.4's registered
// `update_callback`/`FT.INTERNAL_UPDATE` replication hook: in a real
// module host this is where the mutation would be replicated to
// replicas. A Put failure aborts the whole Put with no mutation
// committed; a Reconcile failure is logged but never aborts the merge
// (best-effort), since gossip must still converge even if one peer's
// replication call fails.
type UpdateCallback func(dbNum int, name string, e Entry) error

// wireOrder reports whether a is strictly newer than b under spec.md
// §4.4's (version, encoding_version, fingerprint) lexicographic
// reconcile ordering — higher version wins outright; ties break on
// encoding_version, then on fingerprint, giving every node the same
// total order without coordination.
func wireOrder(a, b Entry) bool {
	if a.Version != b.Version {
		return a.Version > b.Version
	}
	if a.EncodingVersion != b.EncodingVersion {
		return a.EncodingVersion > b.EncodingVersion
	}
	return a.Fingerprint > b.Fingerprint
}

// Manager owns this node's view of cluster-wide index metadata and
// reconciles it against peers' views on a gossip schedule.
type Manager struct {
	entries map[string]Entry
	mu      sync.RWMutex

	// topLevelVersion is spec.md §4.4's GlobalMetadataVersionHeader
	// top_level_version: bumped on every local Put. On Reconcile it becomes
	// max(local, incoming version), plus one more when the post-merge
	// top-level fingerprint differs from both the pre-merge local one and
	// the incoming one.
	// Distinct from Entry.Version, which is monotonic per object.
	topLevelVersion       uint64
	reconcileCount        uint64
	reconcileCallbackErrs uint64

	transport      transport
	localNodeID    string
	updateCallback UpdateCallback
}

// transport is the subset of cluster transport Manager needs, satisfied
// by thin wrappers around cluster.GetJSON in production and by a fake
// in tests.
type transport interface {
	FetchPeerMetadata(ctx context.Context, peerAddr string) (wire.GlobalMetadata, error)
}

// New returns an empty Manager for localNodeID, gossiping over t.
func New(localNodeID string, t transport) *Manager {
	return &Manager{entries: make(map[string]Entry), transport: t, localNodeID: localNodeID}
}

// SetUpdateCallback installs fn as the manager's update_callback,
// invoked on every Put and on every entry Reconcile accepts. Pass nil
// to clear it (the default is a no-op).
func (m *Manager) SetUpdateCallback(fn UpdateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCallback = fn
}

// Put installs or replaces the entry for (dbNum, name) with a freshly
// computed per-object version and fingerprint, as happens on
// FT.CREATE / FT.DROPINDEX / a schema content change. Per spec.md §4.4,
// the new entry's Version is existing.Version+1, or 0 on first insert
// — a counter scoped to this one object, not the manager's top-level
// version. If update_callback is set and returns an error, the Put is
// aborted and no mutation is committed.
func (m *Manager) Put(dbNum int, name string, payload []byte, encodingVersion uint32, tombstone bool) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := objname.Encode(dbNum, name)
	var version uint64
	if existing, ok := m.entries[key]; ok {
		version = existing.Version + 1
	}
	e := Entry{
		Name:            key,
		Payload:         payload,
		Version:         version,
		EncodingVersion: encodingVersion,
		Fingerprint:     fingerprint.Of(payload),
		Tombstone:       tombstone,
	}

	if m.updateCallback != nil {
		if err := m.updateCallback(dbNum, name, e); err != nil {
			return Entry{}, enginerr.Wrap(enginerr.FailedPrecondition, "update_callback rejected put", err)
		}
	}

	m.entries[key] = e
	m.topLevelVersion++
	return e, nil
}

// Get returns the entry for (dbNum, name), or NotFound.
func (m *Manager) Get(dbNum int, name string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[objname.Encode(dbNum, name)]
	if !ok || e.Tombstone {
		return Entry{}, enginerr.New(enginerr.NotFound, "no metadata entry for "+objname.Encode(dbNum, name))
	}
	return e, nil
}

// topLevelFingerprintLocked combines every live entry's fingerprint,
// order-independent per fingerprint.Combine. Caller must hold m.mu.
func (m *Manager) topLevelFingerprintLocked() fingerprint.Fingerprint {
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	fps := make([]fingerprint.Fingerprint, 0, len(names))
	for _, name := range names {
		fps = append(fps, m.entries[name].Fingerprint)
	}
	return fingerprint.Combine(fps...)
}

// Snapshot returns the full GlobalMetadata envelope for gossip, plus the
// manager's own top-level version and fingerprint.
func (m *Manager) Snapshot() wire.GlobalMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	out := wire.GlobalMetadata{Version: m.topLevelVersion}
	for _, name := range names {
		e := m.entries[name]
		out.Entries = append(out.Entries, wire.GlobalMetadataEntry{
			Name: e.Name, Payload: e.Payload, Version: e.Version,
			Fingerprint: uint64(e.Fingerprint), EncodingVersion: e.EncodingVersion, Tombstone: e.Tombstone,
		})
	}
	out.Fingerprint = uint64(m.topLevelFingerprintLocked())
	return out
}

// Reconcile merges incoming peer metadata into the local view. For each
// incoming entry: if no local entry exists, accept it outright; else
// accept iff the incoming (version, encoding_version, fingerprint) tuple
// is strictly greater than the local one under wireOrder (a tie on all
// three, including equal fingerprint, is a no-op). On acceptance:
//   - if the incoming encoding_version is older than local's, the
//     accepted entry is re-fingerprinted under local content rules and
//     stamped with the local encoding_version, so a strictly-newer
//     version still carries the newer encoding's fingerprint downstream
//     rather than an encoding the local node has since moved past;
//   - update_callback (if set, see SetUpdateCallback) is invoked as both
//     the update hook and the FT.INTERNAL_UPDATE replication signal; a
//     failure only increments ReconcileCallbackErrors and never aborts
//     the merge, since gossip must still converge even if one entry's
//     replication hook fails.
//
// After merging every entry, the top-level fingerprint is recomputed.
// The top-level version becomes max(local, incoming's claimed version);
// if the recomputed fingerprint changed and differs from both the
// pre-merge local fingerprint and incoming's claimed fingerprint, the
// top-level version is bumped one further to flag that this node now
// has novel content worth rebroadcasting. Returns the number of entries
// that changed locally as a result.
func (m *Manager) Reconcile(incoming wire.GlobalMetadata) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	localTopFingerprint := m.topLevelFingerprintLocked()

	changed := 0
	for _, we := range incoming.Entries {
		cand := Entry{
			Name: we.Name, Payload: we.Payload, Version: we.Version,
			Fingerprint: fingerprint.Fingerprint(we.Fingerprint), EncodingVersion: we.EncodingVersion, Tombstone: we.Tombstone,
		}
		local, exists := m.entries[we.Name]
		if exists && !wireOrder(cand, local) {
			continue
		}

		if exists && cand.EncodingVersion < local.EncodingVersion {
			cand.Fingerprint = fingerprint.Of(cand.Payload)
			cand.EncodingVersion = local.EncodingVersion
		}

		if m.updateCallback != nil {
			dbNum, idxName := 0, we.Name
			if decoded, err := objname.Decode(we.Name); err == nil {
				dbNum, idxName = decoded.DBNum, decoded.Index
			}
			if err := m.updateCallback(dbNum, idxName, cand); err != nil {
				m.reconcileCallbackErrs++
			}
		}

		m.entries[we.Name] = cand
		changed++
	}

	newTopFingerprint := m.topLevelFingerprintLocked()
	topVersion := m.topLevelVersion
	if incoming.Version > topVersion {
		topVersion = incoming.Version
	}
	if newTopFingerprint != localTopFingerprint && uint64(newTopFingerprint) != incoming.Fingerprint {
		topVersion++
	}
	m.topLevelVersion = topVersion
	m.reconcileCount++

	return changed
}

// ReconcileCount reports how many times Reconcile has run, and
// ReconcileCallbackErrors how many update_callback calls made during
// those runs failed (best-effort merges still commit).
func (m *Manager) ReconcileCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconcileCount
}

func (m *Manager) ReconcileCallbackErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconcileCallbackErrs
}

// GossipOnce reconciles against every peer in peerAddrs once, retrying
// each peer's fetch with jittered exponential backoff (bounded to a few
// attempts) so one slow peer doesn't stall the whole round. Returns the
// total number of locally-changed entries across all peers.
func (m *Manager) GossipOnce(ctx context.Context, peerAddrs []string) int {
	total := 0
	for _, addr := range peerAddrs {
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		var peerMeta wire.GlobalMetadata
		err := backoff.Retry(func() error {
			var err error
			peerMeta, err = m.transport.FetchPeerMetadata(ctx, addr)
			return err
		}, bo)
		if err != nil {
			continue
		}
		total += m.Reconcile(peerMeta)
	}
	return total
}

// httpTransport adapts cluster.GetJSON to the transport interface for
// production use against real node addresses.
type httpTransport struct{}

// NewHTTPTransport returns a transport that fetches peer metadata over
// HTTP via cluster.GetJSON against "<addr>/metadata/gossip".
func NewHTTPTransport() transport { return httpTransport{} }

func (httpTransport) FetchPeerMetadata(ctx context.Context, peerAddr string) (wire.GlobalMetadata, error) {
	var out wire.GlobalMetadata
	url := peerAddr
	if len(url) > 0 && url[len(url)-1] != '/' {
		url += "/"
	}
	url += "metadata/gossip"
	err := cluster.GetJSON(ctx, url, &out)
	return out, err
}

// gossipLoopInterval is the default period between GossipOnce rounds
// when run via RunGossipLoop.
const gossipLoopInterval = 2 * time.Second

// RunGossipLoop runs GossipOnce on a fixed interval until ctx is done.
func (m *Manager) RunGossipLoop(ctx context.Context, peerAddrs func() []string) {
	ticker := time.NewTicker(gossipLoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.GossipOnce(ctx, peerAddrs())
		case <-ctx.Done():
			return
		}
	}
}

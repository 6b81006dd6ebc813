package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/ftindex/internal/enginerr"
	"github.com/dreamware/ftindex/internal/wire"
)

type fakeTransport struct {
	responses map[string]wire.GlobalMetadata
}

func (f fakeTransport) FetchPeerMetadata(ctx context.Context, addr string) (wire.GlobalMetadata, error) {
	return f.responses[addr], nil
}

func mustPut(t *testing.T, m *Manager, dbNum int, name string, payload []byte, encodingVersion uint32, tombstone bool) Entry {
	t.Helper()
	e, err := m.Put(dbNum, name, payload, encodingVersion, tombstone)
	require.NoError(t, err)
	return e
}

func TestPutAndGet(t *testing.T) {
	m := New("n1", nil)
	mustPut(t, m, 0, "idx1", []byte("payload"), 1, false)

	e, err := m.Get(0, "idx1")
	require.NoError(t, err)
	require.Equal(t, "payload", string(e.Payload))
}

func TestPutStampsPerObjectVersion(t *testing.T) {
	m := New("n1", nil)
	first := mustPut(t, m, 0, "idx1", []byte("v0"), 1, false)
	require.Equal(t, uint64(0), first.Version, "first insert stamps version 0 per spec.md §4.4")

	second := mustPut(t, m, 0, "idx1", []byte("v1"), 1, false)
	require.Equal(t, uint64(1), second.Version, "second put on the same object increments from the existing version")

	// A put on an unrelated object does not advance this object's counter.
	mustPut(t, m, 0, "idx2", []byte("other"), 1, false)
	third := mustPut(t, m, 0, "idx1", []byte("v2"), 1, false)
	require.Equal(t, uint64(2), third.Version)
}

func TestPutAbortsOnUpdateCallbackFailure(t *testing.T) {
	m := New("n1", nil)
	boom := errors.New("replication unavailable")
	m.SetUpdateCallback(func(dbNum int, name string, e Entry) error { return boom })

	_, err := m.Put(0, "idx1", []byte("x"), 1, false)
	require.Error(t, err)
	require.True(t, enginerr.Is(err, enginerr.FailedPrecondition))

	_, getErr := m.Get(0, "idx1")
	require.Error(t, getErr, "a rejected put must not commit any entry")
}

func TestGetMissingOrTombstoned(t *testing.T) {
	m := New("n1", nil)
	_, err := m.Get(0, "nope")
	require.True(t, enginerr.Is(err, enginerr.NotFound), "expected NotFound, got %v", err)

	mustPut(t, m, 0, "idx1", []byte("x"), 1, true)
	_, err = m.Get(0, "idx1")
	require.True(t, enginerr.Is(err, enginerr.NotFound), "tombstoned entry should read as NotFound, got %v", err)
}

func TestReconcileKeepsNewerVersion(t *testing.T) {
	m := New("n1", nil)
	mustPut(t, m, 0, "idx1", []byte("old"), 1, false)
	snap := m.Snapshot()

	incoming := wire.GlobalMetadata{
		Entries: []wire.GlobalMetadataEntry{
			{Name: snap.Entries[0].Name, Version: 99, Payload: []byte("new"), EncodingVersion: 1},
		},
	}

	changed := m.Reconcile(incoming)
	require.Equal(t, 1, changed)

	e, err := m.Get(0, "idx1")
	require.NoError(t, err)
	require.Equal(t, "new", string(e.Payload), "higher version should win")
}

func TestReconcileIgnoresStaleVersion(t *testing.T) {
	m := New("n1", nil)
	mustPut(t, m, 0, "idx1", []byte("current"), 1, false)
	snap := m.Snapshot()

	incoming := wire.GlobalMetadata{
		Entries: []wire.GlobalMetadataEntry{
			{Name: snap.Entries[0].Name, Version: 0, Payload: []byte("stale")},
		},
	}
	changed := m.Reconcile(incoming)
	require.Equal(t, 0, changed, "stale incoming version should not apply")
}

func TestReconcileOlderEncodingVersionReFingerprints(t *testing.T) {
	m := New("n1", nil)
	mustPut(t, m, 0, "idx1", []byte("current"), 3, false)
	snap := m.Snapshot()

	// Incoming has a strictly higher version, but an older encoding_version
	// than local's — it should still win (version dominates the ordering),
	// but get re-fingerprinted under local content rules and stamped with
	// local's encoding_version, per spec.md §4.4.
	incoming := wire.GlobalMetadata{
		Entries: []wire.GlobalMetadataEntry{
			{Name: snap.Entries[0].Name, Version: 5, EncodingVersion: 1, Payload: []byte("from-older-encoding"), Fingerprint: 0},
		},
	}
	changed := m.Reconcile(incoming)
	require.Equal(t, 1, changed)

	e, err := m.Get(0, "idx1")
	require.NoError(t, err)
	require.Equal(t, uint32(3), e.EncodingVersion, "accepted entry should be stamped with local's newer encoding_version")
	require.NotEqual(t, uint64(0), uint64(e.Fingerprint), "accepted entry should be re-fingerprinted from its own payload, not carry the incoming zero fingerprint")
}

func TestReconcileInvokesUpdateCallbackBestEffort(t *testing.T) {
	m := New("n1", nil)
	var calls int
	m.SetUpdateCallback(func(dbNum int, name string, e Entry) error {
		calls++
		return errors.New("replica unreachable")
	})

	incoming := wire.GlobalMetadata{
		Entries: []wire.GlobalMetadataEntry{
			{Name: "idx1", Version: 1, Payload: []byte("x")},
		},
	}
	changed := m.Reconcile(incoming)
	require.Equal(t, 1, changed, "a failing update_callback must not abort the merge")
	require.Equal(t, 1, calls)
	require.Equal(t, uint64(1), m.ReconcileCallbackErrors())
}

func TestGossipOnceMergesFromPeer(t *testing.T) {
	peer := New("peer", nil)
	mustPut(t, peer, 0, "idx1", []byte("from-peer"), 5, false)

	local := New("local", fakeTransport{responses: map[string]wire.GlobalMetadata{
		"peer-addr": peer.Snapshot(),
	}})

	changed := local.GossipOnce(context.Background(), []string{"peer-addr"})
	require.Equal(t, 1, changed)

	e, err := local.Get(0, "idx1")
	require.NoError(t, err)
	require.Equal(t, "from-peer", string(e.Payload))
}

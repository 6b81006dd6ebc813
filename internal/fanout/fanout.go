// Package fanout implements QueryFanout: dispatching a search or info
// request to every node owning a relevant slot, collecting responses,
// and classifying the aggregate result per spec.md §4.5's
// kAll/kPrimary target modes and OK/INDEX_NAME_ERROR/
// INCONSISTENT_STATE_ERROR/COMMUNICATION_ERROR status taxonomy.
//
// Grounded on the prior coordinator's broadcast/forward handlers
// (sequential POST to every target node, individual failures logged but
// not fatal to the overall operation) generalized into a reusable
// executor, with per-target retry via github.com/cenkalti/backoff/v4
// (see internal/metadata for the same dependency's other use) instead of
// a fixed context timeout with no retry, and with per-round concurrency
// fanned out and bounded via golang.org/x/sync/errgroup rather than a
// hand-rolled goroutine-plus-done-channel join.
package fanout

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/ftindex/internal/cluster"
	"github.com/dreamware/ftindex/internal/wire"
)

// maxConcurrentCalls bounds how many in-flight HTTP calls a single
// fanout round may have outstanding at once, so a query against a large
// cluster doesn't open one goroutine (and one socket) per slot owner
// simultaneously.
const maxConcurrentCalls = 32

// Target describes one node this fanout round must reach.
type Target struct {
	NodeID  string
	Addr    string
	SlotID  int
	Primary bool
}

// SelectTargets filters candidates by mode: TargetAll keeps every
// candidate, TargetPrimary keeps only primaries (one per slot).
func SelectTargets(candidates []Target, mode wire.TargetMode) []Target {
	if mode == wire.TargetAll {
		return candidates
	}
	out := make([]Target, 0, len(candidates))
	for _, c := range candidates {
		if c.Primary {
			out = append(out, c)
		}
	}
	return out
}

// Executor dispatches fanout requests over an HTTP transport, retrying
// each target independently with bounded exponential backoff so one
// slow or transiently-unreachable node doesn't block the others (each
// target's request runs in its own goroutine).
type Executor struct {
	maxRetries  uint64
	perCallWait time.Duration
}

// NewExecutor returns an Executor with the given per-target retry
// budget and per-attempt timeout.
func NewExecutor(maxRetries uint64, perCallWait time.Duration) *Executor {
	if maxRetries == 0 {
		maxRetries = 2
	}
	if perCallWait == 0 {
		perCallWait = 2 * time.Second
	}
	return &Executor{maxRetries: maxRetries, perCallWait: perCallWait}
}

// SearchResult pairs a target with the response (or failure
// classification) it produced.
type SearchResult struct {
	Target   Target
	Response wire.SearchIndexPartitionResponse
}

// Search dispatches req to every target in parallel, in its own
// goroutine per target, and returns every result once all targets have
// either responded or exhausted their retry budget. A target that never
// responds successfully is recorded as StatusCommunicationError rather
// than omitted, so the caller can distinguish "this partition was
// unreachable" from "this partition had zero matches".
func (e *Executor) Search(ctx context.Context, targets []Target, req wire.SearchIndexPartitionRequest) []SearchResult {
	results := make([]SearchResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = SearchResult{Target: t, Response: e.searchOne(gctx, t, req)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) searchOne(ctx context.Context, t Target, req wire.SearchIndexPartitionRequest) wire.SearchIndexPartitionResponse {
	var resp wire.SearchIndexPartitionResponse
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxRetries), ctx)

	err := backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.perCallWait)
		defer cancel()
		url := t.Addr + "/shard/search"
		var out wire.SearchIndexPartitionResponse
		if err := cluster.PostJSON(callCtx, url, req, &out); err != nil {
			return err
		}
		resp = out
		return nil
	}, bo)

	if err != nil {
		return wire.SearchIndexPartitionResponse{Status: wire.StatusCommunicationError, ShardID: req.ShardID}
	}
	return resp
}

// InfoResult pairs a target with its info response.
type InfoResult struct {
	Target   Target
	Response wire.InfoIndexPartitionResponse
}

// Info dispatches req to every target in parallel, same shape as
// Search.
func (e *Executor) Info(ctx context.Context, targets []Target, req wire.InfoIndexPartitionRequest) []InfoResult {
	results := make([]InfoResult, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCalls)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = InfoResult{Target: t, Response: e.infoOne(gctx, t, req)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) infoOne(ctx context.Context, t Target, req wire.InfoIndexPartitionRequest) wire.InfoIndexPartitionResponse {
	var resp wire.InfoIndexPartitionResponse
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.maxRetries), ctx)

	err := backoff.Retry(func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.perCallWait)
		defer cancel()
		url := t.Addr + "/shard/info"
		var out wire.InfoIndexPartitionResponse
		if err := cluster.PostJSON(callCtx, url, req, &out); err != nil {
			return err
		}
		resp = out
		return nil
	}, bo)

	if err != nil {
		return wire.InfoIndexPartitionResponse{Status: wire.StatusCommunicationError, ShardID: req.ShardID}
	}
	return resp
}

// Consistency classifies an aggregate fanout round: Consistent means
// every target agreed on the index's fingerprint (the query saw one
// coherent view of the schema across every partition); Inconsistent
// means at least two targets disagreed. The coordinator's FT.INFO
// handler reports the classification in its response's "consistency"
// field alongside the aggregated counts; it does not fail the request.
type Consistency int

const (
	Consistent Consistency = iota
	Inconsistent
	Indeterminate // no fingerprints were supplied
)

// CheckConsistency reports whether every value in fingerprints is the
// same.
func CheckConsistency(fingerprints []uint64) Consistency {
	seen := map[uint64]bool{}
	for _, fp := range fingerprints {
		seen[fp] = true
	}
	switch {
	case len(seen) == 0:
		return Indeterminate
	case len(seen) == 1:
		return Consistent
	default:
		return Inconsistent
	}
}

// MergedSearch is the result of Merge: OK SearchResults in a single ranked list,
// ascending by score (lower distance / higher relevance first, matching
// indexes.ScoredDoc's convention), truncated to limit. Non-OK results
// are reported separately via Errors so the caller can decide whether a
// partial result is acceptable.
type MergedSearch struct {
	Keys   []string
	Scores []float64
	Errors map[int]wire.PartitionStatus // target SlotID -> status, for non-OK partitions
}

// Merge combines results into a single ranked, limit-truncated list.
func Merge(results []SearchResult, limit int) MergedSearch {
	type scored struct {
		key   string
		score float64
	}
	var all []scored
	errs := make(map[int]wire.PartitionStatus)

	for _, r := range results {
		if r.Response.Status != wire.StatusOK {
			errs[r.Target.SlotID] = r.Response.Status
			continue
		}
		for i, k := range r.Response.Keys {
			s := 0.0
			if i < len(r.Response.Scores) {
				s = r.Response.Scores[i]
			}
			all = append(all, scored{key: k, score: s})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score < all[j].score })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := MergedSearch{Errors: errs}
	for _, s := range all {
		out.Keys = append(out.Keys, s.key)
		out.Scores = append(out.Scores, s.score)
	}
	return out
}

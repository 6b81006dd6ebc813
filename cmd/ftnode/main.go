// Package main implements the ftindex node service: the worker process
// that owns one or more index schema partitions, applies document
// mutations, answers local search/info requests from fanout, and
// gossips global metadata with its peers.
//
// The node is a worker in the cluster, responsible for:
//   - Owning the index schemas assigned to its slots
//   - Applying document mutations (via FT.INTERNAL_UPDATE or direct
//     keyspace notification, once a host integration wires one in)
//   - Answering /shard/search and /shard/info fanout requests
//   - Registering with the coordinator and gossiping metadata with peers
//
// Configuration is layered (flags > environment > config file >
// defaults) via internal/config; see --help on the serve subcommand.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/ftindex/internal/cluster"
	"github.com/dreamware/ftindex/internal/config"
	"github.com/dreamware/ftindex/internal/ftcmd"
	"github.com/dreamware/ftindex/internal/hostcap"
	"github.com/dreamware/ftindex/internal/indexes"
	"github.com/dreamware/ftindex/internal/intern"
	"github.com/dreamware/ftindex/internal/mempool"
	"github.com/dreamware/ftindex/internal/metadata"
	"github.com/dreamware/ftindex/internal/schema"
	"github.com/dreamware/ftindex/internal/schemamanager"
	"github.com/dreamware/ftindex/internal/wire"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ftnode",
		Short: "Run an ftindex cluster node",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a node config file")
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the node's HTTP server and register with the coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// nodeServer holds this node's runtime state: its registered schemas,
// the shared interner/pool backing them, and its metadata gossip state.
type nodeServer struct {
	log      *zap.Logger
	schemas  *schemamanager.Manager
	metadata *metadata.Manager
	interner *intern.Store
	pool     *mempool.Pool
	reader   hostcap.KeyReader
	oom      *hostcap.MemoryOOMFlag
	nodeID   string
}

func serve(ctx context.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.LoadNode(configPath)
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	pool := mempool.NewPool()
	srv := &nodeServer{
		log:      logger,
		schemas:  schemamanager.New(),
		metadata: metadata.New(cfg.NodeID, metadata.NewHTTPTransport()),
		interner: intern.New(pool),
		pool:     pool,
		reader:   hostcap.NewMemoryKeyReader(0),
		oom:      hostcap.NewMemoryOOMFlag(),
		nodeID:   cfg.NodeID,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ft/create", srv.handleCreate)
	mux.HandleFunc("/ft/info", srv.handleInfo)
	mux.HandleFunc("/ft/internal_update", srv.handleInternalUpdate)
	mux.HandleFunc("/shard/search", srv.handleShardSearch)
	mux.HandleFunc("/shard/info", srv.handleShardInfo)
	mux.HandleFunc("/metadata/gossip", srv.handleMetadataGossip)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("node listening", zap.String("node_id", cfg.NodeID), zap.String("addr", cfg.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	registerWithCoordinator(ctx, logger, cfg.CoordinatorAddr, cfg.NodeID, cfg.PublicAddr)

	gossipCtx, cancelGossip := context.WithCancel(context.Background())
	go srv.metadata.RunGossipLoop(gossipCtx, func() []string { return []string{cfg.CoordinatorAddr} })

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	cancelGossip()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("node stopped")
	return nil
}

// registerWithCoordinator retries registration with the coordinator up
// to 10 times, sleeping a fixed 400ms between attempts and passing ctx
// to cluster.PostJSON unchanged (no per-attempt deadline beyond the
// client's own timeout). If every attempt fails it calls logger.Fatal.
func registerWithCoordinator(ctx context.Context, logger *zap.Logger, coord, id, addr string) {
	body := cluster.RegisterRequest{Node: cluster.NodeInfo{ID: id, Addr: addr}}
	var resp cluster.NodeInfo
	var lastErr error
	for i := 0; i < 10; i++ {
		lastErr = cluster.PostJSON(ctx, coord+"/register", body, &resp)
		if lastErr == nil {
			logger.Info("registered with coordinator", zap.String("coordinator", coord), zap.Ints("slots", resp.Slots))
			return
		}
		logger.Warn("register retry", zap.Int("attempt", i+1), zap.Error(lastErr))
		time.Sleep(400 * time.Millisecond)
	}
	logger.Fatal("failed to register with coordinator", zap.Error(lastErr))
}

func (s *nodeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var argv []string
	if err := wire.Unmarshal(readBody(r), &argv); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := ftcmd.ParseCreate(argv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sch, err := schema.New(req.IndexName, 0, req.Attributes, s.reader, s.interner, s.pool)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sch.SetOOMSignal(s.oom)
	if err := s.schemas.Register(sch); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *nodeServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("index")
	sch, err := s.schemas.Lookup(0, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, sch.Info())
}

func (s *nodeServer) handleInternalUpdate(w http.ResponseWriter, r *http.Request) {
	var argv []string
	if err := wire.Unmarshal(readBody(r), &argv); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := ftcmd.ParseInternalUpdate(argv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sch, err := s.schemas.Lookup(0, req.IndexName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	fields := make(map[string][]byte, len(req.Fields))
	for k, v := range req.Fields {
		fields[k] = []byte(v)
	}
	sch.Enqueue(schema.DocumentMutation{Key: req.Key, Fields: fields, Delete: req.Delete})
	sch.ApplyQueued(1)
	w.WriteHeader(http.StatusOK)
}

func (s *nodeServer) handleShardSearch(w http.ResponseWriter, r *http.Request) {
	var req wire.SearchIndexPartitionRequest
	if err := wire.Unmarshal(readBody(r), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sch, err := s.schemas.Lookup(0, req.IndexName)
	if err != nil {
		writeJSON(w, wire.SearchIndexPartitionResponse{Status: wire.StatusIndexNameError, ShardID: req.ShardID})
		return
	}

	fp := sch.Fingerprint()
	if req.ExpectedFingerprint != 0 && uint64(fp) != req.ExpectedFingerprint {
		writeJSON(w, wire.SearchIndexPartitionResponse{Status: wire.StatusInconsistentStateError, ShardID: req.ShardID, Fingerprint: uint64(fp)})
		return
	}

	sch.RLock()
	ids := searchQuery(sch, req.Query)
	sch.RUnlock()

	keys := make([]string, 0, len(ids))
	scores := make([]float64, 0, len(ids))
	for i, id := range ids {
		if k, ok := sch.KeyForDoc(id); ok {
			keys = append(keys, k)
			scores = append(scores, float64(i))
		}
	}
	if req.Offset < len(keys) {
		keys = keys[req.Offset:]
		scores = scores[req.Offset:]
	} else {
		keys, scores = nil, nil
	}
	if req.Limit > 0 && req.Limit < len(keys) {
		keys = keys[:req.Limit]
		scores = scores[:req.Limit]
	}

	writeJSON(w, wire.SearchIndexPartitionResponse{
		Status: wire.StatusOK, Keys: keys, Scores: scores,
		Fingerprint: uint64(fp), ShardID: req.ShardID,
	})
}

// searchQuery resolves a simple "*" (match-all) or "@attr:value" equality
// query against the schema's attribute indexes. Richer query syntax
// (ranges, boolean combinators) is a host-integration concern layered on
// top of the Fetcher primitives this package already exposes.
func searchQuery(sch *schema.Schema, query string) []indexes.DocID {
	if query == "" || query == "*" {
		return indexes.Collect(sch.Universe())
	}
	if !strings.HasPrefix(query, "@") {
		return nil
	}
	rest := strings.TrimPrefix(query, "@")
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return nil
	}
	idx := sch.Index(parts[0])
	if idx == nil {
		return nil
	}
	switch m := idx.(type) {
	case *indexes.TagIndex:
		return indexes.Collect(m.MatchTag(parts[1]))
	case *indexes.TextIndex:
		return indexes.Collect(m.Match(parts[1]))
	default:
		return nil
	}
}

func (s *nodeServer) handleShardInfo(w http.ResponseWriter, r *http.Request) {
	var req wire.InfoIndexPartitionRequest
	if err := wire.Unmarshal(readBody(r), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sch, err := s.schemas.Lookup(0, req.IndexName)
	if err != nil {
		writeJSON(w, wire.InfoIndexPartitionResponse{Status: wire.StatusIndexNameError, ShardID: req.ShardID})
		return
	}
	writeJSON(w, wire.InfoIndexPartitionResponse{
		Status:          wire.StatusOK,
		DocCount:        int64(sch.DocCount()),
		MemoryBytes:     sch.MemoryBytes(),
		BackfillPercent: sch.BackfillPercent(),
		PausedByOOM:     sch.PausedByOOM(),
		Fingerprint:     uint64(sch.Fingerprint()),
		ShardID:         req.ShardID,
	})
}

func (s *nodeServer) handleMetadataGossip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.metadata.Snapshot())
}

func readBody(r *http.Request) []byte {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	return data
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := wire.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Package main implements the ftindex coordinator service: the control
// plane that tracks node membership, owns the cluster's slot-to-node
// assignment, monitors node liveness, and fans search/info queries out
// to the nodes owning the relevant slots.
//
// Responsibilities:
//   - Node registration and liveness monitoring
//   - Slot-to-node assignment and rebalancing
//   - FT.SEARCH/FT.INFO request fanout to owning nodes
//   - Serving as the metadata gossip anchor peers reconcile against
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/ftindex/internal/cluster"
	"github.com/dreamware/ftindex/internal/config"
	"github.com/dreamware/ftindex/internal/fanout"
	"github.com/dreamware/ftindex/internal/ftcmd"
	"github.com/dreamware/ftindex/internal/metadata"
	"github.com/dreamware/ftindex/internal/wire"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ftcoordinator",
		Short: "Run the ftindex cluster coordinator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a coordinator config file")
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the coordinator's HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// coordinatorServer is the coordinator's runtime state: node membership,
// slot assignment, liveness monitoring, metadata gossip, and the fanout
// executor used to dispatch queries.
type coordinatorServer struct {
	log      *zap.Logger
	slots    *cluster.SlotRegistry
	liveness *cluster.LivenessMonitor
	metadata *metadata.Manager
	fanout   *fanout.Executor

	mu    sync.RWMutex
	nodes []cluster.NodeInfo
}

func serve(ctx context.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.LoadCoordinator(configPath)
	if err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	srv := &coordinatorServer{
		log:      logger,
		slots:    cluster.NewSlotRegistry(cfg.NumSlots),
		liveness: cluster.NewLivenessMonitor(5 * time.Second),
		metadata: metadata.New("coordinator", metadata.NewHTTPTransport()),
		fanout:   fanout.NewExecutor(2, 2*time.Second),
	}
	srv.liveness.SetOnUnhealthy(func(nodeID string) {
		logger.Warn("node unhealthy, rebalancing slots", zap.String("node_id", nodeID))
		srv.rebalance()
	})

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	go srv.liveness.Start(monitorCtx, srv.listNodes)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/register", srv.handleRegister)
	mux.HandleFunc("/nodes", srv.handleNodes)
	mux.HandleFunc("/ft/search", srv.handleSearch)
	mux.HandleFunc("/ft/info", srv.handleInfo)
	mux.HandleFunc("/metadata/gossip", srv.handleMetadataGossip)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("coordinator listening", zap.String("addr", cfg.Listen))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancelMonitor()
	srv.liveness.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("coordinator stopped")
	return nil
}

func (s *coordinatorServer) listNodes() []cluster.NodeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cluster.NodeInfo, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// rebalance reassigns every slot round-robin across currently registered
// nodes, triggered on node
// unhealthiness, generalized to the slot vocabulary.
func (s *coordinatorServer) rebalance() {
	s.mu.RLock()
	ids := make([]string, len(s.nodes))
	for i, n := range s.nodes {
		ids[i] = n.ID
	}
	s.mu.RUnlock()

	if len(ids) == 0 {
		return
	}
	if err := s.slots.Rebalance(ids); err != nil {
		s.log.Error("rebalance failed", zap.Error(err))
	}
}

func (s *coordinatorServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req cluster.RegisterRequest
	if err := wire.Unmarshal(readBody(r), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.nodes = append(s.nodes, req.Node)
	s.mu.Unlock()

	s.log.Info("node registered", zap.String("node_id", req.Node.ID), zap.String("addr", req.Node.Addr))
	s.rebalance()

	resp := req.Node
	resp.Slots = s.slots.NodeSlots(req.Node.ID)
	writeJSON(w, resp)
}

func (s *coordinatorServer) handleNodes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.listNodes())
}

// handleSearch parses an FT.SEARCH argv, fans it out to every node
// holding a slot assignment, and merges the ranked results.
func (s *coordinatorServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var argv []string
	if err := wire.Unmarshal(readBody(r), &argv); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req, err := ftcmd.ParseSearch(argv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	targets := s.targetsFor(wire.TargetAll)
	results := s.fanout.Search(r.Context(), targets, wire.SearchIndexPartitionRequest{
		IndexName: req.IndexName, Query: req.Query, Limit: req.Limit, Offset: req.Offset,
	})
	writeJSON(w, fanout.Merge(results, req.Limit))
}

func (s *coordinatorServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	var argv []string
	if err := wire.Unmarshal(readBody(r), &argv); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	parsedReq, err := ftcmd.ParseInfo(argv)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	targets := s.targetsFor(wire.TargetAll)
	results := s.fanout.Info(r.Context(), targets, wire.InfoIndexPartitionRequest{IndexName: parsedReq.IndexName})

	var totalDocs, totalBytes int64
	fps := make([]uint64, 0, len(results))
	for _, res := range results {
		if res.Response.Status == wire.StatusOK {
			totalDocs += res.Response.DocCount
			totalBytes += res.Response.MemoryBytes
			fps = append(fps, res.Response.Fingerprint)
		}
	}

	writeJSON(w, struct {
		DocCount     int64            `json:"doc_count"`
		MemoryBytes  int64            `json:"memory_bytes"`
		Consistency  fanout.Consistency `json:"consistency"`
	}{totalDocs, totalBytes, fanout.CheckConsistency(fps)})
}

// targetsFor builds one fanout.Target per distinct node currently
// holding at least one primary (or, under TargetAll, any) slot
// assignment. Every node answers FT.SEARCH/FT.INFO against its own
// complete local schema, so fanout dedupes by node rather than
// dispatching once per slot the node happens to own.
func (s *coordinatorServer) targetsFor(mode wire.TargetMode) []fanout.Target {
	assignments := s.slots.GetAllAssignments()
	s.mu.RLock()
	addrByID := make(map[string]string, len(s.nodes))
	for _, n := range s.nodes {
		addrByID[n.ID] = n.Addr
	}
	s.mu.RUnlock()

	seen := make(map[string]bool, len(addrByID))
	candidates := make([]fanout.Target, 0, len(addrByID))
	for _, a := range assignments {
		if seen[a.NodeID] {
			continue
		}
		seen[a.NodeID] = true
		candidates = append(candidates, fanout.Target{
			NodeID: a.NodeID, Addr: addrByID[a.NodeID], SlotID: a.SlotID, Primary: a.IsPrimary,
		})
	}
	return fanout.SelectTargets(candidates, mode)
}

func (s *coordinatorServer) handleMetadataGossip(w http.ResponseWriter, _ *http.Request) {
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

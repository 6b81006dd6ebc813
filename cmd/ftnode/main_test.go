package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dreamware/ftindex/internal/hostcap"
	"github.com/dreamware/ftindex/internal/intern"
	"github.com/dreamware/ftindex/internal/mempool"
	"github.com/dreamware/ftindex/internal/metadata"
	"github.com/dreamware/ftindex/internal/schemamanager"
	"github.com/dreamware/ftindex/internal/wire"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *nodeServer {
	t.Helper()
	pool := mempool.NewPool()
	return &nodeServer{
		log:      zap.NewNop(),
		schemas:  schemamanager.New(),
		metadata: metadata.New("test-node", metadata.NewHTTPTransport()),
		interner: intern.New(pool),
		pool:     pool,
		reader:   hostcap.NewMemoryKeyReader(0),
		nodeID:   "test-node",
	}
}

func postArgv(t *testing.T, handler http.HandlerFunc, argv []string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := wire.Marshal(argv)
	if err != nil {
		t.Fatalf("marshal argv: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(string(body)))
	req.ContentLength = int64(len(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleCreateAndInfo(t *testing.T) {
	srv := newTestServer(t)

	rec := postArgv(t, srv.handleCreate, []string{
		"docs", "ON", "HASH", "SCHEMA", "title", "TEXT", "price", "NUMERIC",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("handleCreate: status %d body %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/ft/info?index=docs", nil)
	infoRec := httptest.NewRecorder()
	srv.handleInfo(infoRec, req)
	if infoRec.Code != http.StatusOK {
		t.Fatalf("handleInfo: status %d body %s", infoRec.Code, infoRec.Body.String())
	}
}

func TestHandleCreateDuplicateConflicts(t *testing.T) {
	srv := newTestServer(t)
	argv := []string{"docs", "ON", "HASH", "SCHEMA", "title", "TEXT"}

	postArgv(t, srv.handleCreate, argv)
	rec := postArgv(t, srv.handleCreate, argv)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict on duplicate create, got %d", rec.Code)
	}
}

func TestHandleInternalUpdateAndSearch(t *testing.T) {
	srv := newTestServer(t)
	postArgv(t, srv.handleCreate, []string{"docs", "ON", "HASH", "SCHEMA", "title", "TEXT"})
	postArgv(t, srv.handleInternalUpdate, []string{"docs", "doc:1", "SET", "value", "hello world"})

	reqBody, _ := wire.Marshal(wire.SearchIndexPartitionRequest{IndexName: "docs", Query: "*", Limit: 10})
	req := httptest.NewRequest(http.MethodPost, "/shard/search", strings.NewReader(string(reqBody)))
	req.ContentLength = int64(len(reqBody))
	rec := httptest.NewRecorder()
	srv.handleShardSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("handleShardSearch: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp wire.SearchIndexPartitionResponse
	if err := wire.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != wire.StatusOK || len(resp.Keys) != 1 || resp.Keys[0] != "doc:1" {
		t.Fatalf("got %+v", resp)
	}
}

func TestHandleShardSearchUnknownIndex(t *testing.T) {
	srv := newTestServer(t)
	reqBody, _ := wire.Marshal(wire.SearchIndexPartitionRequest{IndexName: "missing", Query: "*"})
	req := httptest.NewRequest(http.MethodPost, "/shard/search", strings.NewReader(string(reqBody)))
	req.ContentLength = int64(len(reqBody))
	rec := httptest.NewRecorder()
	srv.handleShardSearch(rec, req)

	var resp wire.SearchIndexPartitionResponse
	if err := wire.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Status != wire.StatusIndexNameError {
		t.Fatalf("expected INDEX_NAME_ERROR, got %+v", resp)
	}
}

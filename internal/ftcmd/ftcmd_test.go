package ftcmd

import (
	"testing"

	"github.com/dreamware/ftindex/internal/indexes"
	"github.com/dreamware/ftindex/internal/schema"
)

func TestParseCreateBasicFields(t *testing.T) {
	req, err := ParseCreate([]string{
		"idx1", "ON", "HASH", "SCHEMA",
		"title", "TEXT",
		"price", "NUMERIC",
		"color", "TAG", "SEPARATOR", "|",
	})
	if err != nil {
		t.Fatalf("ParseCreate: %v", err)
	}
	if req.IndexName != "idx1" || len(req.Attributes) != 3 {
		t.Fatalf("got %+v", req)
	}
	if req.Attributes[0].Type != schema.AttributeText {
		t.Fatalf("title: %+v", req.Attributes[0])
	}
	if req.Attributes[1].Type != schema.AttributeNumeric {
		t.Fatalf("price: %+v", req.Attributes[1])
	}
	if req.Attributes[2].Type != schema.AttributeTag || req.Attributes[2].TagSeparator != "|" {
		t.Fatalf("color: %+v", req.Attributes[2])
	}
}

func TestParseCreateVectorHNSW(t *testing.T) {
	req, err := ParseCreate([]string{
		"idx2", "ON", "HASH", "SCHEMA",
		"embedding", "VECTOR", "HNSW", "8",
		"DIM", "128", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_RUNTIME", "64",
	})
	if err != nil {
		t.Fatalf("ParseCreate: %v", err)
	}
	if len(req.Attributes) != 1 {
		t.Fatalf("got %+v", req.Attributes)
	}
	a := req.Attributes[0]
	if a.Type != schema.AttributeVectorHNSW || a.VectorDim != 128 || a.VectorMetric != indexes.MetricCosine || a.VectorM != 16 || a.VectorEfSearch != 64 {
		t.Fatalf("got %+v", a)
	}
}

func TestParseCreateMissingSchema(t *testing.T) {
	if _, err := ParseCreate([]string{"idx", "ON", "HASH"}); err == nil {
		t.Fatal("expected error for missing SCHEMA clause")
	}
}

func TestParseInfo(t *testing.T) {
	req, err := ParseInfo([]string{"idx1"})
	if err != nil || req.IndexName != "idx1" {
		t.Fatalf("got %+v, err=%v", req, err)
	}
	if _, err := ParseInfo([]string{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSearchWithLimit(t *testing.T) {
	req, err := ParseSearch([]string{"idx1", "@title:foo", "LIMIT", "5", "20"})
	if err != nil {
		t.Fatalf("ParseSearch: %v", err)
	}
	if req.IndexName != "idx1" || req.Query != "@title:foo" || req.Offset != 5 || req.Limit != 20 {
		t.Fatalf("got %+v", req)
	}
}

func TestParseSearchDefaultLimit(t *testing.T) {
	req, err := ParseSearch([]string{"idx1", "*"})
	if err != nil {
		t.Fatalf("ParseSearch: %v", err)
	}
	if req.Limit != 10 {
		t.Fatalf("expected default limit 10, got %d", req.Limit)
	}
}

func TestParseInternalUpdateSetAndDel(t *testing.T) {
	set, err := ParseInternalUpdate([]string{"idx1", "doc:1", "SET", "title", "hello"})
	if err != nil {
		t.Fatalf("SET: %v", err)
	}
	if set.Delete || set.Fields["title"] != "hello" {
		t.Fatalf("got %+v", set)
	}

	del, err := ParseInternalUpdate([]string{"idx1", "doc:1", "DEL"})
	if err != nil {
		t.Fatalf("DEL: %v", err)
	}
	if !del.Delete {
		t.Fatalf("got %+v", del)
	}
}

func TestParseInternalUpdateBadVerb(t *testing.T) {
	if _, err := ParseInternalUpdate([]string{"idx1", "doc:1", "FROB"}); err == nil {
		t.Fatal("expected error for unknown verb")
	}
}

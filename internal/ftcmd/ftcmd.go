// Package ftcmd parses the engine's host-facing command argv vectors
// (FT.CREATE, FT.INFO, FT.SEARCH, FT.INTERNAL_UPDATE) into typed
// requests, per spec.md §6.1-6.3. Parsing checks shape, type coercion
// and the attribute type keyword (an unknown attribute type is rejected
// here); other semantic checks, such as a duplicate attribute name, are
// left to the command handler, which reports them with the same
// enginerr.Kind taxonomy everything else uses.
package ftcmd

import (
	"strconv"
	"strings"

	"github.com/dreamware/ftindex/internal/enginerr"
	"github.com/dreamware/ftindex/internal/indexes"
	"github.com/dreamware/ftindex/internal/schema"
	"github.com/dreamware/ftindex/internal/wire"
)

// CreateRequest is the parsed form of:
//
//	FT.CREATE <index> ON HASH SCHEMA <field> <TYPE> [opts...] [<field> <TYPE> [opts...] ...]
type CreateRequest struct {
	IndexName  string
	Attributes []schema.AttributeSpec
}

// ParseCreate parses an FT.CREATE argv (excluding the "FT.CREATE" token
// itself).
func ParseCreate(argv []string) (CreateRequest, error) {
	if len(argv) < 4 {
		return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "FT.CREATE requires at least <index> ON HASH SCHEMA ...")
	}
	req := CreateRequest{IndexName: argv[0]}

	schemaIdx := indexOf(argv, "SCHEMA")
	if schemaIdx < 0 {
		return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "FT.CREATE missing SCHEMA clause")
	}

	fields := argv[schemaIdx+1:]
	for i := 0; i < len(fields); {
		if i+2 > len(fields) {
			return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "FT.CREATE schema clause truncated")
		}
		name := fields[i]
		typeTok := strings.ToUpper(fields[i+1])
		i += 2

		spec := schema.AttributeSpec{Name: name, FieldPath: name}
		switch typeTok {
		case "NUMERIC":
			spec.Type = schema.AttributeNumeric
		case "TAG":
			spec.Type = schema.AttributeTag
			spec.TagSeparator = ","
			if i < len(fields) && strings.ToUpper(fields[i]) == "SEPARATOR" && i+1 < len(fields) {
				spec.TagSeparator = fields[i+1]
				i += 2
			}
		case "TEXT":
			spec.Type = schema.AttributeText
		case "VECTOR":
			if i >= len(fields) {
				return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "VECTOR attribute missing algorithm")
			}
			algo := strings.ToUpper(fields[i])
			i++
			if i >= len(fields) {
				return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "VECTOR attribute missing param count")
			}
			n, err := strconv.Atoi(fields[i])
			if err != nil {
				return CreateRequest{}, enginerr.Wrap(enginerr.InvalidArgument, "VECTOR attribute param count not an integer", err)
			}
			i++
			params, err := parseKVParams(fields[i : i+n])
			if err != nil {
				return CreateRequest{}, err
			}
			i += n

			dim, err := strconv.Atoi(params["DIM"])
			if err != nil {
				return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "VECTOR attribute missing/invalid DIM")
			}
			spec.VectorDim = dim
			spec.VectorMetric = parseMetric(params["DISTANCE_METRIC"])
			if algo == "HNSW" {
				spec.Type = schema.AttributeVectorHNSW
				if m, err := strconv.Atoi(params["M"]); err == nil {
					spec.VectorM = m
				}
				if ef, err := strconv.Atoi(params["EF_RUNTIME"]); err == nil {
					spec.VectorEfSearch = ef
				}
			} else {
				spec.Type = schema.AttributeVectorFlat
			}
		default:
			return CreateRequest{}, enginerr.New(enginerr.InvalidArgument, "unknown attribute type "+typeTok)
		}
		req.Attributes = append(req.Attributes, spec)
	}
	return req, nil
}

func parseMetric(s string) indexes.DistanceMetric {
	switch strings.ToUpper(s) {
	case "COSINE":
		return indexes.MetricCosine
	case "IP":
		return indexes.MetricIP
	default:
		return indexes.MetricL2
	}
}

func parseKVParams(toks []string) (map[string]string, error) {
	if len(toks)%2 != 0 {
		return nil, enginerr.New(enginerr.InvalidArgument, "VECTOR attribute params must be key/value pairs")
	}
	out := make(map[string]string, len(toks)/2)
	for i := 0; i < len(toks); i += 2 {
		out[strings.ToUpper(toks[i])] = toks[i+1]
	}
	return out, nil
}

func indexOf(ss []string, target string) int {
	for i, s := range ss {
		if strings.EqualFold(s, target) {
			return i
		}
	}
	return -1
}

// InfoRequest is the parsed form of "FT.INFO <index>".
type InfoRequest struct {
	IndexName string
}

// ParseInfo parses an FT.INFO argv.
func ParseInfo(argv []string) (InfoRequest, error) {
	if len(argv) != 1 {
		return InfoRequest{}, enginerr.New(enginerr.InvalidArgument, "FT.INFO takes exactly one argument: <index>")
	}
	return InfoRequest{IndexName: argv[0]}, nil
}

// SearchRequest is the parsed form of:
//
//	FT.SEARCH <index> <query> [LIMIT <offset> <num>]
type SearchRequest struct {
	IndexName string
	Query     string
	Offset    int
	Limit     int
}

// ParseSearch parses an FT.SEARCH argv.
func ParseSearch(argv []string) (SearchRequest, error) {
	if len(argv) < 2 {
		return SearchRequest{}, enginerr.New(enginerr.InvalidArgument, "FT.SEARCH requires <index> <query>")
	}
	req := SearchRequest{IndexName: argv[0], Query: argv[1], Limit: 10}

	if li := indexOf(argv, "LIMIT"); li >= 0 {
		if li+2 >= len(argv) {
			return SearchRequest{}, enginerr.New(enginerr.InvalidArgument, "LIMIT requires <offset> <num>")
		}
		off, err := strconv.Atoi(argv[li+1])
		if err != nil {
			return SearchRequest{}, enginerr.Wrap(enginerr.InvalidArgument, "LIMIT offset not an integer", err)
		}
		n, err := strconv.Atoi(argv[li+2])
		if err != nil {
			return SearchRequest{}, enginerr.Wrap(enginerr.InvalidArgument, "LIMIT num not an integer", err)
		}
		req.Offset, req.Limit = off, n
	}
	return req, nil
}

// InternalUpdateRequest is the parsed form of the internal replication
// command nodes send each other to apply a single document mutation
// out of band from normal keyspace notification, per spec.md §6.3.
type InternalUpdateRequest struct {
	IndexName string
	Key       string
	Fields    map[string]string
	Delete    bool
}

// ParseInternalUpdate parses an FT.INTERNAL_UPDATE argv:
//
//	FT.INTERNAL_UPDATE <index> <key> DEL
//	FT.INTERNAL_UPDATE <index> <key> SET <field> <value> [<field> <value> ...]
func ParseInternalUpdate(argv []string) (InternalUpdateRequest, error) {
	if len(argv) < 3 {
		return InternalUpdateRequest{}, enginerr.New(enginerr.InvalidArgument, "FT.INTERNAL_UPDATE requires <index> <key> <DEL|SET ...>")
	}
	req := InternalUpdateRequest{IndexName: argv[0], Key: argv[1]}
	switch strings.ToUpper(argv[2]) {
	case "DEL":
		req.Delete = true
		return req, nil
	case "SET":
		rest := argv[3:]
		if len(rest)%2 != 0 {
			return InternalUpdateRequest{}, enginerr.New(enginerr.InvalidArgument, "SET requires field/value pairs")
		}
		req.Fields = make(map[string]string, len(rest)/2)
		for i := 0; i < len(rest); i += 2 {
			req.Fields[rest[i]] = rest[i+1]
		}
		return req, nil
	default:
		return InternalUpdateRequest{}, enginerr.New(enginerr.InvalidArgument, "expected DEL or SET")
	}
}

// partitionRequestFromSearch adapts a parsed SearchRequest into the wire
// fanout request shape for a given shard target.
func partitionRequestFromSearch(req SearchRequest, shardID int, expectedFP uint64) wire.SearchIndexPartitionRequest {
	return wire.SearchIndexPartitionRequest{
		IndexName:           req.IndexName,
		Query:               req.Query,
		Limit:               req.Limit,
		Offset:              req.Offset,
		ShardID:             shardID,
		ExpectedFingerprint: expectedFP,
	}
}

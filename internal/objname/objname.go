// Package objname implements the ObjName encoding used to key global
// metadata entries by (db number, index name): a backward-compatible,
// Redis-style hash-tag wire format with a 1.0 and a 1.1 variant, as
// specified in spec.md §4.4.
//
// Version 1.0 is just the raw name, implying db_num 0. Version 1.1
// prefixes the name with a hash tag "{dddd}" carrying the ASCII decimal
// db number at offset 1, so a cluster-aware client can still derive a
// hash slot from the tag the way it would for any other hash-tagged
// key. Decode tells the two apart by checking for a `{digits…}` tag at
// offset 1; Encode emits the raw name only when db_num is 0 and the
// name itself carries no hash tag, and the 1.1 form otherwise.
package objname

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dreamware/ftindex/internal/enginerr"
)

// Version identifies which wire variant a name was decoded from, so a
// caller rewriting metadata can preserve provenance if needed.
type Version string

const (
	Version10 Version = "1.0"
	Version11 Version = "1.1"
)

// Name is a decoded ObjName: the database number an index lives under,
// plus its index name.
type Name struct {
	Index   string
	DBNum   int
	Version Version
}

// hasHashTag reports whether s itself opens with a "{...}" hash tag at
// offset 0, the case Encode must avoid colliding with when db_num is 0:
// a name that already carries its own tag cannot be emitted raw, since a
// bare db_num of 0 would then be indistinguishable from the name's own
// tag on decode.
func hasHashTag(s string) bool {
	if len(s) == 0 || s[0] != '{' {
		return false
	}
	return strings.IndexByte(s, '}') > 0
}

// Encode produces the canonical wire form for (dbNum, index) per spec.md
// §4.4: the raw index name when dbNum is 0 and index has no hash tag of
// its own, else "{dbNum}index".
func Encode(dbNum int, index string) string {
	if dbNum == 0 && !hasHashTag(index) {
		return index
	}
	return fmt.Sprintf("{%d}%s", dbNum, index)
}

// EncodeLegacy returns index unchanged: the pre-1.1 (db_num==0,
// untagged) form. Unlike Encode(0, index), it does not add a "{0}" tag
// when index carries its own hash tag.
func EncodeLegacy(index string) string {
	return index
}

// decodeHashTag splits a leading "{digits…}" hash tag off s, returning
// the digits and the remainder, or ok=false if s does not open with a
// hash tag of all-digit content at offset 1.
func decodeHashTag(s string) (digits, rest string, ok bool) {
	if len(s) == 0 || s[0] != '{' {
		return "", "", false
	}
	end := strings.IndexByte(s, '}')
	if end <= 1 {
		return "", "", false
	}
	tag := s[1:end]
	for i := 0; i < len(tag); i++ {
		if tag[i] < '0' || tag[i] > '9' {
			return "", "", false
		}
	}
	return tag, s[end+1:], true
}

// Decode parses either wire variant. A string opening with a
// "{digits…}" hash tag at offset 1 is parsed as 1.1 (db_num from the
// tag, name is the remainder); anything else is parsed as 1.0 (db_num
// 0, name is the whole string).
//
// Round-trip invariant: for any (db, name), Decode(Encode(db, name)) ==
// Name{DBNum: db, Index: name, Version: (10 if db==0 && untagged(name),
// else 11)}.
func Decode(s string) (Name, error) {
	if digits, rest, ok := decodeHashTag(s); ok {
		db, err := strconv.Atoi(digits)
		if err != nil {
			return Name{}, enginerr.Wrap(enginerr.InvalidArgument, "malformed objname: bad db number in hash tag", err)
		}
		return Name{DBNum: db, Index: rest, Version: Version11}, nil
	}
	return Name{DBNum: 0, Index: s, Version: Version10}, nil
}

// String renders n back to its own version's wire form, so a Name
// decoded from a 1.0 string re-encodes as 1.0 (preserving what was
// actually on the wire) unless the caller explicitly calls Encode for
// the upgraded form.
func (n Name) String() string {
	if n.Version == Version10 {
		return n.Index
	}
	return Encode(n.DBNum, n.Index)
}

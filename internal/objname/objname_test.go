package objname

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		index string
		db    int
	}{
		{"myidx", 0},
		{"with_underscore", 3},
		{"with:colon", 9},
		{"", 1},
	}
	for _, c := range cases {
		wire := Encode(c.db, c.index)
		got, err := Decode(wire)
		if err != nil {
			t.Fatalf("decode(%q): %v", wire, err)
		}
		if got.DBNum != c.db || got.Index != c.index {
			t.Fatalf("round trip mismatch: got %+v, want db=%d index=%q", got, c.db, c.index)
		}
	}
}

func TestEncodeDB0EmitsRawName(t *testing.T) {
	if got, want := Encode(0, "myidx"), "myidx"; got != want {
		t.Fatalf("Encode(0, %q) = %q, want %q", "myidx", got, want)
	}
}

func TestEncodeNonzeroDBEmitsHashTag(t *testing.T) {
	if got, want := Encode(3, "myidx"), "{3}myidx"; got != want {
		t.Fatalf("Encode(3, %q) = %q, want %q", "myidx", got, want)
	}
}

func TestEncodeDB0WithOwnHashTagStillTags(t *testing.T) {
	// A name that already carries its own hash tag can't be emitted raw at
	// db 0: Decode would otherwise mistake the name's own tag for db_num.
	name := "{shard}docs"
	got := Encode(0, name)
	if got == name {
		t.Fatalf("Encode(0, %q) = %q, must not equal the raw name (ambiguous hash tag)", name, got)
	}
	decoded, err := Decode(got)
	if err != nil {
		t.Fatalf("decode(%q): %v", got, err)
	}
	if decoded.DBNum != 0 || decoded.Index != name {
		t.Fatalf("got %+v, want db=0 index=%q", decoded, name)
	}
}

func TestDecodeLegacyV10(t *testing.T) {
	got, err := Decode("legacyidx")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DBNum != 0 || got.Index != "legacyidx" || got.Version != Version10 {
		t.Fatalf("got %+v", got)
	}
	if got.String() != "legacyidx" {
		t.Fatalf("String() = %q, want %q (legacy names re-encode as 1.0)", got.String(), "legacyidx")
	}
}

func TestDecodeNonDigitTagFallsBackToV10(t *testing.T) {
	// A "{...}" that isn't all digits isn't a valid hash tag under §4.4,
	// so the whole string decodes as the plain 1.0 form.
	for _, s := range []string{"{notanumber}name", "{1notalldigit}name", "{}name"} {
		got, err := Decode(s)
		if err != nil {
			t.Fatalf("decode(%q): %v", s, err)
		}
		if got.Version != Version10 || got.Index != s {
			t.Fatalf("decode(%q) = %+v, want a plain 1.0 decode of the whole string", s, got)
		}
	}
}

func TestDecodeOverflowingDBNumberErrors(t *testing.T) {
	if _, err := Decode("{99999999999999999999}name"); err == nil {
		t.Fatalf("expected error decoding an out-of-range db number")
	}
}

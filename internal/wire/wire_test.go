package wire

import "testing"

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := GlobalMetadata{
		Entries: []GlobalMetadataEntry{
			{Name: "{0}index", Payload: []byte("payload"), Version: 3, Fingerprint: 42},
		},
		Version:     3,
		Fingerprint: 42,
	}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out GlobalMetadata
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Version != in.Version || out.Fingerprint != in.Fingerprint {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if len(out.Entries) != 1 || out.Entries[0].Name != in.Entries[0].Name {
		t.Fatalf("got entries %+v, want %+v", out.Entries, in.Entries)
	}
}

func TestSelectTargetModeConstants(t *testing.T) {
	if TargetAll == TargetPrimary {
		t.Fatalf("TargetAll and TargetPrimary must be distinct values")
	}
}

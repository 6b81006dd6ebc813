package hostcap

import "testing"

func TestMemoryKeyReaderGetPutDelete(t *testing.T) {
	m := NewMemoryKeyReader(0)

	if _, err := m.Get("a"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	m.Put("a", []byte("1"))
	v, err := m.Get("a")
	if err != nil || string(v) != "1" {
		t.Fatalf("got %q, %v", v, err)
	}

	m.Delete("a")
	if _, err := m.Get("a"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemoryKeyReaderScanOrderedAndPaged(t *testing.T) {
	m := NewMemoryKeyReader(0)
	for _, k := range []string{"c", "a", "b", "d"} {
		m.Put(k, []byte(k))
	}

	keys, next, err := m.Scan("", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("got %v", keys)
	}
	if next != "c" {
		t.Fatalf("next cursor = %q, want c", next)
	}

	keys, next, err = m.Scan(next, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "c" || keys[1] != "d" {
		t.Fatalf("got %v", keys)
	}
	if next != "" {
		t.Fatalf("expected exhausted cursor, got %q", next)
	}
}

func TestMemoryKeyReaderSubscribeNotifiesOnMutation(t *testing.T) {
	m := NewMemoryKeyReader(1)
	var got []KeyEvent
	unsub := m.Subscribe(func(e KeyEvent) { got = append(got, e) })

	m.Put("k", []byte("v"))
	m.Delete("k")
	unsub()
	m.Put("k2", []byte("v2"))

	if len(got) != 2 {
		t.Fatalf("want 2 events before unsubscribe, got %d", len(got))
	}
	if got[0].Kind != KeyEventSet || got[1].Kind != KeyEventDel {
		t.Fatalf("unexpected event kinds: %+v", got)
	}
	if got[0].DB != 1 {
		t.Fatalf("expected db tag propagated, got %d", got[0].DB)
	}
}

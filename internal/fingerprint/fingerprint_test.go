package fingerprint

import "testing"

func TestOfIsDeterministic(t *testing.T) {
	a := Of([]byte("hello world"))
	b := Of([]byte("hello world"))
	if a != b {
		t.Fatalf("same input must produce the same fingerprint, got %x vs %x", a, b)
	}
}

func TestOfDistinguishesInputs(t *testing.T) {
	a := Of([]byte("hello"))
	b := Of([]byte("world"))
	if a == b {
		t.Fatalf("distinct inputs collided: %x", a)
	}
}

func TestOfFieldsOrderIndependent(t *testing.T) {
	f1 := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	f2 := [][]byte{[]byte("gamma"), []byte("alpha"), []byte("beta")}
	if OfFields(f1) != OfFields(f2) {
		t.Fatalf("fingerprint must not depend on field collection order")
	}
}

func TestCombineOrderIndependent(t *testing.T) {
	a, b, c := Of([]byte("a")), Of([]byte("b")), Of([]byte("c"))
	if Combine(a, b, c) != Combine(c, a, b) {
		t.Fatalf("Combine must be order independent")
	}
}

func TestCombineChangesWithInput(t *testing.T) {
	a, b, c := Of([]byte("a")), Of([]byte("b")), Of([]byte("c"))
	if Combine(a, b) == Combine(a, c) {
		t.Fatalf("differing child sets should not collide (in practice)")
	}
}

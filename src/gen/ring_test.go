package gen

import "testing"

func TestRingOrderAndCapacity(t *testing.T) {
	r := NewFixedRing[int](4)
	if !r.Empty() || r.Cap() != 4 {
		t.Fatalf("fresh ring should be empty with cap 4")
	}
	for i := 0; i < 4; i++ {
		if !r.Push(i) {
			t.Fatalf("push %d should fit", i)
		}
	}
	if !r.Full() {
		t.Errorf("ring should be full")
	}
	if r.Push(99) {
		t.Errorf("push past capacity should fail")
	}
	for i := 0; i < 4; i++ {
		v, ok := r.Pop()
		if !ok || v != i {
			t.Errorf("pop %d got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := r.Pop(); ok {
		t.Errorf("pop from empty ring should fail")
	}
}

func TestRingIndexWrap(t *testing.T) {
	r := NewFixedRing[string](3)
	//churn enough that head wraps the backing slice repeatedly
	for i := 0; i < 10; i++ {
		if !r.Push("a") || !r.Push("b") {
			t.Fatalf("round %d pushes should fit", i)
		}
		if v, _ := r.Pop(); v != "a" {
			t.Fatalf("round %d first pop should be a, got %s", i, v)
		}
		if v, _ := r.Pop(); v != "b" {
			t.Fatalf("round %d second pop should be b, got %s", i, v)
		}
	}
	if r.Len() != 0 {
		t.Errorf("ring should drain to empty, has %d", r.Len())
	}
}

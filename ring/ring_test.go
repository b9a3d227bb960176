package ring

import (
	"errors"
	"math/rand"
	"testing"
)

func TestAllocateUntilFull(t *testing.T) {
	r := New(4, 8)
	for i := 0; i < 4; i++ {
		slot, err := r.Allocate()
		if err != nil {
			t.Fatal(err)
		}
		if slot != i {
			t.Fatalf("got slot %d, want %d", slot, i)
		}
	}
	if _, err := r.Allocate(); !errors.Is(err, ErrRingFull) {
		t.Fatalf("want ErrRingFull, got %v", err)
	}
	if r.Free()+r.Occupied() != r.Cap() {
		t.Fatal("free+occupied != cap")
	}
}

func TestReclaimInOrder(t *testing.T) {
	r := New(4, 8)
	for i := 0; i < 3; i++ {
		slot, _ := r.Allocate()
		if err := r.Submit(slot, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	// Out of order completion: slot 1 done before slot 0.
	r.Complete(1, Result{})
	if n := r.Reclaim(nil); n != 0 {
		t.Fatalf("reclaimed %d past a pending tail slot", n)
	}
	r.Complete(0, Result{})
	var order []int
	n := r.Reclaim(func(slot int, d *Descriptor) {
		order = append(order, slot)
		if d.Buf[0] != byte(slot) || d.Len != 1 {
			t.Errorf("slot %d payload mismatch", slot)
		}
	})
	if n != 2 || len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Fatalf("bad reclaim order %v", order)
	}
	if r.Tail() != 2 || r.Free() != 3 {
		t.Fatalf("tail=%d free=%d", r.Tail(), r.Free())
	}
}

func TestAllocateDetectsCorruption(t *testing.T) {
	r := New(2, 8)
	r.Slot(0).State = DevicePending // Firmware or host bug left head dirty.
	_, err := r.Allocate()
	if !errors.Is(err, ErrRingCorrupt) {
		t.Fatalf("want ErrRingCorrupt, got %v", err)
	}
	if r.Free() != 2 || r.Head() != 0 || r.CorruptCount() != 1 {
		t.Fatal("corrupt allocation must not change ring bookkeeping")
	}
}

func TestDiscardIsRecycled(t *testing.T) {
	r := New(2, 8)
	slot, _ := r.Allocate()
	if err := r.Discard(slot); err != nil {
		t.Fatal(err)
	}
	if n := r.Reclaim(nil); n != 1 || r.Free() != 2 {
		t.Fatalf("discarded slot not reclaimed: n=%d free=%d", n, r.Free())
	}
}

func TestSubmitWrongState(t *testing.T) {
	r := New(2, 4)
	if err := r.Submit(0, nil); err == nil {
		t.Error("submit of unallocated slot accepted")
	}
	slot, _ := r.Allocate()
	if err := r.Submit(slot, make([]byte, 5)); err == nil {
		t.Error("oversized payload accepted")
	}
	if err := r.Complete(slot, Result{}); err == nil {
		t.Error("complete of host-owned slot accepted")
	}
	if err := r.Submit(7, nil); err == nil {
		t.Error("out of range slot accepted")
	}
}

func TestRandomInterleavings(t *testing.T) {
	const capacity = 8
	rng := rand.New(rand.NewSource(1))
	r := New(capacity, 4)
	owned := map[int]State{}
	for step := 0; step < 20000; step++ {
		switch rng.Intn(4) {
		case 0:
			slot, err := r.Allocate()
			if err == nil {
				if _, dup := owned[slot]; dup {
					t.Fatalf("step %d: slot %d allocated twice", step, slot)
				}
				owned[slot] = HostFilling
			} else if !errors.Is(err, ErrRingFull) {
				t.Fatalf("step %d: %v", step, err)
			}
		case 1:
			for slot, st := range owned {
				if st == HostFilling {
					if err := r.Submit(slot, []byte{1}); err != nil {
						t.Fatal(err)
					}
					owned[slot] = DevicePending
					break
				}
			}
		case 2:
			// Device completes in arbitrary order.
			for slot, st := range owned {
				if st == DevicePending && rng.Intn(2) == 0 {
					r.Complete(slot, Result{})
					owned[slot] = DeviceDone
				}
			}
		case 3:
			r.Reclaim(func(slot int, d *Descriptor) {
				if owned[slot] != DeviceDone {
					t.Fatalf("reclaimed slot %d in state %s", slot, owned[slot])
				}
				delete(owned, slot)
			})
		}
		if r.Free()+r.Occupied() != capacity {
			t.Fatalf("step %d: free=%d occupied=%d", step, r.Free(), r.Occupied())
		}
		if r.Occupied() != len(owned) {
			t.Fatalf("step %d: occupied=%d tracked=%d", step, r.Occupied(), len(owned))
		}
	}
}

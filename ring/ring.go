// package ring implements the host bookkeeping of a TX or RX descriptor ring
// shared with device firmware through an ownership handoff.
//
// Slots move through
//
//	HostEmpty -> HostFilling -> DevicePending -> DeviceDone -> HostEmpty
//
// Allocation happens at head, reclamation at tail, both modulo the ring
// capacity. Ring is not safe for concurrent use; callers serialize access
// with the device lock.
package ring

import (
	"errors"
	"strconv"
)

var (
	ErrRingFull    = errors.New("ring full")
	ErrRingCorrupt = errors.New("ring corrupt: head slot not host-empty")
	errBadState    = errors.New("slot in wrong state")
	errSlotRange   = errors.New("slot out of range")
	errTooLarge    = errors.New("payload larger than slot buffer")
)

// State is the ownership state of a descriptor slot.
type State uint8

const (
	HostEmpty State = iota
	HostFilling
	DevicePending
	DeviceDone
)

func (s State) String() string {
	switch s {
	case HostEmpty:
		return "host-empty"
	case HostFilling:
		return "host-filling"
	case DevicePending:
		return "device-pending"
	case DeviceDone:
		return "device-done"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// OwnedByDevice reports whether the firmware owns a slot in state s.
func (s State) OwnedByDevice() bool { return s == DevicePending }

// Result is what the device reported for a completed slot.
type Result struct {
	Failed      bool
	Discarded   bool // Slot was abandoned by the host without being submitted.
	AckFailures uint8
	RateUsed    uint16
	Level       uint8
	SNR         uint8
	Len         int
}

// Descriptor is one slot of the ring.
type Descriptor struct {
	State  State
	Len    int // Valid payload bytes in Buf.
	Buf    []byte
	Result Result
	// Tag is opaque caller data carried from Submit to Reclaim.
	Tag any
}

// Ring is a fixed capacity circular buffer of descriptors.
type Ring struct {
	descs   []Descriptor
	head    int
	tail    int
	free    int
	corrupt int
}

// New returns a ring of n slots each with a bufsize byte buffer.
func New(n, bufsize int) *Ring {
	if n <= 0 || bufsize < 0 {
		panic("ring: invalid size")
	}
	r := &Ring{descs: make([]Descriptor, n), free: n}
	backing := make([]byte, n*bufsize)
	for i := range r.descs {
		r.descs[i].Buf = backing[i*bufsize : (i+1)*bufsize : (i+1)*bufsize]
	}
	return r
}

// Cap returns the number of slots.
func (r *Ring) Cap() int { return len(r.descs) }

// Free returns the number of slots available for allocation.
func (r *Ring) Free() int { return r.free }

// Occupied counts slots not in HostEmpty state.
func (r *Ring) Occupied() (n int) {
	for i := range r.descs {
		if r.descs[i].State != HostEmpty {
			n++
		}
	}
	return n
}

// Head returns the next allocation index.
func (r *Ring) Head() int { return r.head }

// Tail returns the next reclamation index.
func (r *Ring) Tail() int { return r.tail }

// CorruptCount returns the number of allocations refused due to a head slot
// in an unexpected state.
func (r *Ring) CorruptCount() int { return r.corrupt }

// Slot returns the descriptor at index i.
func (r *Ring) Slot(i int) *Descriptor { return &r.descs[i] }

// Allocate claims the head slot for filling. It fails with ErrRingFull if no
// slot is free and with ErrRingCorrupt if the head slot is not HostEmpty; in
// the latter case the ring is left untouched.
func (r *Ring) Allocate() (slot int, err error) {
	if r.free == 0 {
		return -1, ErrRingFull
	}
	slot = r.head
	d := &r.descs[slot]
	if d.State != HostEmpty {
		r.corrupt++
		return -1, ErrRingCorrupt
	}
	d.State = HostFilling
	d.Len = 0
	d.Result = Result{}
	d.Tag = nil
	r.head = r.next(r.head)
	r.free--
	return slot, nil
}

// Submit copies payload into an allocated slot and hands it to the device.
func (r *Ring) Submit(slot int, payload []byte) error {
	d, err := r.inState(slot, HostFilling)
	if err != nil {
		return err
	}
	if len(payload) > len(d.Buf) {
		return errTooLarge
	}
	d.Len = copy(d.Buf, payload)
	d.State = DevicePending
	return nil
}

// SubmitFilled hands a slot whose buffer was written in place to the device.
func (r *Ring) SubmitFilled(slot, n int) error {
	d, err := r.inState(slot, HostFilling)
	if err != nil {
		return err
	}
	if n > len(d.Buf) || n < 0 {
		return errTooLarge
	}
	d.Len = n
	d.State = DevicePending
	return nil
}

// Discard abandons an allocated slot. It is recycled in order by Reclaim.
func (r *Ring) Discard(slot int) error {
	d, err := r.inState(slot, HostFilling)
	if err != nil {
		return err
	}
	d.Len = 0
	d.Result = Result{Discarded: true}
	d.State = DeviceDone
	return nil
}

// Complete marks a device-owned slot as done with the device's result.
func (r *Ring) Complete(slot int, res Result) error {
	d, err := r.inState(slot, DevicePending)
	if err != nil {
		return err
	}
	d.Result = res
	d.State = DeviceDone
	return nil
}

// Pending calls fn for each consecutive slot from tail that is owned by the
// device or already done, in ring order, until fn returns false. It is used
// to poll device-written completion flags.
func (r *Ring) Pending(fn func(slot int, d *Descriptor) bool) {
	idx := r.tail
	for n := r.Cap() - r.free; n > 0; n-- {
		d := &r.descs[idx]
		if d.State == DevicePending && !fn(idx, d) {
			return
		}
		idx = r.next(idx)
	}
}

// Reclaim walks from tail returning consecutive DeviceDone slots to
// HostEmpty, calling fn (if not nil) on each before it is recycled. It stops
// at the first slot that is not done and returns the number reclaimed.
func (r *Ring) Reclaim(fn func(slot int, d *Descriptor)) (n int) {
	for r.free < r.Cap() {
		d := &r.descs[r.tail]
		if d.State != DeviceDone {
			break
		}
		if fn != nil {
			fn(r.tail, d)
		}
		d.State = HostEmpty
		d.Len = 0
		d.Tag = nil
		r.tail = r.next(r.tail)
		r.free++
		n++
	}
	return n
}

// Reset returns every slot to HostEmpty.
func (r *Ring) Reset() {
	for i := range r.descs {
		r.descs[i].State = HostEmpty
		r.descs[i].Len = 0
		r.descs[i].Tag = nil
		r.descs[i].Result = Result{}
	}
	r.head, r.tail, r.free = 0, 0, len(r.descs)
}

func (r *Ring) inState(slot int, want State) (*Descriptor, error) {
	if slot < 0 || slot >= len(r.descs) {
		return nil, errSlotRange
	}
	d := &r.descs[slot]
	if d.State != want {
		return nil, errBadState
	}
	return d, nil
}

func (r *Ring) next(i int) int {
	i++
	if i == len(r.descs) {
		return 0
	}
	return i
}

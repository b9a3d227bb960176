// package peertab implements a bounded table of 802.11 peer stations. Slots
// live in a fixed arena and are chained into hash buckets by index. When the
// table is full the least recently seen peer is evicted, so admission never
// fails.
package peertab

import (
	"net"
	"time"

	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/ratectl"
)

// ClientState tracks a peer's progress through authentication and association.
type ClientState uint8

const (
	StateExist ClientState = iota + 1
	StateAuthenticated
	StateAssociated
)

func (s ClientState) String() string {
	switch s {
	case StateExist:
		return "exist"
	case StateAuthenticated:
		return "authenticated"
	case StateAssociated:
		return "associated"
	}
	return "unused"
}

// ChallengeLen is the length of the shared-key challenge text.
const ChallengeLen = 128

// Peer is a station or access point seen on air.
type Peer struct {
	Addr    [6]byte
	BSSID   [6]byte
	ESSID   string
	Channel uint8
	CapInfo uint16
	// RateBasic is the peer's basic rate set and RateCap its operational set.
	RateBasic acxfw.Rate
	RateCap   acxfw.Rate
	// Rate holds the rate controller state, Rate.Cfg being the negotiated set.
	Rate     ratectl.State
	State    ClientState
	AuthAlg  uint16
	AuthStep uint8
	AID      uint16
	LastSeen time.Time
	// Challenge is the shared-key challenge sent to the peer, nil if none.
	Challenge []byte
	// SIR and SNR are signal and noise levels on a 0..100 scale.
	SIR uint8
	SNR uint8
}

// HardwareAddr returns a copy of the peer address.
func (p *Peer) HardwareAddr() net.HardwareAddr { return append(net.HardwareAddr(nil), p.Addr[:]...) }

const nilIdx = -1

// Table is a fixed capacity peer table. It is not safe for concurrent use.
type Table struct {
	slots   []Peer
	used    []bool
	next    []int
	buckets []int
	n       int
	now     func() time.Time
}

// Option configures a Table.
type Option func(*Table)

// WithClock sets the time source used to stamp LastSeen.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// New returns a table with capacity slots chained into nbuckets buckets.
func New(capacity, nbuckets int, opts ...Option) *Table {
	if capacity <= 0 || nbuckets <= 0 {
		panic("peertab: invalid size")
	}
	t := &Table{
		slots:   make([]Peer, capacity),
		used:    make([]bool, capacity),
		next:    make([]int, capacity),
		buckets: make([]int, nbuckets),
		now:     time.Now,
	}
	for i := range t.buckets {
		t.buckets[i] = nilIdx
	}
	for i := range t.next {
		t.next[i] = nilIdx
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cap returns the slot capacity.
func (t *Table) Cap() int { return len(t.slots) }

// Len returns the number of occupied slots.
func (t *Table) Len() int { return t.n }

func (t *Table) bucket(mac [6]byte) int { return int(mac[5]) % len(t.buckets) }

func (t *Table) find(mac [6]byte) int {
	for i := t.buckets[t.bucket(mac)]; i != nilIdx; i = t.next[i] {
		if t.slots[i].Addr == mac {
			return i
		}
	}
	return nilIdx
}

// Lookup returns the peer with address mac and refreshes its LastSeen, or
// nil if it is not in the table.
func (t *Table) Lookup(mac [6]byte) *Peer {
	i := t.find(mac)
	if i == nilIdx {
		return nil
	}
	t.slots[i].LastSeen = t.now()
	return &t.slots[i]
}

// Get returns the peer with address mac without refreshing it.
func (t *Table) Get(mac [6]byte) *Peer {
	i := t.find(mac)
	if i == nilIdx {
		return nil
	}
	return &t.slots[i]
}

// AddOrEvict returns the peer for mac, creating it if needed. A new peer
// takes the first unused slot or, when the table is full, the slot of the
// least recently seen peer. created reports whether the entry is new; new
// entries are zeroed except for Addr, State and LastSeen.
func (t *Table) AddOrEvict(mac [6]byte) (p *Peer, created bool) {
	if p = t.Lookup(mac); p != nil {
		return p, false
	}
	now := t.now()
	idx := t.freeSlot()
	if idx == nilIdx {
		idx = t.oldest(now)
		t.unlink(idx)
	}
	t.slots[idx] = Peer{Addr: mac, State: StateExist, LastSeen: now}
	t.used[idx] = true
	t.n++
	b := t.bucket(mac)
	t.next[idx] = t.buckets[b]
	t.buckets[b] = idx
	return &t.slots[idx], true
}

// Remove unlinks p from the table and zeroes it. p must have been returned
// by this table.
func (t *Table) Remove(p *Peer) bool {
	if p == nil {
		return false
	}
	for i := t.buckets[t.bucket(p.Addr)]; i != nilIdx; i = t.next[i] {
		if &t.slots[i] == p {
			t.unlink(i)
			return true
		}
	}
	return false
}

// Range calls fn for every occupied slot in slot order until fn returns false.
func (t *Table) Range(fn func(p *Peer) bool) {
	for i := range t.slots {
		if t.used[i] && !fn(&t.slots[i]) {
			return
		}
	}
}

// Clear empties the table.
func (t *Table) Clear() {
	for i := range t.slots {
		t.slots[i] = Peer{}
		t.used[i] = false
		t.next[i] = nilIdx
	}
	for i := range t.buckets {
		t.buckets[i] = nilIdx
	}
	t.n = 0
}

// ChainLen returns the length of the bucket chain mac hashes to.
func (t *Table) ChainLen(mac [6]byte) (n int) {
	for i := t.buckets[t.bucket(mac)]; i != nilIdx; i = t.next[i] {
		n++
	}
	return n
}

func (t *Table) freeSlot() int {
	for i, u := range t.used {
		if !u {
			return i
		}
	}
	return nilIdx
}

func (t *Table) oldest(now time.Time) int {
	idx := nilIdx
	var maxAge time.Duration
	for i := range t.slots {
		if !t.used[i] {
			continue
		}
		age := now.Sub(t.slots[i].LastSeen)
		if idx == nilIdx || age > maxAge {
			idx, maxAge = i, age
		}
	}
	return idx
}

// unlink splices slot idx out of its chain and zeroes it.
func (t *Table) unlink(idx int) {
	b := t.bucket(t.slots[idx].Addr)
	if t.buckets[b] == idx {
		t.buckets[b] = t.next[idx]
	} else {
		for i := t.buckets[b]; i != nilIdx; i = t.next[i] {
			if t.next[i] == idx {
				t.next[i] = t.next[idx]
				break
			}
		}
	}
	t.slots[idx] = Peer{}
	t.used[idx] = false
	t.next[idx] = nilIdx
	t.n--
}

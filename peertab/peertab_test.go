package peertab

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func mac(last byte) [6]byte { return [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, last} }

func TestLRUEvictionExample(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	tab := New(4, 2, WithClock(clk.now))
	names := []byte{'A', 'B', 'C', 'D'}
	for _, n := range names {
		_, created := tab.AddOrEvict(mac(n))
		require.True(t, created)
		clk.advance(time.Second)
	}
	require.Equal(t, 4, tab.Len())
	_, created := tab.AddOrEvict(mac('E'))
	require.True(t, created)
	assert.Equal(t, 4, tab.Len())
	assert.Nil(t, tab.Get(mac('A')), "A is least recently seen and must be evicted")
	for _, n := range []byte{'B', 'C', 'D', 'E'} {
		assert.NotNil(t, tab.Get(mac(n)), "peer %c missing", n)
	}
}

func TestLookupRefreshesLastSeen(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	tab := New(2, 1, WithClock(clk.now))
	tab.AddOrEvict(mac(1))
	clk.advance(time.Second)
	tab.AddOrEvict(mac(2))
	clk.advance(time.Second)
	require.NotNil(t, tab.Lookup(mac(1))) // 1 is now most recent.
	clk.advance(time.Second)
	tab.AddOrEvict(mac(3))
	assert.NotNil(t, tab.Get(mac(1)))
	assert.Nil(t, tab.Get(mac(2)))
}

func TestAddExistingReturnsSameEntry(t *testing.T) {
	tab := New(4, 4)
	p1, created := tab.AddOrEvict(mac(9))
	require.True(t, created)
	p1.ESSID = "kept"
	p2, created := tab.AddOrEvict(mac(9))
	assert.False(t, created)
	assert.Same(t, p1, p2)
	assert.Equal(t, "kept", p2.ESSID)
	assert.Equal(t, StateExist, p2.State)
}

func TestRemoveSplicesChain(t *testing.T) {
	tab := New(8, 1) // Single bucket: every entry on one chain.
	var peers []*Peer
	for i := byte(0); i < 5; i++ {
		p, _ := tab.AddOrEvict(mac(i))
		peers = append(peers, p)
	}
	require.Equal(t, 5, tab.ChainLen(mac(0)))
	require.True(t, tab.Remove(peers[2]))
	assert.Equal(t, 4, tab.ChainLen(mac(0)))
	assert.Nil(t, tab.Get(mac(2)))
	assert.Equal(t, [6]byte{}, peers[2].Addr, "removed slot must be zeroed")
	for _, i := range []byte{0, 1, 3, 4} {
		assert.NotNil(t, tab.Get(mac(i)))
	}
	assert.False(t, tab.Remove(peers[2]))
	// Removing chain head.
	require.True(t, tab.Remove(tab.Get(mac(4))))
	assert.Equal(t, 3, tab.Len())
}

func TestEvictedEntryIsZeroed(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	tab := New(1, 1, WithClock(clk.now))
	p, _ := tab.AddOrEvict(mac(1))
	p.AID = 7
	p.Challenge = make([]byte, ChallengeLen)
	clk.advance(time.Second)
	p2, created := tab.AddOrEvict(mac(2))
	require.True(t, created)
	assert.Zero(t, p2.AID)
	assert.Nil(t, p2.Challenge)
	assert.Equal(t, mac(2), p2.Addr)
}

// Under sustained pressure from more than capacity distinct peers the table
// holds exactly the capacity most recently seen.
func TestHoldsMostRecentlySeen(t *testing.T) {
	const capacity = 16
	for _, nbuckets := range []int{1, 3, 16, 64} {
		t.Run(fmt.Sprintf("buckets=%d", nbuckets), func(t *testing.T) {
			clk := &fakeClock{t: time.Unix(1000, 0)}
			tab := New(capacity, nbuckets, WithClock(clk.now))
			rng := rand.New(rand.NewSource(int64(nbuckets)))
			var history [][6]byte
			for n := 0; n < 500; n++ {
				m := [6]byte{2, 0, 0, byte(rng.Intn(4)), byte(rng.Intn(256)), byte(rng.Intn(256))}
				tab.AddOrEvict(m)
				history = append(history, m)
				clk.advance(time.Millisecond)

				recent := map[[6]byte]bool{}
				for i := len(history) - 1; i >= 0 && len(recent) < capacity; i-- {
					recent[history[i]] = true
				}
				require.Equal(t, len(recent), tab.Len())
				for m := range recent {
					require.NotNil(t, tab.Get(m), "step %d", n)
				}
				chained := 0
				seen := map[[6]byte]bool{}
				tab.Range(func(p *Peer) bool {
					if !seen[p.Addr] {
						chained++
						seen[p.Addr] = true
					}
					return true
				})
				require.Equal(t, tab.Len(), chained)
			}
		})
	}
}

package acx

import (
	"time"

	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/peertab"
)

// Stats is a snapshot of device counters.
type Stats struct {
	Commands        uint64
	CommandErrors   uint64
	CommandTimeouts uint64
	TxPackets       uint64
	TxBytes         uint64
	TxErrors        uint64
	RxPackets       uint64
	RxBytes         uint64
	RxDropped       uint64
	RxDuplicates    uint64
	AuthMismatches  uint64
	RateFallbacks   uint64
	RateStepups     uint64
}

// RingStats describes the occupancy of both descriptor rings.
type RingStats struct {
	TxCap, TxFree, TxHead, TxTail, TxCorrupt int
	RxCap, RxFree, RxHead, RxTail, RxCorrupt int
}

// LinkInfo describes the BSS the device is part of.
type LinkInfo struct {
	Status  Status
	Mode    Mode
	BSSID   [6]byte
	ESSID   string
	Channel uint8
	AID     uint16
	Rates   acxfw.Rate
}

// PeerInfo is a copy of a peer table entry.
type PeerInfo struct {
	Addr     [6]byte
	BSSID    [6]byte
	ESSID    string
	Channel  uint8
	CapInfo  uint16
	State    peertab.ClientState
	AID      uint16
	Rates    acxfw.Rate // Negotiated rate set.
	TxRate   acxfw.Rate // Rate currently tried.
	SIR      uint8
	SNR      uint8
	LastSeen time.Time
}

// Status returns the association state.
func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Link returns the current BSS parameters.
func (d *Device) Link() LinkInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return LinkInfo{
		Status:  d.status,
		Mode:    d.cfg.Mode,
		BSSID:   d.bssid,
		ESSID:   d.essid,
		Channel: d.channel,
		AID:     d.aid,
		Rates:   d.rateOper,
	}
}

// AssocError returns the last refusal received from an access point while
// authenticating or associating, or nil.
func (d *Device) AssocError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assocErr
}

// Peers returns a copy of the peer table.
func (d *Device) Peers() []PeerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.peers == nil {
		return nil
	}
	infos := make([]PeerInfo, 0, d.peers.Len())
	d.peers.Range(func(p *peertab.Peer) bool {
		infos = append(infos, PeerInfo{
			Addr:     p.Addr,
			BSSID:    p.BSSID,
			ESSID:    p.ESSID,
			Channel:  p.Channel,
			CapInfo:  p.CapInfo,
			State:    p.State,
			AID:      p.AID,
			Rates:    p.Rate.Cfg,
			TxRate:   p.Rate.Cur.Highest(),
			SIR:      p.SIR,
			SNR:      p.SNR,
			LastSeen: p.LastSeen,
		})
		return true
	})
	return infos
}

// RingStats returns the occupancy of the TX and RX rings.
func (d *Device) RingStats() (rs RingStats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return rs
	}
	rs.TxCap, rs.TxFree, rs.TxHead, rs.TxTail, rs.TxCorrupt = d.tx.Cap(), d.tx.Free(), d.tx.Head(), d.tx.Tail(), d.tx.CorruptCount()
	rs.RxCap, rs.RxFree, rs.RxHead, rs.RxTail, rs.RxCorrupt = d.rx.Cap(), d.rx.Free(), d.rx.Head(), d.rx.Tail(), d.rx.CorruptCount()
	return rs
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	s := &d.stats
	return Stats{
		Commands:        s.commands.Load(),
		CommandErrors:   s.cmdErrors.Load(),
		CommandTimeouts: s.cmdTimeouts.Load(),
		TxPackets:       s.txPackets.Load(),
		TxBytes:         s.txBytes.Load(),
		TxErrors:        s.txErrors.Load(),
		RxPackets:       s.rxPackets.Load(),
		RxBytes:         s.rxBytes.Load(),
		RxDropped:       s.rxDropped.Load(),
		RxDuplicates:    s.rxDuplicates.Load(),
		AuthMismatches:  s.authMismatch.Load(),
		RateFallbacks:   s.rateFallbacks.Load(),
		RateStepups:     s.rateStepups.Load(),
	}
}

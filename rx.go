package acx

import (
	"log/slog"

	"github.com/google/gopacket/layers"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
	"github.com/soypat/acx/peertab"
	"github.com/soypat/acx/ring"
)

// postRx hands the next RX slot to the firmware. Must hold d.mu.
func (d *Device) postRx() error {
	slot, err := d.rx.Allocate()
	if err != nil {
		return err
	}
	d.rx.SubmitFilled(slot, 0)
	rd := acxfw.RxDesc{}
	rd.Put(d.descbuf[:])
	return d.bus.WriteMem(d.rxDescAddr(slot), d.descbuf[:])
}

// rxComplete copies frames the firmware wrote into RX slots, dispatches
// them and gives the slots back. Must hold d.mu.
func (d *Device) rxComplete() {
	d.rx.Pending(func(slot int, desc *ring.Descriptor) bool {
		err := d.bus.ReadMem(d.rxDescAddr(slot), d.descbuf[:])
		if err != nil {
			return false
		}
		rd := acxfw.DecodeRxDesc(d.descbuf[:])
		if !rd.Filled() {
			return false
		}
		n := min(int(rd.Len), len(desc.Buf))
		err = d.bus.ReadMem(d.rxBufAddr(slot), desc.Buf[:n])
		d.rx.Complete(slot, ring.Result{
			Failed: err != nil,
			Len:    n,
			Level:  rd.PhyLevel,
			SNR:    rd.PhySNR,
		})
		return true
	})
	n := d.rx.Reclaim(func(slot int, desc *ring.Descriptor) {
		res := desc.Result
		if res.Failed || res.Len == 0 {
			d.stats.rxDropped.Add(1)
			return
		}
		d.rxFrame(desc.Buf[:res.Len], res)
	})
	for i := 0; i < n; i++ {
		err := d.postRx()
		if err != nil {
			d.logerr("rxComplete:repost", slog.String("err", err.Error()))
			break
		}
	}
	if n > 0 {
		d.write16(acxfw.RegIntTrig, acxfw.IntTrigRxPRC)
	}
}

// rxFrame decodes one received frame and dispatches it. Must hold d.mu.
func (d *Device) rxFrame(b []byte, res ring.Result) {
	f := &d.rxf
	err := f.DecodeFromBytes(b)
	if err != nil {
		d.stats.rxDropped.Add(1)
		d.debug("rxFrame:decode", slog.Int("len", len(b)), slog.String("err", err.Error()))
		return
	}
	d.stats.rxPackets.Add(1)
	d.stats.rxBytes.Add(uint64(len(b)))
	if d.isTraceEnabled() {
		d.trace("rxFrame", slog.String("type", f.Type.String()), macAttr("sa", f.SA()), slog.Int("len", len(b)))
	}
	if f.IsData() {
		d.rxData(f)
		return
	} else if !f.IsMgmt() {
		return
	}
	if da := f.DA(); da != d.mac && !isGroupAddr(da) {
		return
	}
	switch f.Type {
	case layers.Dot11TypeMgmtBeacon, layers.Dot11TypeMgmtProbeResp:
		d.rxBeacon(f, res)
	case layers.Dot11TypeMgmtAuthentication:
		d.rxAuth(f)
	case layers.Dot11TypeMgmtAssociationReq, layers.Dot11TypeMgmtReassociationReq:
		if d.cfg.Mode == ModeAP {
			d.rxAssocReqAP(f)
		}
	case layers.Dot11TypeMgmtAssociationResp, layers.Dot11TypeMgmtReassociationResp:
		d.rxAssocResp(f)
	case layers.Dot11TypeMgmtDeauthentication:
		d.rxDeauth(f)
	case layers.Dot11TypeMgmtDisassociation:
		d.rxDisassoc(f)
	}
	// Probe requests are answered by the firmware from its template.
}

// rxData queues the Ethernet form of a data frame for delivery once d.mu
// is released. Must hold d.mu.
func (d *Device) rxData(f *dot11.Frame) {
	if d.rxDup(f) {
		return
	}
	if d.status != StatusAssociated {
		d.stats.rxDropped.Add(1)
		return
	}
	switch d.cfg.Mode {
	case ModeAP:
		p := d.peers.Lookup(f.SA())
		if p == nil || p.State != peertab.StateAssociated {
			d.stats.rxDropped.Add(1)
			d.sendDeauth(f.SA(), dot11.ReasonClass3NonAssoc)
			return
		}
	default:
		if f.BSSID() != d.bssid {
			d.stats.rxDropped.Add(1)
			return
		}
	}
	if da := f.DA(); da != d.mac && !isGroupAddr(da) {
		return
	}
	if d.rcvEth == nil {
		return
	}
	err := dot11.DecapEthernet(d.rxbuf, f)
	if err != nil {
		d.stats.rxDropped.Add(1)
		d.debug("rxData:decap", slog.String("err", err.Error()))
		return
	}
	d.ethq = append(d.ethq, append([]byte(nil), d.rxbuf.Bytes()...))
}

// rxDup reports whether data frame f repeats the sequence control of the
// previous data frame. That happens when our ACK was lost and the sender
// retransmitted. Must hold d.mu.
func (d *Device) rxDup(f *dot11.Frame) bool {
	sc := int32(f.SeqCtl())
	if sc != d.lastSeqCtl {
		d.lastSeqCtl = sc
		return false
	}
	d.stats.rxDropped.Add(1)
	if d.stats.rxDuplicates.Add(1) == 1 || d.isTraceEnabled() {
		d.debug("rxData:dup", macAttr("sa", f.SA()), slog.Int("seq", int(f.Seq)))
	}
	return true
}

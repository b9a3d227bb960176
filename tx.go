package acx

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
	"github.com/soypat/acx/ratectl"
	"github.com/soypat/acx/ring"
)

// txTag travels with a TX slot from submission to reclaim.
type txTag struct {
	dst [6]byte
	// ratectl is set when the completion report feeds dst's rate controller.
	ratectl bool
}

// txMgmt encodes f and transmits it at the lowest basic rate. Must hold d.mu.
func (d *Device) txMgmt(f *dot11.Frame) error {
	f.Seq = d.nextSeq()
	err := f.SerializeTo(d.txbuf)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", f.Type)
	}
	rate := d.rateBasic.Lowest()
	if rate == 0 {
		rate = d.cfg.BasicRates.Lowest()
	}
	return d.txEncoded(d.txbuf.Bytes(), rate, txTag{dst: f.Addr1})
}

// txEncoded places an encoded frame in the next free TX slot and hands it
// to the firmware. Must hold d.mu.
func (d *Device) txEncoded(frame []byte, rate acxfw.Rate, tag txTag) error {
	if !d.up.IsSet() {
		return ErrDeviceNotReady
	}
	slot, err := d.tx.Allocate()
	if err != nil {
		if errors.Is(err, ring.ErrRingCorrupt) {
			d.stats.txErrors.Add(1)
			d.logerr("tx:ring-corrupt", slog.Int("head", d.tx.Head()), slog.Int("tail", d.tx.Tail()))
		}
		return err
	}
	err = d.tx.Submit(slot, frame)
	if err != nil {
		d.tx.Discard(slot)
		return err
	}
	d.tx.Slot(slot).Tag = tag
	err = d.bus.WriteMem(d.txBufAddr(slot), frame)
	if err == nil {
		td := acxfw.TxDesc{Len: uint16(len(frame)), Rate: rate}
		if d.cfg.ShortPreamble && rate > acxfw.Rate1 {
			td.Ctl |= acxfw.DescCtlShortPreamble
		}
		td.Put(d.descbuf[:])
		err = d.bus.WriteMem(d.txDescAddr(slot), d.descbuf[:])
	}
	if err != nil {
		// The firmware never saw the slot; report it failed so it is reclaimed.
		d.tx.Complete(slot, ring.Result{Failed: true})
		return errors.Wrap(err, "writing tx slot")
	}
	if d.isTraceEnabled() {
		d.trace("tx", slog.Int("slot", slot), slog.Int("len", len(frame)), slog.String("rate", rate.String()))
	}
	d.write16(acxfw.RegIntTrig, acxfw.IntTrigTxPRC)
	return nil
}

// txComplete collects finished TX slots from the firmware, feeds the rate
// controller and returns the slots to the free pool. Must hold d.mu.
func (d *Device) txComplete() {
	d.tx.Pending(func(slot int, desc *ring.Descriptor) bool {
		err := d.bus.ReadMem(d.txDescAddr(slot), d.descbuf[:])
		if err != nil {
			return false
		}
		td := acxfw.DecodeTxDesc(d.descbuf[:])
		if !td.Done() {
			return false
		}
		d.tx.Complete(slot, ring.Result{
			Failed:      td.Error != 0,
			AckFailures: td.AckFailures,
			RateUsed:    uint16(td.RateUsed),
			Len:         desc.Len,
		})
		return true
	})
	d.tx.Reclaim(func(slot int, desc *ring.Descriptor) {
		res := desc.Result
		if res.Discarded {
			return
		}
		if res.Failed {
			d.stats.txErrors.Add(1)
		} else {
			d.stats.txPackets.Add(1)
			d.stats.txBytes.Add(uint64(res.Len))
		}
		tag, _ := desc.Tag.(txTag)
		if !tag.ratectl {
			return
		}
		p := d.peers.Get(tag.dst)
		if p == nil {
			return
		}
		switch d.rc.Update(&p.Rate, acxfw.Rate(res.RateUsed), res.Failed) {
		case ratectl.Fallback:
			d.stats.rateFallbacks.Add(1)
			d.debug("txComplete:fallback", macAttr("peer", p.Addr), slog.String("rate", p.Rate.Cur.Highest().String()))
		case ratectl.Stepup:
			d.stats.rateStepups.Add(1)
			d.debug("txComplete:stepup", macAttr("peer", p.Addr), slog.String("rate", p.Rate.Cur.Highest().String()))
		}
	})
}

package acx

import (
	"errors"
	"log/slog"

	"github.com/soypat/acx/acxfw"
)

var errDeviceGone = errors.New("acx: interrupt status reads all ones, device gone")

// HandleIRQ services pending device interrupts: it acknowledges them,
// reclaims transmitted slots, processes received frames and schedules
// deferred work. Received Ethernet frames are passed to the RecvEthHandle
// callback after the device lock is released.
func (d *Device) HandleIRQ() error {
	_, err := d.handleIRQ()
	return err
}

// handleIRQ returns the number of Ethernet frames delivered.
func (d *Device) handleIRQ() (int, error) {
	d.mu.Lock()
	if d.tx == nil {
		d.mu.Unlock()
		return 0, ErrDeviceNotReady
	}
	irq := d.readIRQ()
	if irq == 0 {
		d.mu.Unlock()
		return 0, nil
	} else if irq == acxfw.HostIntAll {
		d.mu.Unlock()
		return 0, errDeviceGone
	}
	d.ackIRQ(irq)
	if d.isTraceEnabled() {
		d.trace("HandleIRQ", slog.Uint64("irq", uint64(irq)))
	}
	if irq.IsSet(acxfw.HostIntCmdComplete) {
		d.cmdDone.Set()
	}
	if irq.IsSet(acxfw.HostIntTxComplete) {
		d.txComplete()
	}
	if irq.IsSet(acxfw.HostIntRxComplete | acxfw.HostIntRxData) {
		d.rxComplete()
	}
	if irq.IsSet(acxfw.HostIntScanComplete) {
		d.scanRunning = false
		if d.status == StatusScanning {
			d.schedule(jobCompleteScan)
		}
	}
	if irq.IsSet(acxfw.HostIntFCSThreshold) {
		d.schedule(jobRadioRecalib)
	}
	if irq.IsSet(acxfw.HostIntInfo) {
		d.debug("HandleIRQ:info")
	}
	if irq.IsSet(acxfw.HostIntOverflow | acxfw.HostIntProcessError) {
		d.warn("HandleIRQ:firmware-error", slog.Uint64("irq", uint64(irq)))
	}
	q := d.ethq
	d.ethq = nil
	handler := d.rcvEth
	d.mu.Unlock()

	var errs []error
	if handler != nil {
		for _, pkt := range q {
			err := handler(pkt)
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return len(q), errjoin(errs...)
}

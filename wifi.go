package acx

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
)

// setStatus moves the association state machine to s. Entering SCANNING,
// WAIT_AUTH or AUTHENTICATED resets the retry counter and arms the retry
// timer; every other state disarms it. Must hold d.mu.
func (d *Device) setStatus(s Status) {
	old := d.status
	d.status = s
	d.disarmTimer()
	switch s {
	case StatusScanning:
		d.scanRetries = 0
		d.armTimer(scanRetryPeriod)
	case StatusWaitAuth, StatusAuthenticated:
		d.authRetries = 0
		d.armTimer(authFirstPeriod)
	case StatusStopped:
		d.aid = 0
	}
	if old != s {
		d.info("status", slog.String("from", old.String()), slog.String("to", s.String()))
	}
}

// armTimer replaces any armed timer with one firing after d. Must hold d.mu.
func (d *Device) armTimer(after time.Duration) {
	d.disarmTimer()
	gen := d.timerGen
	d.timer = time.AfterFunc(after, func() { d.onTimer(gen) })
}

// disarmTimer stops the timer. A callback already running sees a stale
// generation and does nothing. Must hold d.mu.
func (d *Device) disarmTimer() {
	d.timerGen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Device) onTimer(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.timerGen {
		return
	}
	d.timer = nil
	switch d.status {
	case StatusScanning:
		d.scanRetries++
		if d.scanRetries < maxScanRetries {
			d.debug("onTimer:scan-wait", slog.Int("retry", d.scanRetries))
			d.armTimer(scanRetryPeriod)
			return
		}
		d.warn("onTimer:scan-giveup", slog.Int("retries", d.scanRetries))
		d.schedule(jobStopScan | jobCompleteScan)

	case StatusWaitAuth, StatusAuthenticated:
		d.authRetries++
		if d.authRetries >= maxAuthRetries {
			d.warn("onTimer:auth-giveup", slog.String("status", d.status.String()), macAttr("bssid", d.bssid))
			d.setStatus(StatusScanning)
			d.schedule(jobRestartScan)
			return
		}
		d.debug("onTimer:resend", slog.String("status", d.status.String()), slog.Int("retry", d.authRetries))
		var err error
		if d.status == StatusWaitAuth {
			err = d.sendAuth1()
		} else {
			err = d.sendAssocReq()
		}
		if err != nil {
			d.logerr("onTimer:resend", slog.String("err", err.Error()))
		}
		d.armTimer(authRetryPeriod)
	}
}

// join programs the firmware with the current BSS parameters.
func (d *Device) join() error {
	d.mu.Lock()
	j := acxfw.JoinBSS{
		BSSID:          d.bssid,
		BeaconInterval: d.cfg.BeaconInterval,
		DTIM:           d.cfg.DTIM,
		BasicRates:     d.rateBasic,
		OperRates:      d.rateOper,
		MACMode:        d.cfg.Mode.MACMode(),
		Channel:        d.channel,
		ESSID:          d.essid,
	}
	if d.cfg.Mode == ModeAdhoc {
		j.DTIM = 1
	}
	if d.cfg.ShortPreamble {
		j.GenFrameModPre = 1
	}
	d.mu.Unlock()
	txrate, err := acxfw.Rate100FromBit(j.BasicRates.Lowest().BitPos())
	if err != nil {
		return errors.Wrapf(err, "join: basic rates %s", j.BasicRates)
	}
	j.GenFrameTxRate = txrate
	var buf [acxfw.CmdParamSize]byte
	n := j.Put(d.v, buf[:])
	d.info("join", macAttr("bssid", j.BSSID), slog.String("essid", j.ESSID),
		slog.Int("channel", int(j.Channel)), slog.String("mode", j.MACMode.String()))
	return d.IssueCmd(acxfw.CmdJoin, buf[:n])
}

// associate finishes association once the access point accepted us.
func (d *Device) associate() error {
	d.mu.Lock()
	aid, st := d.aid, d.status
	d.mu.Unlock()
	if st != StatusAuthenticated {
		return nil
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], aid)
	err := d.Configure(acxfw.IEAssocID, b[:])
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.status == StatusAuthenticated {
		d.setStatus(StatusAssociated)
		d.info("associate", macAttr("bssid", d.bssid), slog.Int("aid", int(aid)))
	}
	d.mu.Unlock()
	return nil
}

// updateCardCfg applies settings changed while servicing interrupts.
func (d *Device) updateCardCfg() error {
	if d.rescan.SetToIf(true, false) {
		return d.restartScan()
	}
	return nil
}

// restartScan starts a scan even if one is believed to be running.
func (d *Device) restartScan() error {
	d.mu.Lock()
	skip := !d.up.IsSet() || d.cfg.Mode == ModeAP
	d.scanRunning = false
	d.mu.Unlock()
	if skip {
		return nil
	}
	return d.StartScan()
}

// radioRecalib recalibrates the ACX111 radio after the firmware reported
// too many FCS errors. The ACX100 has no calibration command.
func (d *Device) radioRecalib() error {
	if d.v != acxfw.VariantACX111 {
		return nil
	}
	var param [8]byte
	binary.LittleEndian.PutUint32(param[0:], 0x8000000f) // All methods.
	binary.LittleEndian.PutUint32(param[4:], 58594)      // Roughly one minute.
	return d.IssueCmdTimeout(acxfw.CmdRadioCalib, param[:], cmdMaxTimeout)
}

// startAP creates a BSS with our address as BSSID and hands the firmware
// the beacon and probe response templates it transmits on its own.
func (d *Device) startAP() error {
	d.mu.Lock()
	d.bssid = d.mac
	d.essid = d.cfg.ESSID
	d.channel = d.cfg.Channel
	d.rateBasic = d.cfg.BasicRates
	d.rateOper = d.cfg.Rates
	d.nextAID = 0
	d.peers.Clear()
	d.mu.Unlock()
	err := d.setAPTemplates()
	if err != nil {
		return err
	}
	err = d.join()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.setStatus(StatusAssociated)
	d.mu.Unlock()
	return nil
}

// capInfo returns the capability field we advertise. Must hold d.mu.
func (d *Device) capInfo() uint16 {
	var c uint16
	switch d.cfg.Mode {
	case ModeAdhoc:
		c = dot11.CapIBSS
	default:
		c = dot11.CapESS
	}
	if d.cfg.ShortPreamble {
		c |= dot11.CapShortPreamble
	}
	return c
}

func (d *Device) setAPTemplates() error {
	d.mu.Lock()
	f := dot11.Frame{
		Type:           layers.Dot11TypeMgmtBeacon,
		Addr1:          broadcast,
		Addr2:          d.mac,
		Addr3:          d.bssid,
		BeaconInterval: d.cfg.BeaconInterval,
		CapInfo:        d.capInfo(),
	}
	f.AddIE(dot11.IDSSID, []byte(d.essid))
	f.AddRates(d.rateBasic, d.rateOper)
	f.AddIE(dot11.IDDSSet, []byte{d.channel})
	d.mu.Unlock()
	err := d.setTemplate(acxfw.CmdConfigBeacon, &f)
	if err != nil {
		return err
	}
	f.Type = layers.Dot11TypeMgmtProbeResp
	return d.setTemplate(acxfw.CmdConfigProbeResponse, &f)
}

// setProbeRequestTemplate sets the frame the firmware sends while actively
// scanning.
func (d *Device) setProbeRequestTemplate() error {
	d.mu.Lock()
	f := dot11.Frame{
		Type:  layers.Dot11TypeMgmtProbeReq,
		Addr1: broadcast,
		Addr2: d.mac,
		Addr3: broadcast,
	}
	f.AddIE(dot11.IDSSID, []byte(d.cfg.ESSID))
	f.AddRates(d.cfg.BasicRates, d.cfg.Rates)
	d.mu.Unlock()
	return d.setTemplate(acxfw.CmdConfigProbeRequest, &f)
}

// setTemplate sends f as a frame template: a 16 bit length followed by the
// frame without FCS, which the firmware appends.
func (d *Device) setTemplate(op acxfw.Opcode, f *dot11.Frame) error {
	b, err := dot11.Encode(f)
	if err != nil {
		return errors.Wrapf(err, "%s template", op)
	}
	b = b[:len(b)-dot11.FCSLen]
	if 2+len(b) > acxfw.CmdParamSize {
		return errors.Wrapf(errCmdTooLarge, "%s template", op)
	}
	param := make([]byte, 2+len(b))
	binary.LittleEndian.PutUint16(param, uint16(len(b)))
	copy(param[2:], b)
	return d.IssueCmd(op, param)
}

var broadcast = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func isGroupAddr(mac [6]byte) bool { return mac[0]&1 != 0 }

package acx

import (
	"log/slog"
	"time"

	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
	"github.com/soypat/acx/peertab"
	"github.com/soypat/acx/ring"
)

// StartScan enters SCANNING and starts a firmware scan for networks. It
// does nothing while a scan started less than 10 seconds ago is running.
func (d *Device) StartScan() error {
	d.mu.Lock()
	if !d.up.IsSet() {
		d.mu.Unlock()
		return ErrDeviceNotReady
	}
	if d.scanRunning && time.Since(d.scanStart) < scanInProgressMax {
		d.mu.Unlock()
		d.debug("StartScan:in-progress")
		return nil
	}
	d.setStatus(StatusScanning)
	d.scanRunning = true
	d.scanStart = time.Now()
	active := d.cfg.ESSID != ""
	d.mu.Unlock()

	sp := acxfw.ScanParams{
		Count:         1,
		Rate:          acxfw.Rate100_1,
		Options:       acxfw.ScanOptPassive,
		ChanDuration:  100,
		MaxProbeDelay: 200,
	}
	if active {
		sp.Options = acxfw.ScanOptActive
	}
	var buf [acxfw.CmdParamSize]byte
	n := sp.Put(d.v, buf[:])
	d.debug("StartScan", slog.Bool("active", active))
	err := d.IssueCmd(acxfw.CmdScan, buf[:n])
	if err != nil {
		d.mu.Lock()
		d.scanRunning = false
		d.mu.Unlock()
	}
	return err
}

// rxBeacon records the sender of a beacon or probe response. Outside of
// scanning only frames from the current BSS are considered. Must hold d.mu.
func (d *Device) rxBeacon(f *dot11.Frame, res ring.Result) {
	if d.cfg.Mode == ModeAP {
		return
	}
	sa := f.SA()
	if sa == d.mac || (d.status != StatusScanning && f.BSSID() != d.bssid) {
		return
	}
	p, created := d.peers.AddOrEvict(sa)
	if created {
		d.peerDefaults(p)
	}
	p.BSSID = f.BSSID()
	if ssid, ok := f.SSID(); ok {
		if len(ssid) > acxfw.MaxESSIDLen {
			ssid = ssid[:acxfw.MaxESSIDLen]
		}
		p.ESSID = ssid
	}
	p.Channel = f.DSChannel()
	if p.Channel == 0 {
		p.Channel = d.channel
	}
	p.CapInfo = f.CapInfo
	basic, oper := f.Rates()
	// Basic rates are always operational.
	p.RateBasic, p.RateCap = basic, oper|basic
	if created {
		p.Rate.Reset(d.negotiated(p.RateCap), 0)
	}
	p.SIR = acxfw.SignalLevel(res.Level)
	p.SNR = acxfw.SignalLevel(res.SNR)
	if created && d.logenabled(slog.LevelDebug) {
		d.debug("rxBeacon:new", macAttr("bssid", p.BSSID), slog.String("essid", p.ESSID),
			slog.Int("channel", int(p.Channel)), slog.String("rates", p.RateCap.String()))
	}
}

// peerDefaults initializes a newly admitted peer. Must hold d.mu.
func (d *Device) peerDefaults(p *peertab.Peer) {
	p.AuthAlg = uint16(AuthSharedKey.dot11())
	p.AuthStep = 1
	p.RateCap = d.cfg.BasicRates
	p.RateBasic = d.cfg.BasicRates
	p.Rate.Reset(d.cfg.BasicRates, 0)
}

// negotiated returns the rates both we and a peer offering cap can use,
// falling back to our basic rates when there are none.
func (d *Device) negotiated(cap acxfw.Rate) acxfw.Rate {
	r := cap & d.cfg.Rates
	if r == 0 {
		r = d.cfg.BasicRates
	}
	return r
}

// completeScan picks a network among the peers seen while scanning and
// joins it. In ad-hoc mode a new IBSS is created when nothing matches; in
// managed mode the device keeps scanning.
func (d *Device) completeScan() error {
	d.mu.Lock()
	d.scanRunning = false
	if d.status != StatusScanning {
		d.mu.Unlock()
		return nil
	}
	mode := d.cfg.Mode
	cand := d.pickCandidate()
	switch {
	case cand != nil:
		d.bssid = cand.BSSID
		d.channel = cand.Channel
		d.essid = cand.ESSID
		if dot11.HiddenSSID(cand.ESSID) {
			d.essid = d.cfg.ESSID
		}
		d.rateBasic = cand.RateBasic
		d.rateOper = d.negotiated(cand.RateCap)
		cand.Rate.Reset(d.rateOper, 0)
		d.info("completeScan:match", macAttr("bssid", d.bssid), slog.String("essid", d.essid), slog.Int("channel", int(d.channel)))

	case mode == ModeAdhoc:
		d.bssid = d.mac
		d.bssid[0] |= 0x02 // Locally administered.
		d.bssid[0] &^= 0x01
		d.channel = d.cfg.Channel
		d.essid = d.cfg.ESSID
		d.rateBasic = d.cfg.BasicRates
		d.rateOper = d.cfg.Rates
		d.info("completeScan:create-ibss", macAttr("bssid", d.bssid), slog.String("essid", d.essid))

	default:
		d.mu.Unlock()
		d.info("completeScan:no-match")
		return d.restartScan()
	}
	d.mu.Unlock()

	err := d.join()
	if err != nil {
		// Scanning again rearms the scan timer so the device recovers.
		d.logerr("completeScan:join", slog.String("err", err.Error()))
		rerr := d.restartScan()
		if rerr != nil {
			d.logerr("completeScan:rescan", slog.String("err", rerr.Error()))
		}
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != StatusScanning {
		return nil
	}
	if mode == ModeAdhoc {
		d.setStatus(StatusAssociated)
		return nil
	}
	d.assocErr = nil
	d.setStatus(StatusWaitAuth)
	return d.sendAuth1()
}

// pickCandidate returns the best network seen for the configured mode or
// nil. A candidate must advertise the right BSS type, be on a channel the
// regulatory domain allows, have basic rates, match the configured BSSID if
// any and match the configured ESSID. Hidden networks only match when no
// network with an exact ESSID was seen. A match on the home channel wins
// outright. Must hold d.mu.
func (d *Device) pickCandidate() *peertab.Peer {
	want := dot11.CapESS
	if d.cfg.Mode == ModeAdhoc {
		want = dot11.CapIBSS
	}
	var exact, hidden, home *peertab.Peer
	d.peers.Range(func(p *peertab.Peer) bool {
		switch {
		case p.CapInfo&want == 0,
			p.RateBasic == 0,
			!d.cfg.RegDomain.Allows(p.Channel),
			d.cfg.bssid != [6]byte{} && p.BSSID != d.cfg.bssid:
			return true
		}
		isHidden := dot11.HiddenSSID(p.ESSID)
		if !isHidden && d.cfg.ESSID != "" && p.ESSID != d.cfg.ESSID {
			return true
		}
		if !isHidden && p.Channel == d.cfg.Channel {
			home = p
			return false
		}
		if isHidden && hidden == nil {
			hidden = p
		} else if !isHidden && exact == nil {
			exact = p
		}
		return true
	})
	switch {
	case home != nil:
		return home
	case exact != nil:
		return exact
	}
	return hidden
}

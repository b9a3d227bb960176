package acx

import (
	"crypto/rand"
	"crypto/subtle"
	"log/slog"

	"github.com/google/gopacket/layers"
	"github.com/soypat/acx/dot11"
	"github.com/soypat/acx/peertab"
)

// Authentication and association handshakes for both roles. Every function
// in this file must be called with d.mu held.

func (d *Device) mgmtFrame(t layers.Dot11Type, da [6]byte) dot11.Frame {
	return dot11.Frame{Type: t, Addr1: da, Addr2: d.mac, Addr3: d.bssid}
}

// sendAuth1 starts authenticating with the current BSSID.
func (d *Device) sendAuth1() error {
	p, created := d.peers.AddOrEvict(d.bssid)
	if created {
		d.peerDefaults(p)
	}
	alg := d.cfg.Auth.dot11()
	p.AuthAlg = uint16(alg)
	p.AuthStep = 1
	f := d.mgmtFrame(layers.Dot11TypeMgmtAuthentication, d.bssid)
	f.AuthAlg = alg
	f.AuthSeq = 1
	d.debug("sendAuth1", macAttr("bssid", d.bssid), slog.String("alg", d.cfg.Auth.String()))
	return d.txMgmt(&f)
}

func (d *Device) sendAuth(da [6]byte, alg layers.Dot11Algorithm, seq uint16, status layers.Dot11Status, challenge []byte) error {
	f := d.mgmtFrame(layers.Dot11TypeMgmtAuthentication, da)
	f.AuthAlg = alg
	f.AuthSeq = seq
	f.Status = status
	if challenge != nil {
		f.AddIE(dot11.IDChallenge, challenge)
	}
	if seq == 3 {
		// Third frame of shared key authentication goes out encrypted.
		f.Flags |= layers.Dot11FlagsWEP
	}
	return d.txMgmt(&f)
}

func (d *Device) sendDeauth(da [6]byte, reason uint16) error {
	f := d.mgmtFrame(layers.Dot11TypeMgmtDeauthentication, da)
	f.Reason = reason
	d.debug("sendDeauth", macAttr("da", da), slog.Int("reason", int(reason)))
	return d.txMgmt(&f)
}

func (d *Device) sendAssocReq() error {
	f := d.mgmtFrame(layers.Dot11TypeMgmtAssociationReq, d.bssid)
	f.CapInfo = d.capInfo()
	f.ListenInterval = d.cfg.ListenInterval
	f.AddIE(dot11.IDSSID, []byte(d.essid))
	f.AddRates(d.rateBasic, d.rateOper|d.rateBasic)
	d.debug("sendAssocReq", macAttr("bssid", d.bssid), slog.String("essid", d.essid))
	return d.txMgmt(&f)
}

func (d *Device) rxAuth(f *dot11.Frame) {
	if d.cfg.Mode == ModeAP {
		d.rxAuthAP(f)
		return
	}
	sa := f.SA()
	if d.cfg.Mode != ModeManaged || d.status != StatusWaitAuth || sa != d.bssid {
		d.debug("rxAuth:ignore", macAttr("sa", sa), slog.String("status", d.status.String()))
		return
	}
	p := d.peers.Lookup(sa)
	if p == nil {
		return
	}
	alg := d.cfg.Auth.dot11()
	if f.AuthAlg != alg {
		d.debug("rxAuth:alg-mismatch", slog.Int("got", int(f.AuthAlg)))
		return
	}
	if f.Status != layers.Dot11StatusSuccess {
		err := newAssociationError(f.Status)
		d.assocErr = err
		d.warn("rxAuth:refused", macAttr("bssid", sa), slog.Int("seq", int(f.AuthSeq)), slog.String("err", err.Error()))
		return
	}
	switch {
	case f.AuthSeq == 2 && p.AuthStep == 1 && alg == layers.Dot11AlgorithmOpen:
		d.authenticated(p)

	case f.AuthSeq == 2 && p.AuthStep == 1:
		ch := f.Challenge()
		if len(ch) == 0 {
			d.debug("rxAuth:no-challenge")
			return
		}
		p.AuthStep = 3
		err := d.sendAuth(sa, alg, 3, layers.Dot11StatusSuccess, ch)
		if err != nil {
			d.logerr("rxAuth:send", slog.String("err", err.Error()))
		}

	case f.AuthSeq == 4 && p.AuthStep == 3:
		d.authenticated(p)

	default:
		d.debug("rxAuth:unexpected-seq", slog.Int("seq", int(f.AuthSeq)), slog.Int("step", int(p.AuthStep)))
	}
}

// authenticated moves a station to AUTHENTICATED and requests association.
func (d *Device) authenticated(ap *peertab.Peer) {
	ap.State = peertab.StateAuthenticated
	ap.AuthStep = 0
	d.setStatus(StatusAuthenticated)
	err := d.sendAssocReq()
	if err != nil {
		d.logerr("authenticated:assoc", slog.String("err", err.Error()))
	}
}

// rxAuthAP runs the responder side of authentication.
func (d *Device) rxAuthAP(f *dot11.Frame) {
	if f.BSSID() != d.bssid {
		return
	}
	sa := f.SA()
	alg := d.cfg.Auth.dot11()
	var err error
	switch f.AuthSeq {
	case 1:
		p, created := d.peers.AddOrEvict(sa)
		if created {
			d.peerDefaults(p)
		}
		if f.AuthAlg != alg {
			d.debug("rxAuthAP:alg-unsupported", macAttr("sa", sa), slog.Int("alg", int(f.AuthAlg)))
			err = d.sendAuth(sa, f.AuthAlg, 2, layers.Dot11StatusAlgorithmUnsupported, nil)
			break
		}
		p.AuthAlg = uint16(alg)
		if alg == layers.Dot11AlgorithmOpen {
			p.State = peertab.StateAuthenticated
			p.AuthStep = 2
			d.info("rxAuthAP:authenticated", macAttr("sta", sa))
			err = d.sendAuth(sa, alg, 2, layers.Dot11StatusSuccess, nil)
			break
		}
		ch := make([]byte, peertab.ChallengeLen)
		_, err = rand.Read(ch)
		if err != nil {
			break
		}
		p.Challenge = ch
		p.AuthStep = 2
		err = d.sendAuth(sa, alg, 2, layers.Dot11StatusSuccess, ch)

	case 3:
		p := d.peers.Lookup(sa)
		if p == nil || alg != layers.Dot11AlgorithmSharedKey || f.AuthAlg != alg || p.AuthStep != 2 || p.Challenge == nil {
			d.debug("rxAuthAP:unexpected-seq3", macAttr("sa", sa))
			return
		}
		if subtle.ConstantTimeCompare(f.Challenge(), p.Challenge) != 1 {
			d.stats.authMismatch.Add(1)
			d.debug("rxAuthAP:challenge-mismatch", macAttr("sa", sa))
			return
		}
		p.Challenge = nil
		p.AuthStep = 4
		p.State = peertab.StateAuthenticated
		d.info("rxAuthAP:authenticated", macAttr("sta", sa))
		err = d.sendAuth(sa, alg, 4, layers.Dot11StatusSuccess, nil)

	default:
		d.debug("rxAuthAP:unexpected-seq", slog.Int("seq", int(f.AuthSeq)))
	}
	if err != nil {
		d.logerr("rxAuthAP:send", slog.String("err", err.Error()))
	}
}

func (d *Device) rxAssocResp(f *dot11.Frame) {
	if d.cfg.Mode != ModeManaged || d.status != StatusAuthenticated || f.SA() != d.bssid {
		return
	}
	if f.Status != layers.Dot11StatusSuccess {
		err := newAssociationError(f.Status)
		d.assocErr = err
		d.warn("rxAssocResp:refused", macAttr("bssid", d.bssid), slog.String("err", err.Error()))
		return
	}
	d.aid = f.AID & dot11.AIDMask
	if p := d.peers.Lookup(d.bssid); p != nil {
		p.State = peertab.StateAssociated
		p.AID = d.aid
	}
	d.schedule(jobAssociate)
}

// rxAssocReqAP admits an authenticated station to the BSS. Reassociation
// requests are handled the same way and answered with a reassociation
// response.
func (d *Device) rxAssocReqAP(f *dot11.Frame) {
	if f.BSSID() != d.bssid {
		return
	}
	sa := f.SA()
	p := d.peers.Lookup(sa)
	if p == nil || p.State < peertab.StateAuthenticated {
		d.debug("rxAssocReqAP:not-authenticated", macAttr("sa", sa))
		d.sendDeauth(sa, dot11.ReasonClass2NonAuth)
		return
	}
	if ssid, _ := f.SSID(); ssid != d.essid {
		d.debug("rxAssocReqAP:essid-mismatch", macAttr("sa", sa), slog.String("essid", ssid))
		return
	}
	basic, oper := f.Rates()
	p.RateBasic, p.RateCap = basic, oper|basic
	p.CapInfo = f.CapInfo
	p.Rate.Reset(d.negotiated(p.RateCap), apIgnoreCount)
	if p.AID == 0 {
		p.AID = d.allocAID()
	}
	p.State = peertab.StateAssociated
	respType := layers.Dot11TypeMgmtAssociationResp
	if f.Type == layers.Dot11TypeMgmtReassociationReq {
		respType = layers.Dot11TypeMgmtReassociationResp
	}
	d.info("rxAssocReqAP:associated", macAttr("sta", sa), slog.Int("aid", int(p.AID)),
		slog.String("rates", p.Rate.Cfg.String()), slog.Bool("reassoc", respType == layers.Dot11TypeMgmtReassociationResp))

	resp := d.mgmtFrame(respType, sa)
	resp.CapInfo = d.capInfo()
	resp.Status = layers.Dot11StatusSuccess
	resp.AID = p.AID | 0xc000
	resp.AddRates(d.rateBasic, d.rateOper)
	err := d.txMgmt(&resp)
	if err != nil {
		d.logerr("rxAssocReqAP:send", slog.String("err", err.Error()))
	}
}

// allocAID hands out association ids 1..maxAID, wrapping around.
func (d *Device) allocAID() uint16 {
	d.nextAID++
	if d.nextAID > maxAID {
		d.nextAID = 1
	}
	return d.nextAID
}

func (d *Device) rxDeauth(f *dot11.Frame) {
	sa := f.SA()
	if d.cfg.Mode == ModeAP {
		if p := d.peers.Get(sa); p != nil {
			p.State = peertab.StateExist
			p.AID = 0
			d.info("rxDeauth:sta", macAttr("sta", sa), slog.Int("reason", int(f.Reason)))
		}
		return
	}
	if d.status < StatusWaitAuth || f.BSSID() != d.bssid {
		return
	}
	d.warn("rxDeauth", macAttr("bssid", d.bssid), slog.Int("reason", int(f.Reason)))
	d.rescan.Set()
	d.schedule(jobUpdateCardCfg)
}

func (d *Device) rxDisassoc(f *dot11.Frame) {
	sa := f.SA()
	if d.cfg.Mode == ModeAP {
		p := d.peers.Get(sa)
		if p == nil || p.State < peertab.StateAuthenticated {
			d.sendDeauth(sa, dot11.ReasonClass2NonAuth)
			return
		}
		p.State = peertab.StateAuthenticated
		d.info("rxDisassoc:sta", macAttr("sta", sa), slog.Int("reason", int(f.Reason)))
		return
	}
	if d.status < StatusWaitAuth || f.BSSID() != d.bssid {
		return
	}
	d.warn("rxDisassoc", macAttr("bssid", d.bssid), slog.Int("reason", int(f.Reason)))
	d.sendDeauth(d.bssid, dot11.ReasonDeauthLeaving)
	d.rescan.Set()
	d.schedule(jobUpdateCardCfg)
}

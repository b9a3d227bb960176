package simbus

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
)

// AP is a simulated access point. Exported fields must be set before the
// AP is added to a Bus and its accessors called only while the bus is idle.
type AP struct {
	BSSID   [6]byte
	ESSID   string
	Channel uint8
	// CapInfo defaults to an ESS when zero.
	CapInfo uint16
	Basic   acxfw.Rate
	Rates   acxfw.Rate
	Auth    layers.Dot11Algorithm
	// Hidden sends beacons with an empty SSID.
	Hidden bool
	// Silent drops every frame without answering.
	Silent bool
	// AssocStatus is returned in association responses.
	AssocStatus layers.Dot11Status
	Level, SNR  uint8
	// Tamper is called on every frame the AP receives before processing.
	Tamper func(f *dot11.Frame)

	challenge map[[6]byte][]byte
	authed    map[[6]byte]bool
	assoc     map[[6]byte]uint16
	lastAID   uint16
	seq       uint16
	received  []*dot11.Frame
	eth       [][]byte
}

// Beacon returns an encoded beacon of the AP.
func (ap *AP) Beacon() ([]byte, error) {
	f := ap.frame(layers.Dot11TypeMgmtBeacon, [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	f.BeaconInterval = 100
	f.CapInfo = ap.capInfo()
	ssid := ap.ESSID
	if ap.Hidden {
		ssid = ""
	}
	f.AddIE(dot11.IDSSID, []byte(ssid))
	f.AddRates(ap.basic(), ap.rates())
	f.AddIE(dot11.IDDSSet, []byte{ap.Channel})
	return dot11.Encode(&f)
}

// Received returns the frames the AP was sent.
func (ap *AP) Received() []*dot11.Frame { return ap.received }

// Ethernet returns the data frames the AP received converted to Ethernet.
func (ap *AP) Ethernet() [][]byte { return ap.eth }

// Associated reports whether sta is associated and its association id.
func (ap *AP) Associated(sta [6]byte) (uint16, bool) {
	aid, ok := ap.assoc[sta]
	return aid, ok
}

// SendEth puts an Ethernet frame on air as a data frame from the AP.
func (b *Bus) SendEth(ap *AP, eth []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := gopacket.NewSerializeBuffer()
	ap.seq++
	if dot11.EncapEthernet(buf, eth, dot11.DirFromAP, ap.BSSID, ap.seq) != nil {
		return false
	}
	return b.inject(buf.Bytes(), ap.Level, ap.SNR)
}

func (ap *AP) capInfo() uint16 {
	if ap.CapInfo == 0 {
		return dot11.CapESS
	}
	return ap.CapInfo
}

func (ap *AP) basic() acxfw.Rate {
	if ap.Basic == 0 {
		return acxfw.Rate1 | acxfw.Rate2
	}
	return ap.Basic
}

func (ap *AP) rates() acxfw.Rate {
	if ap.Rates == 0 {
		return acxfw.RateB
	}
	return ap.Rates | ap.basic()
}

func (ap *AP) frame(t layers.Dot11Type, da [6]byte) dot11.Frame {
	ap.seq++
	return dot11.Frame{Type: t, Addr1: da, Addr2: ap.BSSID, Addr3: ap.BSSID, Seq: ap.seq}
}

func (ap *AP) init() {
	if ap.authed == nil {
		ap.challenge = make(map[[6]byte][]byte)
		ap.authed = make(map[[6]byte]bool)
		ap.assoc = make(map[[6]byte]uint16)
	}
}

// handle processes a frame addressed to the AP and returns encoded replies.
func (ap *AP) handle(f *dot11.Frame) [][]byte {
	ap.init()
	if ap.Tamper != nil {
		ap.Tamper(f)
	}
	ap.received = append(ap.received, f)
	if ap.Silent {
		return nil
	}
	sta := f.SA()
	var reply dot11.Frame
	switch f.Type {
	case layers.Dot11TypeMgmtAuthentication:
		reply = ap.frame(layers.Dot11TypeMgmtAuthentication, sta)
		reply.AuthAlg = f.AuthAlg
		switch {
		case f.AuthAlg != ap.Auth:
			reply.AuthSeq = 2
			reply.Status = layers.Dot11StatusAlgorithmUnsupported
		case f.AuthSeq == 1 && ap.Auth == layers.Dot11AlgorithmOpen:
			reply.AuthSeq = 2
			ap.authed[sta] = true
		case f.AuthSeq == 1:
			ch := make([]byte, 128)
			for i := range ch {
				ch[i] = byte(i*7 + 3)
			}
			ap.challenge[sta] = ch
			reply.AuthSeq = 2
			reply.AddIE(dot11.IDChallenge, ch)
		case f.AuthSeq == 3:
			reply.AuthSeq = 4
			if string(f.Challenge()) != string(ap.challenge[sta]) {
				reply.Status = layers.Dot11StatusChallengeFailure
				break
			}
			ap.authed[sta] = true
		default:
			return nil
		}

	case layers.Dot11TypeMgmtAssociationReq, layers.Dot11TypeMgmtReassociationReq:
		if !ap.authed[sta] {
			reply = ap.frame(layers.Dot11TypeMgmtDeauthentication, sta)
			reply.Reason = dot11.ReasonClass2NonAuth
			break
		}
		respType := layers.Dot11TypeMgmtAssociationResp
		if f.Type == layers.Dot11TypeMgmtReassociationReq {
			respType = layers.Dot11TypeMgmtReassociationResp
		}
		reply = ap.frame(respType, sta)
		reply.CapInfo = ap.capInfo()
		reply.Status = ap.AssocStatus
		if ap.AssocStatus == layers.Dot11StatusSuccess {
			aid, ok := ap.assoc[sta]
			if !ok {
				ap.lastAID++
				aid = ap.lastAID
				ap.assoc[sta] = aid
			}
			reply.AID = aid | 0xc000
		}
		reply.AddRates(ap.basic(), ap.rates())

	case layers.Dot11TypeMgmtDeauthentication:
		delete(ap.authed, sta)
		delete(ap.assoc, sta)
		return nil

	case layers.Dot11TypeData:
		buf := gopacket.NewSerializeBuffer()
		if dot11.DecapEthernet(buf, f) == nil {
			ap.eth = append(ap.eth, append([]byte(nil), buf.Bytes()...))
		}
		return nil

	default:
		return nil
	}
	b, err := dot11.Encode(&reply)
	if err != nil {
		return nil
	}
	return [][]byte{b}
}

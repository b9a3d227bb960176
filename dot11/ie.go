package dot11

import (
	"github.com/google/gopacket/layers"
	"github.com/soypat/acx/acxfw"
)

// Element ids used by the driver.
const (
	IDSSID      = layers.Dot11InformationElementIDSSID
	IDRates     = layers.Dot11InformationElementIDRates
	IDDSSet     = layers.Dot11InformationElementIDDSSet
	IDChallenge = layers.Dot11InformationElementIDChallenge
	IDESRates   = layers.Dot11InformationElementIDESRates
)

// maxRatesIE is the number of rates a Supported Rates element may carry; the
// rest go in Extended Supported Rates.
const maxRatesIE = 8

// IE is an information element in a management frame body.
type IE struct {
	ID   layers.Dot11InformationElementID
	Info []byte
}

// ParseIEs walks the element list in b. Info slices alias b. truncated is
// set when the last element overruns b; it is dropped.
func ParseIEs(b []byte) (ies []IE, truncated bool) {
	for len(b) >= 2 {
		n := int(b[1])
		if 2+n > len(b) {
			return ies, true
		}
		ies = append(ies, IE{ID: layers.Dot11InformationElementID(b[0]), Info: b[2 : 2+n]})
		b = b[2+n:]
	}
	return ies, len(b) != 0
}

// Find returns the first element with id, or nil.
func (f *Frame) Find(id layers.Dot11InformationElementID) *IE {
	for i := range f.IEs {
		if f.IEs[i].ID == id {
			return &f.IEs[i]
		}
	}
	return nil
}

// AddIE appends an element to f.
func (f *Frame) AddIE(id layers.Dot11InformationElementID, info []byte) {
	f.IEs = append(f.IEs, IE{ID: id, Info: info})
}

// SSID returns the SSID element contents and whether it was present.
func (f *Frame) SSID() (string, bool) {
	ie := f.Find(IDSSID)
	if ie == nil {
		return "", false
	}
	return string(ie.Info), true
}

// DSChannel returns the channel from the DS Parameter Set, or 0.
func (f *Frame) DSChannel() uint8 {
	ie := f.Find(IDDSSet)
	if ie == nil || len(ie.Info) < 1 {
		return 0
	}
	return ie.Info[0]
}

// Rates accumulates Supported Rates and Extended Supported Rates into basic
// and operational masks.
func (f *Frame) Rates() (basic, oper acxfw.Rate) {
	for i := range f.IEs {
		if f.IEs[i].ID == IDRates || f.IEs[i].ID == IDESRates {
			acxfw.AddRateBytes(f.IEs[i].Info, &basic, &oper)
		}
	}
	return basic, oper
}

// Challenge returns the shared-key challenge text, or nil.
func (f *Frame) Challenge() []byte {
	ie := f.Find(IDChallenge)
	if ie == nil {
		return nil
	}
	return ie.Info
}

// AddRates appends Supported Rates and, when more than eight rates are set,
// Extended Supported Rates elements for oper flagging basic rates.
func (f *Frame) AddRates(basic, oper acxfw.Rate) {
	b := oper.AppendDot11(nil, basic)
	if len(b) <= maxRatesIE {
		f.AddIE(IDRates, b)
		return
	}
	f.AddIE(IDRates, b[:maxRatesIE])
	f.AddIE(IDESRates, b[maxRatesIE:])
}

// HiddenSSID reports whether ssid is a cloaked network name: empty or a
// single space.
func HiddenSSID(ssid string) bool { return ssid == "" || ssid == " " }

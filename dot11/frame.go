// package dot11 encodes and decodes the IEEE 802.11 management and data
// frames exchanged with the ACX firmware. Frames handed to and received from
// the rings carry a trailing 4 byte FCS.
package dot11

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// HeaderLen is the size of a three address management or data header.
	HeaderLen = 24
	// FCSLen is the size of the frame check sequence trailer.
	FCSLen = 4
	// MaxBodyLen is the largest frame body 802.11 allows.
	MaxBodyLen = 2312
	// MaxFrameLen bounds every encoded frame.
	MaxFrameLen = HeaderLen + MaxBodyLen + FCSLen
)

var (
	errShortFrame      = errors.New("dot11: frame too short")
	errBadFCS          = errors.New("dot11: FCS mismatch")
	errUnsupportedType = errors.New("dot11: unsupported frame type")
	errIETooLong       = errors.New("dot11: information element longer than 255")
	errFrameTooLong    = errors.New("dot11: frame exceeds maximum length")
)

// ErrBadFCS reports whether err was caused by a frame check sequence mismatch.
func ErrBadFCS(err error) bool { return errors.Is(err, errBadFCS) }

// Capability information bits.
const (
	CapESS           uint16 = 1 << 0
	CapIBSS          uint16 = 1 << 1
	CapPrivacy       uint16 = 1 << 4
	CapShortPreamble uint16 = 1 << 5
	CapPBCC          uint16 = 1 << 6
	CapShortSlot     uint16 = 1 << 10
)

// Reason codes as carried on air. gopacket's Dot11Reason enumeration is
// offset by one from the wire values so the driver uses its own.
const (
	ReasonUnspecified     uint16 = 1
	ReasonPrevAuthInvalid uint16 = 2
	ReasonDeauthLeaving   uint16 = 3
	ReasonInactivity      uint16 = 4
	ReasonAPFull          uint16 = 5
	ReasonClass2NonAuth   uint16 = 6
	ReasonClass3NonAssoc  uint16 = 7
	ReasonDisassocLeaving uint16 = 8
)

// AIDMask clears the two high bits the association response sets on the AID.
const AIDMask = 0x3fff

// Frame is a decoded 802.11 management or data frame. Fields that do not
// apply to Type are left zero.
type Frame struct {
	Type     layers.Dot11Type
	Flags    layers.Dot11Flags
	Duration uint16
	Addr1    [6]byte
	Addr2    [6]byte
	Addr3    [6]byte
	Seq      uint16
	Frag     uint16

	// Authentication.
	AuthAlg layers.Dot11Algorithm
	AuthSeq uint16
	Status  layers.Dot11Status
	// Deauthentication and disassociation.
	Reason uint16
	// Association, reassociation, beacon and probe response.
	CapInfo        uint16
	ListenInterval uint16
	AID            uint16
	// CurrentAP is the access point a reassociating station leaves.
	CurrentAP      [6]byte
	Timestamp      uint64
	BeaconInterval uint16

	IEs []IE
	// Body holds the frame body of data frames.
	Body []byte
	// Truncated is set on decode when trailing bytes did not form a whole IE.
	Truncated bool
}

// Protected reports whether the frame has the WEP bit set.
func (f *Frame) Protected() bool { return f.Flags.WEP() }

// IsMgmt reports whether f is a management frame.
func (f *Frame) IsMgmt() bool { return f.Type.MainType() == layers.Dot11TypeMgmt }

// IsData reports whether f is a data frame.
func (f *Frame) IsData() bool { return f.Type.MainType() == layers.Dot11TypeData }

// SeqCtl returns the sequence control field: sequence number in the upper
// 12 bits and fragment number in the lower 4.
func (f *Frame) SeqCtl() uint16 { return f.Seq<<4 | f.Frag&0xf }

// DA returns the destination address.
func (f *Frame) DA() [6]byte {
	if f.Flags.ToDS() {
		return f.Addr3
	}
	return f.Addr1
}

// SA returns the source address.
func (f *Frame) SA() [6]byte {
	if f.Flags.FromDS() {
		return f.Addr3
	}
	return f.Addr2
}

// BSSID returns the BSS identifier.
func (f *Frame) BSSID() [6]byte {
	switch {
	case f.Flags.ToDS():
		return f.Addr1
	case f.Flags.FromDS():
		return f.Addr2
	}
	return f.Addr3
}

// Encode returns the wire encoding of f including FCS.
func Encode(f *Frame) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := f.SerializeTo(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeTo clears buf and writes the wire encoding of f including FCS.
func (f *Frame) SerializeTo(buf gopacket.SerializeBuffer) error {
	hdr := layers.Dot11{
		Type:           f.Type,
		Flags:          f.Flags,
		DurationID:     f.Duration,
		Address1:       net.HardwareAddr(f.Addr1[:]),
		Address2:       net.HardwareAddr(f.Addr2[:]),
		Address3:       net.HardwareAddr(f.Addr3[:]),
		SequenceNumber: f.Seq & 0x0fff,
		FragmentNumber: f.Frag & 0xf,
	}
	ls := make([]gopacket.SerializableLayer, 0, 3+len(f.IEs))
	ls = append(ls, &hdr)
	switch f.Type {
	case layers.Dot11TypeMgmtAuthentication:
		ls = append(ls, &layers.Dot11MgmtAuthentication{Algorithm: f.AuthAlg, Sequence: f.AuthSeq, Status: f.Status})
	case layers.Dot11TypeMgmtAssociationReq:
		ls = append(ls, &layers.Dot11MgmtAssociationReq{CapabilityInfo: f.CapInfo, ListenInterval: f.ListenInterval})
	case layers.Dot11TypeMgmtReassociationReq:
		ls = append(ls, &layers.Dot11MgmtReassociationReq{CapabilityInfo: f.CapInfo, ListenInterval: f.ListenInterval,
			CurrentApAddress: net.HardwareAddr(f.CurrentAP[:])})
	case layers.Dot11TypeMgmtAssociationResp, layers.Dot11TypeMgmtReassociationResp:
		// Both responses share one body layout; gopacket only models it for
		// association.
		ls = append(ls, &layers.Dot11MgmtAssociationResp{CapabilityInfo: f.CapInfo, Status: f.Status, AID: f.AID})
	case layers.Dot11TypeMgmtBeacon:
		ls = append(ls, &layers.Dot11MgmtBeacon{Timestamp: f.Timestamp, Interval: f.BeaconInterval, Flags: f.CapInfo})
	case layers.Dot11TypeMgmtProbeResp:
		ls = append(ls, &layers.Dot11MgmtProbeResp{Timestamp: f.Timestamp, Interval: f.BeaconInterval, Flags: f.CapInfo})
	case layers.Dot11TypeMgmtDeauthentication:
		ls = append(ls, &layers.Dot11MgmtDeauthentication{Reason: layers.Dot11Reason(f.Reason)})
	case layers.Dot11TypeMgmtDisassociation:
		ls = append(ls, &layers.Dot11MgmtDisassociation{Reason: layers.Dot11Reason(f.Reason)})
	case layers.Dot11TypeMgmtProbeReq, layers.Dot11TypeData:
		// Fixed fields absent; body is IEs or payload.
	default:
		return errUnsupportedType
	}
	for i := range f.IEs {
		if len(f.IEs[i].Info) > 255 {
			return errIETooLong
		}
		ls = append(ls, &layers.Dot11InformationElement{ID: f.IEs[i].ID, Info: f.IEs[i].Info})
	}
	if len(f.Body) > 0 {
		ls = append(ls, gopacket.Payload(f.Body))
	}
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, ls...)
	if err != nil {
		return err
	}
	if len(buf.Bytes())+FCSLen > MaxFrameLen {
		return errFrameTooLong
	}
	return appendFCS(buf)
}

func appendFCS(buf gopacket.SerializeBuffer) error {
	n := len(buf.Bytes())
	fcs, err := buf.AppendBytes(FCSLen)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(fcs, crc32.ChecksumIEEE(buf.Bytes()[:n]))
	return nil
}

// Decode parses a frame including its FCS. IEs and Body alias data.
// A frame whose WEP bit is set is decoded as plaintext: the firmware strips
// and verifies encryption before handing frames to the host.
func Decode(data []byte) (*Frame, error) {
	f := new(Frame)
	if err := f.DecodeFromBytes(data); err != nil {
		return nil, err
	}
	return f, nil
}

// DecodeFromBytes parses data into f, overwriting all fields.
func (f *Frame) DecodeFromBytes(data []byte) error {
	*f = Frame{}
	if len(data) < HeaderLen+FCSLen {
		return errShortFrame
	}
	end := len(data) - FCSLen
	if crc32.ChecksumIEEE(data[:end]) != binary.LittleEndian.Uint32(data[end:]) {
		return errBadFCS
	}
	var hdr layers.Dot11
	err := hdr.DecodeFromBytes(data, gopacket.NilDecodeFeedback)
	if err != nil {
		return err
	}
	f.Type = hdr.Type
	f.Flags = hdr.Flags
	f.Duration = hdr.DurationID
	copy(f.Addr1[:], hdr.Address1)
	copy(f.Addr2[:], hdr.Address2)
	copy(f.Addr3[:], hdr.Address3)
	f.Seq = hdr.SequenceNumber
	f.Frag = hdr.FragmentNumber
	body := hdr.Payload
	df := gopacket.NilDecodeFeedback
	var ies []byte
	switch f.Type {
	case layers.Dot11TypeMgmtAuthentication:
		var l layers.Dot11MgmtAuthentication
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.AuthAlg, f.AuthSeq, f.Status = l.Algorithm, l.Sequence, l.Status
			ies = l.Payload
		}
	case layers.Dot11TypeMgmtAssociationReq:
		var l layers.Dot11MgmtAssociationReq
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.CapInfo, f.ListenInterval = l.CapabilityInfo, l.ListenInterval
			ies = l.Payload
		}
	case layers.Dot11TypeMgmtReassociationReq:
		var l layers.Dot11MgmtReassociationReq
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.CapInfo, f.ListenInterval = l.CapabilityInfo, l.ListenInterval
			copy(f.CurrentAP[:], l.CurrentApAddress)
			ies = l.Payload
		}
	case layers.Dot11TypeMgmtAssociationResp, layers.Dot11TypeMgmtReassociationResp:
		var l layers.Dot11MgmtAssociationResp
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.CapInfo, f.Status, f.AID = l.CapabilityInfo, l.Status, l.AID
			ies = l.Payload
		}
	case layers.Dot11TypeMgmtBeacon:
		var l layers.Dot11MgmtBeacon
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.Timestamp, f.BeaconInterval, f.CapInfo = l.Timestamp, l.Interval, l.Flags
			ies = l.Payload
		}
	case layers.Dot11TypeMgmtProbeResp:
		var l layers.Dot11MgmtProbeResp
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.Timestamp, f.BeaconInterval, f.CapInfo = l.Timestamp, l.Interval, l.Flags
			ies = l.Payload
		}
	case layers.Dot11TypeMgmtDeauthentication:
		var l layers.Dot11MgmtDeauthentication
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.Reason = uint16(l.Reason)
		}
	case layers.Dot11TypeMgmtDisassociation:
		var l layers.Dot11MgmtDisassociation
		if err = l.DecodeFromBytes(body, df); err == nil {
			f.Reason = uint16(l.Reason)
		}
	case layers.Dot11TypeMgmtProbeReq:
		ies = body
	default:
		f.Body = body
	}
	if err != nil {
		return err
	}
	if len(ies) > 0 {
		f.IEs, f.Truncated = ParseIEs(ies)
	}
	return nil
}

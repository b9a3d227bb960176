package dot11

import (
	"errors"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	errNotData   = errors.New("dot11: not a data frame")
	errNotSNAP   = errors.New("dot11: data frame without LLC/SNAP header")
	errShortEthr = errors.New("dot11: ethernet frame too short")
)

// Direction selects the DS bits and address layout of a data frame.
type Direction uint8

const (
	// DirIBSS is a frame between stations of an independent BSS.
	DirIBSS Direction = iota
	// DirToAP is a frame from a station to its access point.
	DirToAP
	// DirFromAP is a frame from an access point to a station.
	DirFromAP
)

// llcSNAPLen is the size of the LLC and SNAP headers preceding the payload.
const llcSNAPLen = 8

var rfc1042OUI = []byte{0, 0, 0}

// EncapEthernet converts an Ethernet II frame to an 802.11 data frame
// addressed per dir and writes it, with FCS, into buf.
func EncapEthernet(buf gopacket.SerializeBuffer, eth []byte, dir Direction, bssid [6]byte, seq uint16) error {
	var ethr layers.Ethernet
	err := ethr.DecodeFromBytes(eth, gopacket.NilDecodeFeedback)
	if err != nil {
		return errShortEthr
	}
	if len(ethr.Payload)+llcSNAPLen > MaxBodyLen {
		return errFrameTooLong
	}
	hdr := layers.Dot11{
		Type:           layers.Dot11TypeData,
		SequenceNumber: seq & 0x0fff,
	}
	bss := net.HardwareAddr(bssid[:])
	switch dir {
	case DirToAP:
		hdr.Flags = layers.Dot11FlagsToDS
		hdr.Address1, hdr.Address2, hdr.Address3 = bss, ethr.SrcMAC, ethr.DstMAC
	case DirFromAP:
		hdr.Flags = layers.Dot11FlagsFromDS
		hdr.Address1, hdr.Address2, hdr.Address3 = ethr.DstMAC, bss, ethr.SrcMAC
	default:
		hdr.Address1, hdr.Address2, hdr.Address3 = ethr.DstMAC, ethr.SrcMAC, bss
	}
	llc := layers.LLC{DSAP: 0xaa, SSAP: 0xaa, Control: 0x03}
	snap := layers.SNAP{OrganizationalCode: rfc1042OUI, Type: ethr.EthernetType}
	err = gopacket.SerializeLayers(buf, gopacket.SerializeOptions{},
		&hdr, &llc, &snap, gopacket.Payload(ethr.Payload))
	if err != nil {
		return err
	}
	return appendFCS(buf)
}

// DecapEthernet converts the decoded data frame f back to an Ethernet II
// frame written into buf.
func DecapEthernet(buf gopacket.SerializeBuffer, f *Frame) error {
	if !f.IsData() {
		return errNotData
	}
	var llc layers.LLC
	if err := llc.DecodeFromBytes(f.Body, gopacket.NilDecodeFeedback); err != nil || llc.DSAP != 0xaa || llc.SSAP != 0xaa {
		return errNotSNAP
	}
	var snap layers.SNAP
	if err := snap.DecodeFromBytes(llc.Payload, gopacket.NilDecodeFeedback); err != nil {
		return errNotSNAP
	}
	da, sa := f.DA(), f.SA()
	ethr := layers.Ethernet{
		DstMAC:       net.HardwareAddr(da[:]),
		SrcMAC:       net.HardwareAddr(sa[:]),
		EthernetType: snap.Type,
	}
	return gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, &ethr, gopacket.Payload(snap.Payload))
}

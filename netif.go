package acx

import (
	"errors"
	"net"

	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
)

// MTU (maximum transmission unit) returns the maximum amount
// of bytes that can be sent in a single ethernet frame in a call to SendEth.
func (d *Device) MTU() int { return MTU }

// HardwareAddr6 returns the device's 6-byte [MAC address].
//
// [MAC address]: https://en.wikipedia.org/wiki/MAC_address
func (d *Device) HardwareAddr6() ([6]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mac == [6]byte{} {
		return [6]byte{}, errors.New("hardware address not acquired")
	}
	return d.mac, nil
}

// PollOne services pending interrupts once. Returns true if an Ethernet
// packet was delivered to the receive handler.
func (d *Device) PollOne() (bool, error) {
	n, err := d.handleIRQ()
	return n > 0, err
}

// RecvEthHandle sets handler for receiving Ethernet pkt
// If set to nil then incoming packets are ignored.
func (d *Device) RecvEthHandle(handler func(pkt []byte) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rcvEth = handler
}

// SendEth sends an Ethernet packet over the current interface. The device
// must be associated.
func (d *Device) SendEth(pkt []byte) error {
	if len(pkt) > maxEthFrame {
		return ErrFrameTooLarge
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != StatusAssociated {
		return ErrNotAssociated
	}
	var da [6]byte
	copy(da[:], pkt)
	var dir dot11.Direction
	peerAddr := da
	switch d.cfg.Mode {
	case ModeManaged:
		dir = dot11.DirToAP
		peerAddr = d.bssid
	case ModeAdhoc:
		dir = dot11.DirIBSS
	case ModeAP:
		dir = dot11.DirFromAP
	}
	err := dot11.EncapEthernet(d.txbuf, pkt, dir, d.bssid, d.nextSeq())
	if err != nil {
		return err
	}
	rate := d.rateBasic.Lowest()
	tag := txTag{dst: peerAddr}
	if p := d.peers.Get(peerAddr); p != nil && p.Rate.Cur != 0 && !isGroupAddr(peerAddr) {
		rate = p.Rate.Cur.Highest()
		tag.ratectl = true
	}
	return d.txEncoded(d.txbuf.Bytes(), rate, tag)
}

// NetFlags returns the current network flags for the device.
func (d *Device) NetFlags() (flags net.Flags) {
	if !d.up.IsSet() {
		return 0
	}
	flags |= net.FlagUp | net.FlagBroadcast | net.FlagMulticast
	d.mu.Lock()
	if d.status == StatusAssociated {
		flags |= net.FlagRunning
	}
	d.mu.Unlock()
	return flags
}

// Variant returns the chip variant the device was initialized for.
func (d *Device) Variant() acxfw.Variant { return d.v }

package acxfw

import "encoding/binary"

// DescSize is the size of a TX or RX descriptor in device memory.
const DescSize = 16

// Descriptor control bits.
const (
	DescCtlShortPreamble = 0x01
	DescCtlFirstFrag     = 0x02
	DescCtlAutoDMA       = 0x04
	DescCtlRecycle       = 0x08
	DescCtlHostDone      = 0x20
	DescCtlACXDone       = 0x40
	DescCtlHostOwn       = 0x80

	DescCtlACXDoneHostOwn = DescCtlACXDone | DescCtlHostOwn
)

// TxDesc is the device-visible TX descriptor.
//
//	0: Ctl  1: Error  2: AckFailures  3: reserved
//	4: Len(16)  6: Rate(16)  8: RateUsed(16)  10: reserved
type TxDesc struct {
	Ctl         uint8
	Error       uint8
	AckFailures uint8
	Len         uint16
	Rate        Rate // Requested rate, single bit.
	RateUsed    Rate // Rate the firmware transmitted at, single bit.
}

func DecodeTxDesc(b []byte) (d TxDesc) {
	_ = b[DescSize-1]
	d.Ctl = b[0]
	d.Error = b[1]
	d.AckFailures = b[2]
	d.Len = binary.LittleEndian.Uint16(b[4:])
	d.Rate = Rate(binary.LittleEndian.Uint16(b[6:]))
	d.RateUsed = Rate(binary.LittleEndian.Uint16(b[8:]))
	return d
}

// Put puts all 16 bytes of the descriptor in dst. Panics if dst is shorter than 16 bytes.
func (d *TxDesc) Put(dst []byte) {
	_ = dst[DescSize-1]
	clear(dst[:DescSize])
	dst[0] = d.Ctl
	dst[1] = d.Error
	dst[2] = d.AckFailures
	binary.LittleEndian.PutUint16(dst[4:], d.Len)
	binary.LittleEndian.PutUint16(dst[6:], uint16(d.Rate))
	binary.LittleEndian.PutUint16(dst[8:], uint16(d.RateUsed))
}

// Done reports whether the firmware finished with the descriptor.
func (d TxDesc) Done() bool { return d.Ctl&DescCtlACXDone != 0 }

// RxDesc is the device-visible RX descriptor.
//
//	0: Ctl  1: reserved  2: Len(16)  4: PhyLevel  5: PhySNR  6: reserved
type RxDesc struct {
	Ctl      uint8
	Len      uint16
	PhyLevel uint8
	PhySNR   uint8
}

func DecodeRxDesc(b []byte) (d RxDesc) {
	_ = b[DescSize-1]
	d.Ctl = b[0]
	d.Len = binary.LittleEndian.Uint16(b[2:])
	d.PhyLevel = b[4]
	d.PhySNR = b[5]
	return d
}

// Put puts all 16 bytes of the descriptor in dst. Panics if dst is shorter than 16 bytes.
func (d *RxDesc) Put(dst []byte) {
	_ = dst[DescSize-1]
	clear(dst[:DescSize])
	dst[0] = d.Ctl
	binary.LittleEndian.PutUint16(dst[2:], d.Len)
	dst[4] = d.PhyLevel
	dst[5] = d.PhySNR
}

// Filled reports whether the firmware wrote a received frame to the slot.
func (d RxDesc) Filled() bool { return d.Ctl&DescCtlHostOwn != 0 }

// SignalLevel converts a raw PHY level or SNR reading to a 0..100 scale.
func SignalLevel(raw uint8) uint8 {
	level := (4 + uint32(raw)*5) / 8
	if level > 100 {
		level = 100
	}
	return uint8(level)
}

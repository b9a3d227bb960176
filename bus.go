package acx

import (
	"github.com/soypat/acx/acxfw"
)

// BusLayer gives access to the chip's I/O registers and its shared memory
// window. Register offsets are variant specific, see [acxfw.Variant.Offset].
// Implementations must be safe for concurrent use.
type BusLayer interface {
	Read16(off uint16) uint16
	Write16(off uint16, v uint16)
	Read32(off uint16) uint32
	Write32(off uint16, v uint32)
	// ReadMem copies len(dst) bytes of device memory starting at addr.
	ReadMem(addr uint32, dst []byte) error
	// WriteMem copies src to device memory starting at addr.
	WriteMem(addr uint32, src []byte) error
}

// FirmwareLoader places the firmware image for the chip and radio module.
// Image retrieval and checksum verification are its concern.
type FirmwareLoader interface {
	Load(v acxfw.Variant, radioID uint8) ([]byte, error)
	Loaded() bool
}

func (d *Device) read16(reg acxfw.Register) uint16 {
	return d.bus.Read16(d.v.Offset(reg))
}

func (d *Device) write16(reg acxfw.Register, v uint16) {
	d.bus.Write16(d.v.Offset(reg), v)
}

func (d *Device) read32(reg acxfw.Register) uint32 {
	return d.bus.Read32(d.v.Offset(reg))
}

func (d *Device) write32(reg acxfw.Register, v uint32) {
	d.bus.Write32(d.v.Offset(reg), v)
}

func (d *Device) readIRQ() acxfw.HostInt {
	return acxfw.HostInt(d.read16(acxfw.RegIRQStatusNonDes))
}

func (d *Device) ackIRQ(irq acxfw.HostInt) {
	d.write16(acxfw.RegIRQAck, uint16(irq))
}

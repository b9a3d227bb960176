package acxfw

// Register is a logical I/O register. Its bus offset depends on the Variant.
type Register uint8

const (
	RegSoftReset Register = iota
	RegSlvMemAddr
	RegSlvMemData
	RegSlvMemCtl
	RegSlvEndCtl
	RegFEMR
	RegIntTrig
	RegIRQMask
	RegIRQStatusNonDes
	RegIRQReason
	RegIRQAck
	RegHintTrig
	RegEnable
	RegEEPROMCtl
	RegEEPROMAddr
	RegEEPROMData
	RegEEPROMCfg
	RegPHYAddr
	RegPHYData
	RegPHYCtl
	RegGPIOOE
	RegGPIOOut
	RegCmdMailboxOffs
	RegInfoMailboxOffs
	RegEEPROMInfo
	RegEEStart
	RegSORCfg
	RegECPUCtrl
	numRegisters
)

var regOffsets = [...][numRegisters]uint16{
	VariantACX100: {
		0x0000,
		0x0014, 0x0018, 0x001c, 0x0020,
		0x0034,
		0x007c, 0x0098, 0x00a4, 0x00a8, 0x00ac, 0x00b0,
		0x0104,
		0x0250, 0x0254, 0x0258, 0x025c,
		0x0268, 0x026c, 0x0270,
		0x0290, 0x0298,
		0x02a4, 0x02a8, 0x02ac,
		0x02d0, 0x02d4, 0x02d8,
	},
	VariantACX111: {
		0x0000,
		0x0014, 0x0018, 0x001c, 0x0020,
		0x0034,
		// IRQ status is NON_DES at 0xf0, not NON_DES_MASK at 0xe0.
		0x00b4, 0x00d4, 0x00f0, 0x00e4, 0x00e8, 0x00ec,
		0x01d0,
		0x0338, 0x033c, 0x0340, 0x0344,
		0x0350, 0x0354, 0x0358,
		0x0374, 0x037c,
		0x0388, 0x038c, 0x0390,
		0x0100, 0x0104, 0x0108,
	},
}

// Offset returns the bus offset of reg for the variant.
func (v Variant) Offset(reg Register) uint16 {
	if !v.IsValid() || reg >= numRegisters {
		panic("acxfw: invalid register or variant")
	}
	return regOffsets[v][reg]
}

// HostInt is the host interrupt bitfield read from RegIRQStatusNonDes and
// written to RegIRQAck/RegIRQMask.
type HostInt uint16

const (
	HostIntRxData HostInt = 1 << iota
	HostIntTxComplete
	HostIntTxXfer
	HostIntRxComplete
	HostIntDTIM
	HostIntBeacon
	HostIntTimer
	HostIntKeyNotFound
	HostIntIVICVFailure
	HostIntCmdComplete
	HostIntInfo
	HostIntOverflow
	HostIntProcessError
	HostIntScanComplete
	HostIntFCSThreshold
	HostIntUnknown

	HostIntAll HostInt = 0xffff
)

// Has reports whether all bits in mask are set.
func (irq HostInt) Has(mask HostInt) bool { return irq&mask == mask }

// IsSet reports whether any bit in mask is set.
func (irq HostInt) IsSet(mask HostInt) bool { return irq&mask != 0 }

// Values written to RegIntTrig to kick the firmware.
const (
	IntTrigCmd   = 0x01
	IntTrigTxPRC = 0x04
	IntTrigRxPRC = 0x08
)

// MemoryMap locates the shared memory structures inside the device window.
type MemoryMap struct {
	CmdArea    uint32
	InfoArea   uint32
	TxDescBase uint32
	RxDescBase uint32
	TxBufBase  uint32
	RxBufBase  uint32
	TxBufSize  uint32
	RxBufSize  uint32
}

// DefaultMemoryMap returns the layout used when the firmware memory map has
// not been interrogated. ringCap is the number of descriptors per ring.
func (v Variant) DefaultMemoryMap(ringCap int) MemoryMap {
	const bufSize = 2400 // Fits the largest 802.11 MPDU plus descriptor slack.
	mm := MemoryMap{
		CmdArea:   0x0000,
		InfoArea:  CmdAreaSize,
		TxBufSize: bufSize,
		RxBufSize: bufSize,
	}
	mm.TxDescBase = mm.InfoArea + 0x100
	mm.RxDescBase = mm.TxDescBase + uint32(ringCap)*DescSize
	mm.TxBufBase = mm.RxDescBase + uint32(ringCap)*DescSize
	mm.RxBufBase = mm.TxBufBase + uint32(ringCap)*bufSize
	return mm
}

// Size returns the number of bytes of device memory the map spans.
func (mm MemoryMap) Size(ringCap int) int {
	return int(mm.RxBufBase) + ringCap*int(mm.RxBufSize)
}

// package simbus emulates the host interface of an ACX100/ACX111 chip in
// memory: the I/O registers, the command mailbox, the descriptor rings and
// an air interface populated by simulated access points. It executes
// commands synchronously when the host kicks the mailbox.
package simbus

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
)

var errOutOfRange = errors.New("simbus: memory access out of range")

// Command is a record of a command the simulated firmware executed.
type Command struct {
	Op     acxfw.Opcode
	IE     acxfw.IE
	Status acxfw.CmdStatus
}

// TxResultFunc decides the outcome of a transmitted frame.
type TxResultFunc func(frame []byte, td acxfw.TxDesc) (failed bool, used acxfw.Rate)

// Bus is a simulated chip. It implements the driver's BusLayer and
// FirmwareLoader interfaces.
type Bus struct {
	mu      sync.Mutex
	v       acxfw.Variant
	mm      acxfw.MemoryMap
	ringCap int
	regOf   map[uint16]acxfw.Register
	regs    map[acxfw.Register]uint32
	irq     acxfw.HostInt
	mask    acxfw.HostInt
	mem     []byte
	mac     [6]byte
	ies     map[acxfw.IE][]byte
	loaded  bool

	hang      bool
	fail      map[acxfw.Opcode]acxfw.CmdStatus
	cmds      []Command
	join      acxfw.JoinBSS
	joined    bool
	scanDelay time.Duration

	txNext, rxNext int
	rxDropped      int
	aps            []*AP
	sent           [][]byte
	txResult       TxResultFunc

	irqCh chan struct{}
}

// New returns a simulated chip of variant v whose rings hold ringCap
// descriptors and whose station address is mac.
func New(v acxfw.Variant, ringCap int, mac [6]byte) *Bus {
	mm := v.DefaultMemoryMap(ringCap)
	b := &Bus{
		v:       v,
		mm:      mm,
		ringCap: ringCap,
		regOf:   make(map[uint16]acxfw.Register),
		regs:    make(map[acxfw.Register]uint32),
		mask:    acxfw.HostIntAll,
		mem:     make([]byte, mm.Size(ringCap)),
		mac:     mac,
		ies:     make(map[acxfw.IE][]byte),
		fail:    make(map[acxfw.Opcode]acxfw.CmdStatus),
		irqCh:   make(chan struct{}, 1),
	}
	for r := acxfw.RegSoftReset; r <= acxfw.RegECPUCtrl; r++ {
		b.regOf[v.Offset(r)] = r
	}
	return b
}

// Load implements the driver's FirmwareLoader.
func (b *Bus) Load(v acxfw.Variant, radioID uint8) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v != b.v {
		return nil, errors.New("simbus: firmware variant mismatch")
	}
	b.loaded = true
	img := []byte("simulated " + v.String() + " firmware")
	return append(img, radioID), nil
}

// Loaded implements the driver's FirmwareLoader.
func (b *Bus) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// IRQ returns a channel signalled whenever an unmasked interrupt is raised.
func (b *Bus) IRQ() <-chan struct{} { return b.irqCh }

// Pending returns the raised interrupt bits, masked or not.
func (b *Bus) Pending() acxfw.HostInt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.irq
}

// RaiseIRQ raises interrupt bits as the firmware would.
func (b *Bus) RaiseIRQ(irq acxfw.HostInt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.raise(irq)
}

// SetHang makes the firmware stop completing commands.
func (b *Bus) SetHang(hang bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hang = hang
}

// FailCommand makes every following op complete with status. Passing
// StatusSuccess clears the failure.
func (b *Bus) FailCommand(op acxfw.Opcode, status acxfw.CmdStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == acxfw.StatusSuccess {
		delete(b.fail, op)
		return
	}
	b.fail[op] = status
}

// SetScanDelay delays the end of a scan. Zero completes scans immediately.
func (b *Bus) SetScanDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanDelay = d
}

// SetTxResult replaces the default of transmitting every frame
// successfully at the requested rate.
func (b *Bus) SetTxResult(fn TxResultFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txResult = fn
}

// AddAP places an access point on air.
func (b *Bus) AddAP(ap *AP) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aps = append(b.aps, ap)
}

// Commands returns the commands executed so far.
func (b *Bus) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.cmds...)
}

// Joined returns the last JOIN parameters.
func (b *Bus) Joined() (acxfw.JoinBSS, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.join, b.joined
}

// IEValue returns the last value configured for ie.
func (b *Bus) IEValue(ie acxfw.IE) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.ies[ie]...)
}

// Sent returns copies of every frame the host transmitted.
func (b *Bus) Sent() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.sent...)
}

// SentFrames decodes the transmitted frames, skipping undecodable ones.
func (b *Bus) SentFrames() []*dot11.Frame {
	var frames []*dot11.Frame
	for _, raw := range b.Sent() {
		f, err := dot11.Decode(raw)
		if err == nil {
			frames = append(frames, f)
		}
	}
	return frames
}

// Inject delivers frame, which must carry an FCS, to the next RX slot. It
// reports false if the host has not posted the slot.
func (b *Bus) Inject(frame []byte, level, snr uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inject(frame, level, snr)
}

// Dropped returns the number of frames lost because no RX slot was posted.
func (b *Bus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rxDropped
}

func (b *Bus) Read16(off uint16) uint16 { return uint16(b.Read32(off)) }

func (b *Bus) Read32(off uint16) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg, ok := b.regOf[off]
	if !ok {
		return 0
	}
	switch reg {
	case acxfw.RegIRQStatusNonDes:
		return uint32(b.irq)
	case acxfw.RegIRQMask:
		return uint32(b.mask)
	}
	return b.regs[reg]
}

func (b *Bus) Write16(off uint16, v uint16) { b.Write32(off, uint32(v)) }

func (b *Bus) Write32(off uint16, v uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg, ok := b.regOf[off]
	if !ok {
		return
	}
	switch reg {
	case acxfw.RegIRQAck:
		b.irq &^= acxfw.HostInt(v)
	case acxfw.RegIRQMask:
		b.mask = acxfw.HostInt(v)
	case acxfw.RegSoftReset:
		if v&1 != 0 {
			b.reset()
		}
	case acxfw.RegIntTrig:
		if v&acxfw.IntTrigCmd != 0 && !b.hang {
			b.runCmd()
		}
		if v&acxfw.IntTrigTxPRC != 0 {
			b.runTx()
		}
		// Reposted RX slots are noticed on the next injection.
	default:
		b.regs[reg] = v
	}
}

func (b *Bus) ReadMem(addr uint32, dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(addr)+len(dst) > len(b.mem) {
		return errOutOfRange
	}
	copy(dst, b.mem[addr:])
	return nil
}

func (b *Bus) WriteMem(addr uint32, src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(addr)+len(src) > len(b.mem) {
		return errOutOfRange
	}
	copy(b.mem[addr:], src)
	return nil
}

func (b *Bus) reset() {
	b.irq = 0
	b.txNext, b.rxNext = 0, 0
	clear(b.mem)
}

func (b *Bus) raise(irq acxfw.HostInt) {
	b.irq |= irq
	if b.irq&^b.mask != 0 {
		select {
		case b.irqCh <- struct{}{}:
		default:
		}
	}
}

func (b *Bus) runCmd() {
	box := b.mem[b.mm.CmdArea : b.mm.CmdArea+acxfw.CmdAreaSize]
	op, _ := acxfw.DecodeCmdWord(binary.LittleEndian.Uint32(box))
	param := box[acxfw.CmdHeaderLen:]
	c := Command{Op: op, Status: acxfw.StatusSuccess}
	switch op {
	case acxfw.CmdInterrogate, acxfw.CmdConfigure:
		hdr := acxfw.DecodeIEHeader(param)
		c.IE = hdr.Type
		n, ok := b.v.IELen(hdr.Type)
		if !ok || int(hdr.Len) != n {
			c.Status = acxfw.StatusInvalidIE
			break
		}
		val := param[acxfw.IEHeaderLen : acxfw.IEHeaderLen+n]
		if op == acxfw.CmdConfigure {
			b.ies[hdr.Type] = append([]byte(nil), val...)
		} else {
			b.ieValue(hdr.Type, val)
		}
	case acxfw.CmdJoin:
		b.join = acxfw.DecodeJoinBSS(b.v, param)
		b.joined = true
	case acxfw.CmdScan:
		if b.scanDelay > 0 {
			time.AfterFunc(b.scanDelay, func() {
				b.mu.Lock()
				defer b.mu.Unlock()
				b.scan()
			})
		} else {
			b.scan()
		}
	default:
		if !b.v.Supported(op) {
			c.Status = acxfw.StatusUnknownCommand
		}
	}
	if st, ok := b.fail[op]; ok {
		c.Status = st
	}
	b.cmds = append(b.cmds, c)
	acxfw.PutCmdWord(box, op, c.Status)
	b.raise(acxfw.HostIntCmdComplete)
}

func (b *Bus) ieValue(ie acxfw.IE, dst []byte) {
	clear(dst)
	switch ie {
	case acxfw.IEDot11StationID:
		for i := range b.mac {
			dst[i] = b.mac[len(b.mac)-1-i]
		}
	default:
		copy(dst, b.ies[ie])
	}
}

// scan puts a beacon of every access point on an allowed channel on air
// and signals scan completion.
func (b *Bus) scan() {
	rd := acxfw.RegDomain(0)
	if v := b.ies[acxfw.IEDot11RegDomain]; len(v) > 0 {
		rd = acxfw.RegDomain(v[0])
	}
	for _, ap := range b.aps {
		if rd.IsValid() && !rd.Allows(ap.Channel) {
			continue
		}
		beacon, err := ap.Beacon()
		if err == nil {
			b.inject(beacon, ap.Level, ap.SNR)
		}
	}
	b.raise(acxfw.HostIntScanComplete)
}

func (b *Bus) runTx() {
	for i := 0; i < b.ringCap; i++ {
		slot := b.txNext
		daddr := b.mm.TxDescBase + uint32(slot)*acxfw.DescSize
		td := acxfw.DecodeTxDesc(b.mem[daddr:])
		if td.Ctl&acxfw.DescCtlHostOwn != 0 {
			break
		}
		baddr := b.mm.TxBufBase + uint32(slot)*b.mm.TxBufSize
		n := min(uint32(td.Len), b.mm.TxBufSize)
		frame := append([]byte(nil), b.mem[baddr:baddr+n]...)
		failed, used := false, td.Rate
		if b.txResult != nil {
			failed, used = b.txResult(frame, td)
		}
		td.Ctl = acxfw.DescCtlACXDoneHostOwn
		td.RateUsed = used
		if failed {
			td.Error = 1
			td.AckFailures = 7
		}
		td.Put(b.mem[daddr:])
		b.sent = append(b.sent, frame)
		b.txNext = (slot + 1) % b.ringCap
		b.raise(acxfw.HostIntTxComplete)
		if !failed {
			b.air(frame)
		}
	}
}

// air hands a transmitted frame to every access point it is addressed to
// and puts their answers on air.
func (b *Bus) air(frame []byte) {
	f, err := dot11.Decode(frame)
	if err != nil {
		return
	}
	for _, ap := range b.aps {
		if f.Addr1 != ap.BSSID {
			continue
		}
		for _, reply := range ap.handle(f) {
			b.inject(reply, ap.Level, ap.SNR)
		}
	}
}

func (b *Bus) inject(frame []byte, level, snr uint8) bool {
	slot := b.rxNext
	daddr := b.mm.RxDescBase + uint32(slot)*acxfw.DescSize
	rd := acxfw.DecodeRxDesc(b.mem[daddr:])
	if rd.Filled() || uint32(len(frame)) > b.mm.RxBufSize {
		b.rxDropped++
		return false
	}
	copy(b.mem[b.mm.RxBufBase+uint32(slot)*b.mm.RxBufSize:], frame)
	rd = acxfw.RxDesc{
		Ctl:      acxfw.DescCtlACXDoneHostOwn,
		Len:      uint16(len(frame)),
		PhyLevel: level,
		PhySNR:   snr,
	}
	rd.Put(b.mem[daddr:])
	b.rxNext = (slot + 1) % b.ringCap
	b.raise(acxfw.HostIntRxComplete)
	return true
}

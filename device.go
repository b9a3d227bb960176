package acx

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/pkg/errors"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
	"github.com/soypat/acx/peertab"
	"github.com/soypat/acx/ratectl"
	"github.com/soypat/acx/ring"
	"github.com/tevino/abool"
)

// Device drives one ACX100 or ACX111 chip. Its methods are safe for
// concurrent use. HandleIRQ must be called whenever the chip raises an
// interrupt and deferred work must be run with RunJobs or ProcessJobs.
type Device struct {
	// mu guards association state, rings, peers and the job queue. It is
	// never held while sleeping or issuing a firmware command.
	mu sync.Mutex
	// cmdmu serializes firmware commands. Acquired before mu.
	cmdmu sync.Mutex
	// jobmu serializes job queue drains. Acquired before cmdmu.
	jobmu sync.Mutex

	bus        BusLayer
	fw         FirmwareLoader
	v          acxfw.Variant
	mm         acxfw.MemoryMap
	cfg        Config
	cmdTimeout time.Duration

	logger        *slog.Logger
	_traceenabled bool

	mac     [6]byte
	bssid   [6]byte
	essid   string
	channel uint8
	aid     uint16
	// Rate sets of the BSS we are part of.
	rateBasic acxfw.Rate
	rateOper  acxfw.Rate
	status    Status
	assocErr  error

	timer       *time.Timer
	timerGen    uint64
	scanRetries int
	authRetries int
	scanStart   time.Time
	scanRunning bool
	nextAID     uint16
	seq         uint16
	// lastSeqCtl is the sequence control of the last data frame received,
	// -1 when none was.
	lastSeqCtl int32

	peers *peertab.Table
	rc    ratectl.Controller
	tx    *ring.Ring
	rx    *ring.Ring

	jobs      jobQueue
	jobNotify chan struct{}

	rescan  abool.AtomicBool
	cmdDone abool.AtomicBool
	up      abool.AtomicBool

	rcvEth func([]byte) error
	// ethq holds received Ethernet frames until mu is released.
	ethq  [][]byte
	rxf   dot11.Frame
	txbuf gopacket.SerializeBuffer
	rxbuf gopacket.SerializeBuffer
	// descbuf is scratch space for descriptor reads and writes under mu.
	descbuf [acxfw.DescSize]byte

	stats counters
}

type counters struct {
	commands      atomic.Uint64
	cmdErrors     atomic.Uint64
	cmdTimeouts   atomic.Uint64
	txPackets     atomic.Uint64
	txBytes       atomic.Uint64
	txErrors      atomic.Uint64
	rxPackets     atomic.Uint64
	rxBytes       atomic.Uint64
	rxDropped     atomic.Uint64
	rxDuplicates  atomic.Uint64
	authMismatch  atomic.Uint64
	rateFallbacks atomic.Uint64
	rateStepups   atomic.Uint64
}

// New returns a Device talking to the chip through bus. fw places the
// firmware image during Init.
func New(bus BusLayer, fw FirmwareLoader) *Device {
	return &Device{
		bus:       bus,
		fw:        fw,
		jobNotify: make(chan struct{}, 1),
	}
}

// Interrupts serviced by HandleIRQ.
const irqWanted = acxfw.HostIntRxData | acxfw.HostIntTxComplete | acxfw.HostIntRxComplete |
	acxfw.HostIntCmdComplete | acxfw.HostIntInfo | acxfw.HostIntScanComplete | acxfw.HostIntFCSThreshold

// Init loads firmware, resets the chip, sets up the descriptor rings and
// reads the station address. The device is left STOPPED; call Up to start
// operating in the configured mode.
func (d *Device) Init(cfg Config) (err error) {
	err = cfg.Validate()
	if err != nil {
		return err
	}
	cfg.Normalize()
	d.Down()

	d.mu.Lock()
	d.cfg = cfg
	d.v = cfg.Variant
	d.cmdTimeout = cfg.CmdTimeout
	d.logger = cfg.Logger
	d._traceenabled = d.logenabled(levelTrace)
	d.mm = d.v.DefaultMemoryMap(cfg.RingSize)
	d.peers = peertab.New(cfg.Peers.Capacity, cfg.Peers.Buckets)
	d.rc = ratectl.Controller{
		FallbackThreshold: cfg.RateControl.FallbackThreshold,
		StepupThreshold:   cfg.RateControl.StepupThreshold,
		IgnoreAfterChange: cfg.RateControl.IgnoreAfterChange,
	}
	d.tx = ring.New(cfg.RingSize, int(d.mm.TxBufSize))
	d.rx = ring.New(cfg.RingSize, int(d.mm.RxBufSize))
	d.txbuf = gopacket.NewSerializeBuffer()
	d.rxbuf = gopacket.NewSerializeBuffer()
	d.jobs.reset()
	d.status = StatusStopped
	d.assocErr = nil
	d.lastSeqCtl = -1
	d.mu.Unlock()

	d.info("Init:start", slog.String("variant", d.v.String()), slog.String("mode", cfg.Mode.String()))
	start := time.Now()
	if d.fw == nil {
		return errors.Wrap(ErrDeviceNotReady, "no firmware loader")
	}
	if !d.fw.Loaded() {
		img, err := d.fw.Load(d.v, cfg.RadioID)
		if err != nil {
			return errors.Wrap(err, "loading firmware")
		}
		d.debug("Init:firmware", slog.Int("len", len(img)), slog.Int("radio", int(cfg.RadioID)))
	}
	err = d.reset()
	if err != nil {
		return err
	}

	d.mu.Lock()
	err = d.initRings()
	d.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "initializing rings")
	}

	var sid [6]byte
	err = d.Interrogate(acxfw.IEDot11StationID, sid[:])
	if err != nil {
		return errors.Wrap(err, "reading station address")
	}
	d.mu.Lock()
	for i := range sid {
		// Firmware stores the address byte reversed.
		d.mac[i] = sid[len(sid)-1-i]
	}
	d.mu.Unlock()

	err = d.Configure(acxfw.IEDot11RegDomain, []byte{uint8(cfg.RegDomain), 0})
	if err != nil {
		return errors.Wrap(err, "setting regulatory domain")
	}
	// Rate control happens on the host; disable firmware fallback.
	err = d.Configure(acxfw.IERateFallback, []byte{0})
	if err != nil {
		return errors.Wrap(err, "disabling rate fallback")
	}
	d.write16(acxfw.RegIRQMask, ^uint16(irqWanted))
	d.info("Init:done", macAttr("mac", d.mac), slog.Duration("took", time.Since(start)))
	return nil
}

// reset pulses the soft reset line and waits for the command mailbox to
// become idle.
func (d *Device) reset() error {
	d.write16(acxfw.RegSoftReset, 1)
	time.Sleep(time.Millisecond)
	d.write16(acxfw.RegSoftReset, 0)
	for retries := 0; retries < 10; retries++ {
		_, st := d.readCmdWord()
		if st == acxfw.StatusIdle {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.Wrap(ErrDeviceNotReady, "mailbox not idle after reset")
}

// initRings resets both rings, hands every TX slot to the host and posts
// every RX slot to the firmware. Must hold d.mu.
func (d *Device) initRings() error {
	d.tx.Reset()
	d.rx.Reset()
	td := acxfw.TxDesc{Ctl: acxfw.DescCtlACXDoneHostOwn}
	td.Put(d.descbuf[:])
	for i := 0; i < d.tx.Cap(); i++ {
		err := d.bus.WriteMem(d.txDescAddr(i), d.descbuf[:])
		if err != nil {
			return err
		}
	}
	for i := 0; i < d.rx.Cap(); i++ {
		err := d.postRx()
		if err != nil {
			return err
		}
	}
	return nil
}

// Up enables the radio and starts operating: scanning in managed and
// ad-hoc mode, beaconing in AP mode.
func (d *Device) Up() error {
	d.mu.Lock()
	ready := d.peers != nil
	ch := d.cfg.Channel
	mode := d.cfg.Mode
	d.mu.Unlock()
	if !ready {
		return ErrDeviceNotReady
	}
	err := d.IssueCmd(acxfw.CmdEnableRx, []byte{ch})
	if err == nil {
		err = d.IssueCmd(acxfw.CmdEnableTx, []byte{ch})
	}
	if err != nil {
		return errors.Wrap(err, "enabling radio")
	}
	d.up.Set()
	if mode == ModeAP {
		return d.startAP()
	}
	err = d.setProbeRequestTemplate()
	if err != nil {
		return err
	}
	return d.StartScan()
}

// Down disarms timers, forgets all peers and disables the radio.
func (d *Device) Down() error {
	wasUp := d.up.SetToIf(true, false)
	d.mu.Lock()
	d.setStatus(StatusStopped)
	d.scanRunning = false
	d.jobs.reset()
	if d.peers != nil {
		d.peers.Clear()
	}
	d.mu.Unlock()
	if !wasUp {
		return nil
	}
	return errjoin(
		d.IssueCmd(acxfw.CmdDisableTx, nil),
		d.IssueCmd(acxfw.CmdDisableRx, nil),
	)
}

func (d *Device) txDescAddr(slot int) uint32 { return d.mm.TxDescBase + uint32(slot)*acxfw.DescSize }
func (d *Device) rxDescAddr(slot int) uint32 { return d.mm.RxDescBase + uint32(slot)*acxfw.DescSize }
func (d *Device) txBufAddr(slot int) uint32  { return d.mm.TxBufBase + uint32(slot)*d.mm.TxBufSize }
func (d *Device) rxBufAddr(slot int) uint32  { return d.mm.RxBufBase + uint32(slot)*d.mm.RxBufSize }

// nextSeq returns the next 802.11 sequence number. Must hold d.mu.
func (d *Device) nextSeq() uint16 {
	d.seq = (d.seq + 1) & 0x0fff
	return d.seq
}

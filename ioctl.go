package acx

// Firmware command channel. A single mailbox in device memory holds the
// opcode/status word followed by the parameter area; the host writes both,
// kicks the firmware through RegIntTrig and polls for HostIntCmdComplete.

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/soypat/acx/acxfw"
)

var (
	errShortIEBuf  = errors.New("buffer shorter than IE length")
	errUnknownIE   = errors.New("IE not implemented by variant")
	errCmdTooLarge = errors.New("command parameters exceed mailbox")
	errUnsupported = errors.New("command not supported by variant")
)

// Configure writes ie with the payload src. src must hold at least the
// variant's IE length.
func (d *Device) Configure(ie acxfw.IE, src []byte) error {
	n, ok := d.v.IELen(ie)
	if !ok {
		return errors.Wrapf(errUnknownIE, "configure %s", ie)
	} else if len(src) < n {
		return errors.Wrapf(errShortIEBuf, "configure %s", ie)
	}
	hdr := acxfw.IEHeader{Type: ie, Len: uint16(n)}
	var param [acxfw.CmdParamSize]byte
	hdr.Put(param[:])
	copy(param[acxfw.IEHeaderLen:], src[:n])
	return d.issue(acxfw.CmdConfigure, ie, param[:acxfw.IEHeaderLen+n], nil, d.cmdTimeout)
}

// Interrogate reads ie into dst. On failure dst is zeroed.
func (d *Device) Interrogate(ie acxfw.IE, dst []byte) error {
	n, ok := d.v.IELen(ie)
	if !ok {
		return errors.Wrapf(errUnknownIE, "interrogate %s", ie)
	} else if len(dst) < n {
		return errors.Wrapf(errShortIEBuf, "interrogate %s", ie)
	}
	var param [acxfw.IEHeaderLen]byte
	hdr := acxfw.IEHeader{Type: ie, Len: uint16(n)}
	hdr.Put(param[:])
	return d.issue(acxfw.CmdInterrogate, ie, param[:], dst[:n], d.cmdTimeout)
}

// IssueCmd runs op with parameters param using the configured timeout.
func (d *Device) IssueCmd(op acxfw.Opcode, param []byte) error {
	return d.IssueCmdTimeout(op, param, d.cmdTimeout)
}

// IssueCmdTimeout runs op with parameters param. timeout is clamped to
// the range the firmware tolerates.
func (d *Device) IssueCmdTimeout(op acxfw.Opcode, param []byte, timeout time.Duration) error {
	if op == acxfw.CmdConfigure || op == acxfw.CmdInterrogate {
		return errors.Errorf("use Configure or Interrogate for %s", op)
	}
	return d.issue(op, 0, param, nil, timeout)
}

// issue runs one firmware command end to end. Only the IE header is sent for
// interrogations; when out is not nil the IE payload is read back into it on
// success and out is zeroed on failure.
func (d *Device) issue(op acxfw.Opcode, ie acxfw.IE, param, out []byte, timeout time.Duration) (err error) {
	if !d.v.Supported(op) {
		return errors.Wrapf(errUnsupported, "%s on %s", op, d.v)
	} else if len(param) > acxfw.CmdParamSize {
		return errors.Wrapf(errCmdTooLarge, "%s", op)
	}
	d.cmdmu.Lock()
	defer d.cmdmu.Unlock()
	defer func() {
		if err != nil && out != nil {
			clear(out)
		}
	}()
	d.stats.commands.Add(1)
	if d.fw == nil || !d.fw.Loaded() {
		return ErrDeviceNotReady
	}
	timeout = min(max(timeout, cmdMinTimeout), cmdMaxTimeout)
	d.trace("issue:start", slog.String("op", op.String()), slog.Int("plen", len(param)))

	mbox := d.mm.CmdArea
	idle := pollUntil(cmdIdleTimeout, cmdIdleBackoff, func() bool {
		_, st := d.readCmdWord()
		return st == acxfw.StatusIdle
	})
	if !idle {
		d.warn("issue:mailbox-busy", slog.String("op", op.String()))
		return ErrDeviceNotReady
	}
	if len(param) > 0 {
		err = d.bus.WriteMem(mbox+acxfw.CmdHeaderLen, param)
		if err != nil {
			return errors.Wrapf(err, "%s: writing parameters", op)
		}
	}
	var word [acxfw.CmdHeaderLen]byte
	acxfw.PutCmdWord(word[:], op, acxfw.StatusIdle)
	err = d.bus.WriteMem(mbox, word[:])
	if err != nil {
		return errors.Wrapf(err, "%s: writing opcode", op)
	}
	d.cmdDone.UnSet()
	d.ackIRQ(acxfw.HostIntCmdComplete)
	start := time.Now()
	d.write16(acxfw.RegIntTrig, acxfw.IntTrigCmd)

	done := pollUntil(timeout, cmdPollPeriod, func() bool {
		if d.cmdDone.IsSet() {
			return true
		}
		return d.readIRQ().IsSet(acxfw.HostIntCmdComplete)
	})
	elapsed := time.Since(start)
	if done {
		d.ackIRQ(acxfw.HostIntCmdComplete)
	}
	_, status := d.readCmdWord()
	// Return mailbox to idle regardless of outcome.
	acxfw.PutCmdWord(word[:], 0, acxfw.StatusIdle)
	d.bus.WriteMem(mbox, word[:])

	if !done {
		d.stats.cmdTimeouts.Add(1)
		d.logerr("issue:timeout", slog.String("op", op.String()), slog.String("ie", ie.String()), slog.Duration("after", elapsed))
		return errors.Wrapf(ErrCommandTimeout, "%s after %s", op, elapsed)
	}
	if status != acxfw.StatusSuccess {
		d.stats.cmdErrors.Add(1)
		d.warn("issue:status", slog.String("op", op.String()), slog.String("status", status.String()))
		return &CommandError{Op: op, IE: ie, Status: status}
	}
	if out != nil {
		// Response repeats the IE header ahead of the payload.
		err = d.bus.ReadMem(mbox+acxfw.CmdHeaderLen+acxfw.IEHeaderLen, out)
		if err != nil {
			return errors.Wrapf(err, "%s: reading response", op)
		}
	}
	if d.logenabled(slog.LevelDebug) {
		d.debug("issue:done", slog.String("op", op.String()), slog.Duration("took", elapsed))
	}
	return nil
}

func (d *Device) readCmdWord() (acxfw.Opcode, acxfw.CmdStatus) {
	var word [acxfw.CmdHeaderLen]byte
	err := d.bus.ReadMem(d.mm.CmdArea, word[:])
	if err != nil {
		return 0, acxfw.StatusFailed
	}
	return acxfw.DecodeCmdWord(binary.LittleEndian.Uint32(word[:]))
}

// pollUntil calls cond every backoff until it returns true or timeout
// elapses. cond is always called at least once.
func pollUntil(timeout, backoff time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Since(deadline) >= 0 {
			return false
		}
		time.Sleep(backoff)
	}
}

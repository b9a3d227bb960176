package simbus

import (
	"encoding/binary"
	"testing"

	"github.com/soypat/acx/acxfw"
	"github.com/stretchr/testify/require"
)

var testMAC = [6]byte{0x00, 0x60, 0xb3, 0x01, 0x02, 0x03}

// command runs op through the mailbox the way a driver would and returns
// the completion status.
func command(t *testing.T, b *Bus, op acxfw.Opcode, param []byte) acxfw.CmdStatus {
	t.Helper()
	require.NoError(t, b.WriteMem(b.mm.CmdArea+acxfw.CmdHeaderLen, param))
	var word [acxfw.CmdHeaderLen]byte
	acxfw.PutCmdWord(word[:], op, acxfw.StatusIdle)
	require.NoError(t, b.WriteMem(b.mm.CmdArea, word[:]))
	b.Write16(b.v.Offset(acxfw.RegIntTrig), acxfw.IntTrigCmd)
	require.NoError(t, b.ReadMem(b.mm.CmdArea, word[:]))
	_, st := acxfw.DecodeCmdWord(binary.LittleEndian.Uint32(word[:]))
	return st
}

func configure(t *testing.T, b *Bus, ie acxfw.IE, val []byte) acxfw.CmdStatus {
	t.Helper()
	param := make([]byte, acxfw.IEHeaderLen+len(val))
	hdr := acxfw.IEHeader{Type: ie, Len: uint16(len(val))}
	hdr.Put(param)
	copy(param[acxfw.IEHeaderLen:], val)
	return command(t, b, acxfw.CmdConfigure, param)
}

func TestLoad(t *testing.T) {
	b := New(acxfw.VariantACX100, 4, testMAC)
	require.False(t, b.Loaded())
	_, err := b.Load(acxfw.VariantACX111, 0)
	require.Error(t, err)
	img, err := b.Load(acxfw.VariantACX100, 2)
	require.NoError(t, err)
	require.NotEmpty(t, img)
	require.True(t, b.Loaded())
}

func TestCommandMailbox(t *testing.T) {
	b := New(acxfw.VariantACX111, 4, testMAC)
	st := configure(t, b, acxfw.IEDot11RegDomain, []byte{byte(acxfw.RegDomainFCC), 0})
	require.Equal(t, acxfw.StatusSuccess, st)
	require.Equal(t, []byte{byte(acxfw.RegDomainFCC), 0}, b.IEValue(acxfw.IEDot11RegDomain))
	require.True(t, b.Pending().IsSet(acxfw.HostIntCmdComplete))

	// Wrong IE length is refused.
	st = configure(t, b, acxfw.IEDot11RegDomain, []byte{1, 0, 0})
	require.Equal(t, acxfw.StatusInvalidIE, st)

	b.FailCommand(acxfw.CmdEnableRx, acxfw.StatusChannelRejected)
	require.Equal(t, acxfw.StatusChannelRejected, command(t, b, acxfw.CmdEnableRx, []byte{14}))
	b.FailCommand(acxfw.CmdEnableRx, acxfw.StatusSuccess)
	require.Equal(t, acxfw.StatusSuccess, command(t, b, acxfw.CmdEnableRx, []byte{1}))

	cmds := b.Commands()
	require.Len(t, cmds, 4)
	require.Equal(t, acxfw.IEDot11RegDomain, cmds[0].IE)
}

func TestCommandUnsupported(t *testing.T) {
	b := New(acxfw.VariantACX100, 4, testMAC)
	require.Equal(t, acxfw.StatusUnknownCommand, command(t, b, acxfw.CmdRadioCalib, make([]byte, 8)))
}

func TestIRQMaskAndAck(t *testing.T) {
	b := New(acxfw.VariantACX100, 4, testMAC)
	b.RaiseIRQ(acxfw.HostIntInfo)
	select {
	case <-b.IRQ():
		t.Fatal("masked interrupt signalled")
	default:
	}
	require.EqualValues(t, acxfw.HostIntInfo, b.Read16(b.v.Offset(acxfw.RegIRQStatusNonDes)))

	b.Write16(b.v.Offset(acxfw.RegIRQMask), uint16(^acxfw.HostIntRxComplete))
	b.RaiseIRQ(acxfw.HostIntRxComplete)
	select {
	case <-b.IRQ():
	default:
		t.Fatal("unmasked interrupt not signalled")
	}
	b.Write16(b.v.Offset(acxfw.RegIRQAck), uint16(acxfw.HostIntInfo|acxfw.HostIntRxComplete))
	require.Zero(t, b.Pending())
}

func TestInjectNeedsFreeSlot(t *testing.T) {
	b := New(acxfw.VariantACX100, 2, testMAC)
	ap := &AP{BSSID: [6]byte{2, 0, 0, 0, 0, 1}, ESSID: "x", Channel: 1}
	beacon, err := ap.Beacon()
	require.NoError(t, err)
	require.True(t, b.Inject(beacon, 1, 1))
	require.True(t, b.Inject(beacon, 1, 1))
	require.False(t, b.Inject(beacon, 1, 1), "host has not drained slot 0")
	require.Equal(t, 1, b.Dropped())

	// Host returns slot 0 to the firmware.
	var zero [acxfw.DescSize]byte
	require.NoError(t, b.WriteMem(b.mm.RxDescBase, zero[:]))
	require.True(t, b.Inject(beacon, 1, 1))
}

func TestScanHonorsRegDomain(t *testing.T) {
	b := New(acxfw.VariantACX111, 4, testMAC)
	require.Equal(t, acxfw.StatusSuccess, configure(t, b, acxfw.IEDot11RegDomain, []byte{byte(acxfw.RegDomainFCC), 0}))
	b.AddAP(&AP{BSSID: [6]byte{2, 0, 0, 0, 0, 1}, ESSID: "us", Channel: 11})
	b.AddAP(&AP{BSSID: [6]byte{2, 0, 0, 0, 0, 2}, ESSID: "jp", Channel: 14})
	require.Equal(t, acxfw.StatusSuccess, command(t, b, acxfw.CmdScan, make([]byte, 16)))
	require.True(t, b.Pending().Has(acxfw.HostIntScanComplete|acxfw.HostIntRxComplete))

	filled := 0
	for i := 0; i < 4; i++ {
		var desc [acxfw.DescSize]byte
		require.NoError(t, b.ReadMem(b.mm.RxDescBase+uint32(i)*acxfw.DescSize, desc[:]))
		if acxfw.DecodeRxDesc(desc[:]).Filled() {
			filled++
		}
	}
	require.Equal(t, 1, filled)
}

func TestStationIDReversed(t *testing.T) {
	b := New(acxfw.VariantACX100, 4, testMAC)
	param := make([]byte, acxfw.IEHeaderLen+6)
	hdr := acxfw.IEHeader{Type: acxfw.IEDot11StationID, Len: 6}
	hdr.Put(param)
	require.Equal(t, acxfw.StatusSuccess, command(t, b, acxfw.CmdInterrogate, param))
	got := make([]byte, 6)
	require.NoError(t, b.ReadMem(b.mm.CmdArea+acxfw.CmdHeaderLen+acxfw.IEHeaderLen, got))
	require.Equal(t, []byte{0x03, 0x02, 0x01, 0xb3, 0x60, 0x00}, got)
}

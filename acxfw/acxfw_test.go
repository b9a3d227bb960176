package acxfw

import (
	"bytes"
	"testing"
)

func TestIELenPerVariant(t *testing.T) {
	n, ok := VariantACX100.IELen(IEAssocID)
	if !ok || n != 2 {
		t.Fatalf("acx100 ASSOC_ID: got %d,%v", n, ok)
	}
	n, ok = VariantACX111.IELen(IEDot11Antenna)
	if !ok || n != 2 {
		t.Errorf("acx111 antenna: got %d,%v", n, ok)
	}
	n, ok = VariantACX100.IELen(IEDot11Antenna)
	if !ok || n != 1 {
		t.Errorf("acx100 antenna: got %d,%v", n, ok)
	}
	if _, ok = VariantACX100.IELen(IEConfigOptions); ok {
		t.Error("acx100 has no CONFIG_OPTIONS")
	}
	if _, ok = VariantACX111.IELen(IETimer); ok {
		t.Error("acx111 has no TIMER")
	}
	if _, ok = VariantACX111.IELen(0x7fff); ok {
		t.Error("out of table IE accepted")
	}
	if _, ok = variantUndefined.IELen(IEAssocID); ok {
		t.Error("undefined variant accepted")
	}
}

func TestIEHeader(t *testing.T) {
	var buf [4]byte
	hdr := IEHeader{Type: IEDot11StationID, Len: 6}
	hdr.Put(buf[:])
	if !bytes.Equal(buf[:], []byte{0x01, 0x10, 0x06, 0x00}) {
		t.Fatalf("bad header encoding %x", buf)
	}
	got := DecodeIEHeader(buf[:])
	if got != hdr {
		t.Errorf("decode mismatch %+v", got)
	}
}

func TestCmdWord(t *testing.T) {
	var buf [4]byte
	PutCmdWord(buf[:], CmdJoin, StatusScanInProgress)
	word := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	op, st := DecodeCmdWord(word)
	if op != CmdJoin || st != StatusScanInProgress {
		t.Fatalf("got %s %s", op, st)
	}
	if StatusSuccess.String() != "Success" || StatusFailed.String() != "Failed" {
		t.Error("bad status strings")
	}
	if CmdStatus(99).String() != "unknown status 99" {
		t.Error("bad unknown status string")
	}
}

func TestRegisterOffsets(t *testing.T) {
	if VariantACX100.Offset(RegIntTrig) != 0x7c {
		t.Error("acx100 INT_TRIG")
	}
	if VariantACX111.Offset(RegIRQStatusNonDes) != 0xf0 {
		t.Error("acx111 IRQ_STATUS_NON_DES")
	}
	if VariantACX111.Offset(RegECPUCtrl) != 0x108 {
		t.Error("acx111 ECPU_CTRL")
	}
}

func TestRateBits(t *testing.T) {
	r := Rate1 | Rate11 | Rate54
	if r.Highest() != Rate54 || r.Lowest() != Rate1 {
		t.Fatal("highest/lowest")
	}
	if Rate(0).Highest() != 0 || Rate(0).BitPos() != -1 {
		t.Fatal("zero rate")
	}
	if b, err := Rate5.Dot11(); err != nil || b != 11 {
		t.Errorf("5.5 Mbps byte: %d %v", b, err)
	}
	if _, err := (Rate1 | Rate2).Dot11(); err == nil {
		t.Error("multi-bit rate accepted")
	}
	if s := (Rate1 | Rate5 | Rate54).String(); s != "1,5.5,54" {
		t.Errorf("bad rate string %q", s)
	}
}

func TestRateBytesRoundTrip(t *testing.T) {
	basic := Rate1 | Rate2
	oper := RateB | Rate54
	ie := oper.AppendDot11(nil, basic)
	want := []byte{0x82, 0x84, 11, 22, 108}
	if !bytes.Equal(ie, want) {
		t.Fatalf("got %x want %x", ie, want)
	}
	var gotBasic, gotOper Rate
	AddRateBytes(append(ie, 0x7e), &gotBasic, &gotOper) // Unknown rate ignored.
	if gotBasic != basic || gotOper != oper {
		t.Errorf("got basic=%s oper=%s", gotBasic, gotOper)
	}
}

func TestRate100FromBit(t *testing.T) {
	code, err := Rate100FromBit(Rate11.BitPos())
	if err != nil || code != Rate100_11 {
		t.Fatal("11 Mbps", code, err)
	}
	code, err = Rate100FromBit(Rate9.BitPos())
	if err != nil || code != Rate100_5 {
		t.Error("OFDM must clamp down to CCK", code, err)
	}
	if _, err = Rate100FromBit(13); err == nil {
		t.Error("position 13 accepted")
	}
	if _, err = Rate100FromBit(-1); err == nil {
		t.Error("negative position accepted")
	}
	if (Rate1 | Rate11 | Rate22 | Rate54).To5Bits() != 0x19 {
		t.Error("bad 5 bit conversion")
	}
}

func TestJoinBSSLayout(t *testing.T) {
	j := JoinBSS{
		BSSID:          [6]byte{1, 2, 3, 4, 5, 6},
		BeaconInterval: 100,
		DTIM:           2,
		BasicRates:     Rate1 | Rate2,
		MACMode:        ModeSTA,
		Channel:        6,
		ESSID:          "acx",
	}
	var buf [64]byte
	n := j.Put(VariantACX111, buf[:])
	if n != 3+0x11 {
		t.Fatalf("join length %d", n)
	}
	if !bytes.Equal(buf[:6], []byte{6, 5, 4, 3, 2, 1}) {
		t.Errorf("bssid not reversed: %x", buf[:6])
	}
	got := DecodeJoinBSS(VariantACX111, buf[:n])
	if got.BSSID != j.BSSID || got.ESSID != "acx" || got.Channel != 6 || got.BasicRates != j.BasicRates || got.MACMode != ModeSTA {
		t.Errorf("decode mismatch %+v", got)
	}
	n = j.Put(VariantACX100, buf[:])
	if buf[9] != 0x03 {
		t.Errorf("acx100 basic rate field %#x", buf[9])
	}
}

func TestScanParamsLayout(t *testing.T) {
	s := ScanParams{Count: 1, Rate: Rate100_1, ChanDuration: 100, MaxProbeDelay: 200}
	var buf [64]byte
	if n := s.Put(VariantACX100, buf[:]); n != scanLen100 {
		t.Errorf("acx100 scan len %d", n)
	}
	if buf[5] != 0x80 || buf[2] != 1 {
		t.Error("acx100 scan flags/start channel")
	}
	if n := s.Put(VariantACX111, buf[:]); n != scanLen111 {
		t.Errorf("acx111 scan len %d", n)
	}
	if buf[8] != 100 || buf[10] != 200 {
		t.Error("acx111 duration/probe delay")
	}
}

func TestDescriptors(t *testing.T) {
	var buf [DescSize]byte
	tx := TxDesc{Ctl: DescCtlACXDoneHostOwn, Error: 1, AckFailures: 3, Len: 1500, Rate: Rate11, RateUsed: Rate5}
	tx.Put(buf[:])
	if got := DecodeTxDesc(buf[:]); got != tx || !got.Done() {
		t.Errorf("tx desc mismatch %+v", got)
	}
	rx := RxDesc{Ctl: DescCtlHostOwn, Len: 60, PhyLevel: 80, PhySNR: 200}
	rx.Put(buf[:])
	if got := DecodeRxDesc(buf[:]); got != rx || !got.Filled() {
		t.Errorf("rx desc mismatch %+v", got)
	}
	if SignalLevel(80) != 50 || SignalLevel(255) != 100 {
		t.Error("signal level conversion")
	}
}

func TestDot11StatusString(t *testing.T) {
	if Dot11StatusString(15) != "Auth rejected: challenge failure" {
		t.Error("status 15")
	}
	if Dot11StatusString(5) != "reserved" || Dot11StatusString(400) != "reserved" {
		t.Error("reserved codes")
	}
}

func TestParseRate(t *testing.T) {
	for _, r := range []Rate{Rate1, RateB, RateB | RateG, RateBPlus, RateAll} {
		got, err := ParseRate(r.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != r {
			t.Errorf("ParseRate(%q) = %s", r.String(), got)
		}
	}
	if _, err := ParseRate("1,3"); err == nil {
		t.Error("3 Mbps accepted")
	}
	if _, err := ParseRate("5.25"); err == nil {
		t.Error("5.25 Mbps accepted")
	}
	if r, err := ParseRate(""); err != nil || r != 0 {
		t.Error("empty rate list")
	}
}

func TestVariantText(t *testing.T) {
	var v Variant
	if err := v.UnmarshalText([]byte("ACX111")); err != nil || v != VariantACX111 {
		t.Fatalf("got %v %v", v, err)
	}
	b, _ := v.MarshalText()
	if string(b) != "acx111" {
		t.Errorf("marshal %q", b)
	}
	if err := v.UnmarshalText([]byte("acx200")); err == nil {
		t.Error("bad variant accepted")
	}
}

func TestRegDomain(t *testing.T) {
	if RegDomainETSI.Allows(14) || !RegDomainETSI.Allows(13) || !RegDomainMKK.Allows(14) {
		t.Error("channel masks")
	}
	if RegDomainFCC.ChannelMask() != 0x7ff {
		t.Errorf("FCC mask %#x", RegDomainFCC.ChannelMask())
	}
	if RegDomain(0x99).IsValid() || RegDomainIsrael.Allows(0) {
		t.Error("invalid domain")
	}
	var rd RegDomain
	if err := rd.UnmarshalText([]byte("etsi")); err != nil || rd != RegDomainETSI {
		t.Error("name parse")
	}
	if err := rd.UnmarshalText([]byte("0x41")); err != nil || rd != RegDomainMKK1 {
		t.Error("code parse")
	}
}

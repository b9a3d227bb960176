package acxfw

import "encoding/binary"

// MACMode is the firmware operating mode passed in JOIN.
type MACMode uint8

const (
	ModeAdhoc   MACMode = 0
	ModeSTA     MACMode = 2
	ModeAP      MACMode = 3
	ModeMonitor MACMode = 0xfe
	ModeOff     MACMode = 0xff
)

func (m MACMode) String() string {
	switch m {
	case ModeAdhoc:
		return "adhoc"
	case ModeSTA:
		return "managed"
	case ModeAP:
		return "master"
	case ModeMonitor:
		return "monitor"
	case ModeOff:
		return "off"
	}
	return "unknown"
}

// MaxESSIDLen is the 802.11 SSID length limit.
const MaxESSIDLen = 32

// joinHeaderLen is the fixed part of the JOIN payload preceding the ESSID.
const joinHeaderLen = 16

// JoinBSS is the CmdJoin payload.
//
//	0: BSSID (reversed)  6: BeaconInterval(16)  8: DTIM  9: rates (3 bytes, variant)
//	12: GenFrameTxRate  13: GenFrameModPre  14: MACMode  15: Channel  16: ESSIDLen  17: ESSID
type JoinBSS struct {
	BSSID          [6]byte
	BeaconInterval uint16
	DTIM           uint8
	BasicRates     Rate
	OperRates      Rate
	GenFrameTxRate uint8
	GenFrameModPre uint8
	MACMode        MACMode
	Channel        uint8
	ESSID          string
}

// Put writes the JOIN payload for variant v into dst and returns the command
// length, which counts only the used part of the ESSID.
func (j *JoinBSS) Put(v Variant, dst []byte) int {
	essid := j.ESSID
	if len(essid) > MaxESSIDLen {
		essid = essid[:MaxESSIDLen]
	}
	n := joinHeaderLen + 1 + len(essid)
	_ = dst[n-1]
	clear(dst[:n])
	for i := range j.BSSID {
		dst[i] = j.BSSID[len(j.BSSID)-1-i]
	}
	binary.LittleEndian.PutUint16(dst[6:], j.BeaconInterval)
	dst[8] = j.DTIM
	if v == VariantACX111 {
		binary.LittleEndian.PutUint16(dst[9:], uint16(j.BasicRates))
	} else {
		dst[9] = j.BasicRates.To5Bits()
		dst[10] = j.OperRates.To5Bits()
	}
	dst[12] = j.GenFrameTxRate
	dst[13] = j.GenFrameModPre
	dst[14] = uint8(j.MACMode)
	dst[15] = j.Channel
	dst[16] = uint8(len(essid))
	copy(dst[17:], essid)
	return n
}

// DecodeJoinBSS is the inverse of Put. ESSID length is taken from the payload.
func DecodeJoinBSS(v Variant, b []byte) (j JoinBSS) {
	_ = b[joinHeaderLen]
	for i := range j.BSSID {
		j.BSSID[i] = b[len(j.BSSID)-1-i]
	}
	j.BeaconInterval = binary.LittleEndian.Uint16(b[6:])
	j.DTIM = b[8]
	if v == VariantACX111 {
		j.BasicRates = Rate(binary.LittleEndian.Uint16(b[9:]))
	}
	j.GenFrameTxRate = b[12]
	j.GenFrameModPre = b[13]
	j.MACMode = MACMode(b[14])
	j.Channel = b[15]
	n := int(b[16])
	if 17+n <= len(b) {
		j.ESSID = string(b[17 : 17+n])
	}
	return j
}

// Scan options.
const (
	ScanOptActive  = 0x00
	ScanOptPassive = 0x01
	ScanOptBgMode  = 0x02
)

// ScanParams is the CmdScan payload. Layout differs per variant.
type ScanParams struct {
	Count         uint16
	Rate          uint8
	Options       uint8
	ChanDuration  uint16 // Time units per channel.
	MaxProbeDelay uint16
}

const (
	scanLen100 = 14
	scanLen111 = 38
)

// Put writes the scan payload for v into dst and returns its length.
//
//	ACX100: 0 count  2 start_chan  4 flags  6 max_rate  7 options  8 duration  10 probe_delay
//	ACX111: 0 count  2 chan_list_select  3 reserved  6 rate  7 options  8 duration  10 probe_delay  12 modulation  13 channel_list[25]
func (s *ScanParams) Put(v Variant, dst []byte) int {
	n := scanLen100
	if v == VariantACX111 {
		n = scanLen111
	}
	_ = dst[n-1]
	clear(dst[:n])
	binary.LittleEndian.PutUint16(dst[0:], s.Count)
	if v != VariantACX111 {
		binary.LittleEndian.PutUint16(dst[2:], 1) // Start at channel 1.
		binary.LittleEndian.PutUint16(dst[4:], 0x8000)
	}
	// ACX111 channel list select 0 means scan every allowed channel.
	dst[6] = s.Rate
	dst[7] = s.Options
	binary.LittleEndian.PutUint16(dst[8:], s.ChanDuration)
	binary.LittleEndian.PutUint16(dst[10:], s.MaxProbeDelay)
	return n
}

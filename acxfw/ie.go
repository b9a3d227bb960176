package acxfw

import (
	"encoding/binary"
	"strconv"
)

// IE is a firmware configuration information element id used with
// CmdConfigure and CmdInterrogate. Ids at or above 0x1000 mirror 802.11 MIB
// attributes.
type IE uint16

const (
	IETimer               IE = 0x0001 // ACX100 only.
	IEPowerMgmt           IE = 0x0002
	IEQueueConfig         IE = 0x0003
	IEBlockSize           IE = 0x0004 // ACX100 only.
	IEMemoryConfigOptions IE = 0x0005
	IERateFallback        IE = 0x0006
	IEWEPOptions          IE = 0x0007 // ACX100 only.
	IEMemoryMap           IE = 0x0008
	IEAssocID             IE = 0x000a
	IEConfigOptions       IE = 0x000c // ACX111 only.
	IEFWRev               IE = 0x000d
	IEFCSErrorCount       IE = 0x000e
	IEMediumUsage         IE = 0x000f
	IERxConfig            IE = 0x0010
	IEFirmwareStatistics  IE = 0x0013
	IEFeatureConfig       IE = 0x0015 // ACX111 only.
	IEKeyChoose           IE = 0x0016 // ACX111 only.

	IEDot11StationID       IE = 0x1001
	IEDot11BeaconPeriod    IE = 0x1003 // ACX100 only.
	IEDot11DTIMPeriod      IE = 0x1004 // ACX100 only.
	IEDot11ShortRetryLimit IE = 0x1005
	IEDot11LongRetryLimit  IE = 0x1006
	IEDot11WEPKeyWrite     IE = 0x1007
	IEDot11MSDULifetime    IE = 0x1008
	IEDot11GroupAddr       IE = 0x1009
	IEDot11RegDomain       IE = 0x100a
	IEDot11Antenna         IE = 0x100b
	IEDot11TxPower         IE = 0x100d
	IEDot11CCAMode         IE = 0x100e
	IEDot11EDThreshold     IE = 0x100f
	IEDot11WEPKeySet       IE = 0x1010
)

const ieDot11Base = 0x1000

// IEHeaderLen is the size of the type/length prefix of every IE buffer.
const IEHeaderLen = 4

var ieNames = map[IE]string{
	IETimer:                "TIMER",
	IEPowerMgmt:            "POWER_MGMT",
	IEQueueConfig:          "QUEUE_CONFIG",
	IEBlockSize:            "BLOCK_SIZE",
	IEMemoryConfigOptions:  "MEMORY_CONFIG_OPTIONS",
	IERateFallback:         "RATE_FALLBACK",
	IEWEPOptions:           "WEP_OPTIONS",
	IEMemoryMap:            "MEMORY_MAP",
	IEAssocID:              "ASSOC_ID",
	IEConfigOptions:        "CONFIG_OPTIONS",
	IEFWRev:                "FWREV",
	IEFCSErrorCount:        "FCS_ERROR_COUNT",
	IEMediumUsage:          "MEDIUM_USAGE",
	IERxConfig:             "RXCONFIG",
	IEFirmwareStatistics:   "FIRMWARE_STATISTICS",
	IEFeatureConfig:        "FEATURE_CONFIG",
	IEKeyChoose:            "KEY_CHOOSE",
	IEDot11StationID:       "DOT11_STATION_ID",
	IEDot11BeaconPeriod:    "DOT11_BEACON_PERIOD",
	IEDot11DTIMPeriod:      "DOT11_DTIM_PERIOD",
	IEDot11ShortRetryLimit: "DOT11_SHORT_RETRY_LIMIT",
	IEDot11LongRetryLimit:  "DOT11_LONG_RETRY_LIMIT",
	IEDot11WEPKeyWrite:     "DOT11_WEP_DEFAULT_KEY_WRITE",
	IEDot11MSDULifetime:    "DOT11_MAX_XMIT_MSDU_LIFETIME",
	IEDot11GroupAddr:       "DOT11_GROUP_ADDR",
	IEDot11RegDomain:       "DOT11_CURRENT_REG_DOMAIN",
	IEDot11Antenna:         "DOT11_CURRENT_ANTENNA",
	IEDot11TxPower:         "DOT11_TX_POWER_LEVEL",
	IEDot11CCAMode:         "DOT11_CURRENT_CCA_MODE",
	IEDot11EDThreshold:     "DOT11_ED_THRESHOLD",
	IEDot11WEPKeySet:       "DOT11_WEP_DEFAULT_KEY_SET",
}

func (ie IE) String() string {
	if s, ok := ieNames[ie]; ok {
		return s
	}
	return "IE(0x" + strconv.FormatUint(uint64(ie), 16) + ")"
}

// Payload lengths of each IE, not counting the 4 byte header. Firmware
// rejects configure/interrogate calls whose length does not match.
var (
	acx100IELen = [...]uint16{
		IETimer:               0x10,
		IEPowerMgmt:           0x06,
		IEQueueConfig:         0x1c,
		IEBlockSize:           0x02,
		IEMemoryConfigOptions: 0x14,
		IERateFallback:        0x01,
		IEWEPOptions:          0x03,
		IEMemoryMap:           0x28,
		IEAssocID:             0x02,
		IEFWRev:               0x18,
		IEFCSErrorCount:       0x04,
		IEMediumUsage:         0x08,
		IERxConfig:            0x04,
		IEFirmwareStatistics:  0x9c,
	}
	acx100Dot11IELen = [...]uint16{
		IEDot11StationID - ieDot11Base:       0x06,
		IEDot11BeaconPeriod - ieDot11Base:    0x02,
		IEDot11DTIMPeriod - ieDot11Base:      0x01,
		IEDot11ShortRetryLimit - ieDot11Base: 0x01,
		IEDot11LongRetryLimit - ieDot11Base:  0x01,
		IEDot11WEPKeyWrite - ieDot11Base:     0x20,
		IEDot11MSDULifetime - ieDot11Base:    0x04,
		IEDot11RegDomain - ieDot11Base:       0x02,
		IEDot11Antenna - ieDot11Base:         0x01,
		IEDot11TxPower - ieDot11Base:         0x01,
		IEDot11CCAMode - ieDot11Base:         0x01,
		IEDot11EDThreshold - ieDot11Base:     0x04,
		IEDot11WEPKeySet - ieDot11Base:       0x01,
	}
	acx111IELen = [...]uint16{
		IEPowerMgmt:           0x08,
		IEQueueConfig:         0x1c,
		IEMemoryConfigOptions: 0x14,
		IERateFallback:        0x01,
		IEMemoryMap:           0x28,
		IEAssocID:             0x02,
		IEConfigOptions:       0x14c,
		IEFWRev:               0x18,
		IEFCSErrorCount:       0x04,
		IEMediumUsage:         0x08,
		IERxConfig:            0x04,
		IEFirmwareStatistics:  0x9c,
		IEFeatureConfig:       0x08,
		IEKeyChoose:           0x04,
	}
	acx111Dot11IELen = [...]uint16{
		IEDot11StationID - ieDot11Base:       0x06,
		IEDot11ShortRetryLimit - ieDot11Base: 0x01,
		IEDot11LongRetryLimit - ieDot11Base:  0x01,
		IEDot11WEPKeyWrite - ieDot11Base:     0x20,
		IEDot11MSDULifetime - ieDot11Base:    0x04,
		IEDot11GroupAddr - ieDot11Base:       0x04,
		IEDot11RegDomain - ieDot11Base:       0x02,
		IEDot11Antenna - ieDot11Base:         0x02,
		IEDot11TxPower - ieDot11Base:         0x01,
		IEDot11CCAMode - ieDot11Base:         0x01,
		IEDot11EDThreshold - ieDot11Base:     0x04,
		IEDot11WEPKeySet - ieDot11Base:       0x01,
	}
)

// IELen returns the payload length the variant's firmware expects for ie.
// ok is false for IEs the variant does not implement.
func (v Variant) IELen(ie IE) (n int, ok bool) {
	var table []uint16
	idx := int(ie)
	switch {
	case v == VariantACX100 && ie < ieDot11Base:
		table = acx100IELen[:]
	case v == VariantACX100:
		table, idx = acx100Dot11IELen[:], idx-ieDot11Base
	case v == VariantACX111 && ie < ieDot11Base:
		table = acx111IELen[:]
	case v == VariantACX111:
		table, idx = acx111Dot11IELen[:], idx-ieDot11Base
	default:
		return 0, false
	}
	if idx >= len(table) || table[idx] == 0 {
		return 0, false
	}
	return int(table[idx]), true
}

// IEHeader is the type/length prefix of a configure/interrogate buffer.
type IEHeader struct {
	Type IE
	Len  uint16
}

func DecodeIEHeader(b []byte) (hdr IEHeader) {
	_ = b[IEHeaderLen-1]
	hdr.Type = IE(binary.LittleEndian.Uint16(b))
	hdr.Len = binary.LittleEndian.Uint16(b[2:])
	return hdr
}

// Put puts all 4 bytes of the header in dst. Panics if dst is shorter than 4 bytes.
func (h *IEHeader) Put(dst []byte) {
	_ = dst[IEHeaderLen-1]
	binary.LittleEndian.PutUint16(dst, uint16(h.Type))
	binary.LittleEndian.PutUint16(dst[2:], h.Len)
}

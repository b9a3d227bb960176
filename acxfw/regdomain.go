package acxfw

import "strconv"

// RegDomain is a regulatory domain code configured through IEDot11RegDomain.
type RegDomain uint8

const (
	RegDomainFCC    RegDomain = 0x10
	RegDomainDOC    RegDomain = 0x20
	RegDomainETSI   RegDomain = 0x30
	RegDomainSpain  RegDomain = 0x31
	RegDomainFrance RegDomain = 0x32
	RegDomainMKK    RegDomain = 0x40
	RegDomainMKK1   RegDomain = 0x41
	RegDomainIsrael RegDomain = 0x51
)

// ChannelMask returns the allowed 2.4GHz channels, bit n-1 set for channel n.
// Unknown domains allow nothing.
func (rd RegDomain) ChannelMask() uint16 {
	switch rd {
	case RegDomainFCC, RegDomainDOC:
		return chanRange(1, 11)
	case RegDomainETSI:
		return chanRange(1, 13)
	case RegDomainSpain:
		return chanRange(10, 11)
	case RegDomainFrance:
		return chanRange(10, 13)
	case RegDomainMKK:
		return chanRange(14, 14)
	case RegDomainMKK1:
		return chanRange(1, 14)
	case RegDomainIsrael:
		return chanRange(3, 9)
	}
	return 0
}

// Allows reports whether channel is usable in the domain.
func (rd RegDomain) Allows(channel uint8) bool {
	return channel >= 1 && channel <= 14 && rd.ChannelMask()&(1<<(channel-1)) != 0
}

// IsValid reports whether rd is a known domain.
func (rd RegDomain) IsValid() bool { return rd.ChannelMask() != 0 }

func (rd RegDomain) String() string {
	switch rd {
	case RegDomainFCC:
		return "FCC"
	case RegDomainDOC:
		return "DOC"
	case RegDomainETSI:
		return "ETSI"
	case RegDomainSpain:
		return "Spain"
	case RegDomainFrance:
		return "France"
	case RegDomainMKK:
		return "MKK"
	case RegDomainMKK1:
		return "MKK1"
	case RegDomainIsrael:
		return "Israel"
	}
	return "RegDomain(0x" + strconv.FormatUint(uint64(rd), 16) + ")"
}

func chanRange(lo, hi uint8) (mask uint16) {
	for c := lo; c <= hi; c++ {
		mask |= 1 << (c - 1)
	}
	return mask
}

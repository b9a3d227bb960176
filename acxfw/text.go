package acxfw

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errUnknownVariant = errors.New("unknown chip variant")
	errUnknownRate    = errors.New("unknown rate")
)

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	if !v.IsValid() {
		return nil, errUnknownVariant
	}
	return []byte(strings.ToLower(v.String())), nil
}

// UnmarshalText accepts "acx100" or "acx111", case insensitive.
func (v *Variant) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "acx100":
		*v = VariantACX100
	case "acx111":
		*v = VariantACX111
	default:
		return errUnknownVariant
	}
	return nil
}

// ParseRate parses a comma separated list of rates in Mbps as produced by
// Rate.String, e.g. "1,2,5.5,11".
func ParseRate(s string) (r Rate, err error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return 0, nil
	}
	for _, f := range strings.Split(s, ",") {
		mbps, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, err
		}
		bit, ok := RateFromDot11(uint8(mbps * 2))
		if !ok || float64(int(mbps*2)) != mbps*2 {
			return 0, errUnknownRate
		}
		r |= bit
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rate) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler using ParseRate.
func (r *Rate) UnmarshalText(b []byte) error {
	v, err := ParseRate(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

var regDomains = [...]RegDomain{
	RegDomainFCC, RegDomainDOC, RegDomainETSI, RegDomainSpain,
	RegDomainFrance, RegDomainMKK, RegDomainMKK1, RegDomainIsrael,
}

// UnmarshalText accepts a domain name such as "ETSI" or its numeric code.
func (rd *RegDomain) UnmarshalText(b []byte) error {
	s := string(b)
	for _, d := range regDomains {
		if strings.EqualFold(s, d.String()) {
			*rd = d
			return nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return err
	}
	*rd = RegDomain(v)
	return nil
}

package acx

import (
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/soypat/acx/acxfw"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Config configures a Device. The zero value of every field except Variant
// selects a default; see Normalize.
type Config struct {
	Variant acxfw.Variant `yaml:"variant"`
	RadioID uint8         `yaml:"radio_id"`
	Mode    Mode          `yaml:"mode"`
	// ESSID is the network to join or, in AP mode, to serve. Empty joins any
	// network in managed and ad-hoc mode.
	ESSID string `yaml:"essid"`
	// BSSID restricts joining to one access point. Empty allows any.
	BSSID string `yaml:"bssid"`
	// Channel is the home channel. Scan candidates on it are preferred and
	// ad-hoc networks and access points are created on it.
	Channel   uint8           `yaml:"channel"`
	RegDomain acxfw.RegDomain `yaml:"reg_domain"`
	Auth      AuthAlg         `yaml:"auth"`
	// Rates is the operational rate set offered; BasicRates the subset
	// required of peers in networks we create.
	Rates          acxfw.Rate `yaml:"rates"`
	BasicRates     acxfw.Rate `yaml:"basic_rates"`
	BeaconInterval uint16     `yaml:"beacon_interval"`
	DTIM           uint8      `yaml:"dtim"`
	ListenInterval uint16     `yaml:"listen_interval"`
	ShortPreamble  bool       `yaml:"short_preamble"`

	RateControl struct {
		FallbackThreshold uint8 `yaml:"fallback_threshold"`
		StepupThreshold   uint8 `yaml:"stepup_threshold"`
		IgnoreAfterChange uint8 `yaml:"ignore_after_change"`
	} `yaml:"rate_control"`

	Peers struct {
		Capacity int `yaml:"capacity"`
		Buckets  int `yaml:"buckets"`
	} `yaml:"peers"`

	RingSize   int           `yaml:"ring_size"`
	CmdTimeout time.Duration `yaml:"cmd_timeout"`

	Logger *slog.Logger `yaml:"-"`

	bssid [6]byte
}

// Defaults.
const (
	defaultChannel        = 1
	defaultBeaconInterval = 100
	defaultDTIM           = 2
	defaultListenInterval = 10
	defaultPeerCapacity   = 32
	defaultPeerBuckets    = 64
	defaultRingSize       = 16
	maxRingSize           = 256
	defaultCmdTimeout     = 1000 * time.Millisecond
)

// DefaultConfig returns a managed-mode configuration for variant v.
func DefaultConfig(v acxfw.Variant) Config {
	cfg := Config{Variant: v}
	cfg.Normalize()
	return cfg
}

// Validate reports the first invalid field without modifying cfg.
func (cfg *Config) Validate() error {
	switch {
	case !cfg.Variant.IsValid():
		return errors.Errorf("invalid chip variant %s", cfg.Variant)
	case cfg.Mode > ModeAP:
		return errors.Errorf("invalid mode %s", cfg.Mode)
	case len(cfg.ESSID) > acxfw.MaxESSIDLen:
		return errors.Errorf("essid longer than %d bytes", acxfw.MaxESSIDLen)
	case cfg.Mode == ModeAP && cfg.ESSID == "":
		return errors.New("ap mode requires an essid")
	case cfg.Channel > 14:
		return errors.Errorf("invalid channel %d", cfg.Channel)
	case cfg.RegDomain != 0 && !cfg.RegDomain.IsValid():
		return errors.Errorf("unknown regulatory domain %s", cfg.RegDomain)
	case cfg.Rates&^acxfw.RateAll != 0 || cfg.BasicRates&^acxfw.RateAll != 0:
		return errors.New("invalid rate bits")
	case cfg.Rates != 0 && cfg.BasicRates&^cfg.Rates != 0:
		return errors.New("basic rates not a subset of rates")
	case cfg.Peers.Capacity < 0 || cfg.Peers.Buckets < 0:
		return errors.New("negative peer table size")
	case cfg.RingSize < 0 || cfg.RingSize > maxRingSize:
		return errors.Errorf("ring size %d out of range", cfg.RingSize)
	case cfg.CmdTimeout < 0:
		return errors.New("negative command timeout")
	}
	if cfg.BSSID != "" {
		mac, err := net.ParseMAC(cfg.BSSID)
		if err != nil {
			return errors.Wrap(err, "invalid bssid")
		} else if len(mac) != 6 {
			return errors.Errorf("bssid %s is not a 48 bit address", cfg.BSSID)
		}
	}
	if cfg.Channel != 0 && cfg.RegDomain != 0 && !cfg.RegDomain.Allows(cfg.Channel) {
		return errors.Errorf("channel %d not allowed in %s", cfg.Channel, cfg.RegDomain)
	}
	return nil
}

// Normalize fills unset fields with defaults. It assumes Validate passed.
func (cfg *Config) Normalize() {
	if cfg.RegDomain == 0 {
		cfg.RegDomain = acxfw.RegDomainETSI
	}
	if cfg.Channel == 0 {
		cfg.Channel = defaultChannel
	}
	if cfg.Rates == 0 {
		cfg.Rates = acxfw.RateB
		if cfg.Variant == acxfw.VariantACX111 {
			cfg.Rates |= acxfw.RateG
		}
	}
	if cfg.BasicRates == 0 {
		cfg.BasicRates = cfg.Rates & (acxfw.Rate1 | acxfw.Rate2)
		if cfg.BasicRates == 0 {
			cfg.BasicRates = cfg.Rates.Lowest()
		}
	}
	if cfg.BeaconInterval == 0 {
		cfg.BeaconInterval = defaultBeaconInterval
	}
	if cfg.DTIM == 0 {
		cfg.DTIM = defaultDTIM
	}
	if cfg.ListenInterval == 0 {
		cfg.ListenInterval = defaultListenInterval
	}
	rc := &cfg.RateControl
	if rc.FallbackThreshold == 0 {
		rc.FallbackThreshold = 3
	}
	if rc.StepupThreshold == 0 {
		rc.StepupThreshold = 10
	}
	if rc.IgnoreAfterChange == 0 {
		rc.IgnoreAfterChange = 3
	}
	if cfg.Peers.Capacity == 0 {
		cfg.Peers.Capacity = defaultPeerCapacity
	}
	if cfg.Peers.Buckets == 0 {
		cfg.Peers.Buckets = defaultPeerBuckets
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = defaultRingSize
	}
	if cfg.CmdTimeout == 0 {
		cfg.CmdTimeout = defaultCmdTimeout
	}
	if cfg.BSSID != "" {
		mac, _ := net.ParseMAC(cfg.BSSID)
		copy(cfg.bssid[:], mac)
	}
}

// LoadConfig reads a YAML configuration from path on fs, validates and
// normalizes it.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	var cfg Config
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "parsing %s", path)
	}
	err = cfg.Validate()
	if err != nil {
		return cfg, errors.Wrapf(err, "validating %s", path)
	}
	cfg.Normalize()
	return cfg, nil
}

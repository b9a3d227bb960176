package acx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/ring"
)

var (
	ErrDeviceNotReady = errors.New("acx: device not ready")
	ErrCommandTimeout = errors.New("acx: command timeout")
	ErrRingFull       = ring.ErrRingFull
	ErrRingCorrupt    = ring.ErrRingCorrupt
	ErrNotAssociated  = errors.New("acx: not associated")
	ErrFrameTooLarge  = errors.New("acx: frame too large")
)

// CommandError is returned when the firmware completes a command with a
// status other than success.
type CommandError struct {
	Op     acxfw.Opcode
	IE     acxfw.IE // Zero unless Op is a configure or interrogate.
	Status acxfw.CmdStatus
}

func (e *CommandError) Error() string {
	if e.IE != 0 {
		return fmt.Sprintf("acx: %s %s: %s", e.Op, e.IE, e.Status)
	}
	return fmt.Sprintf("acx: %s: %s", e.Op, e.Status)
}

// Rejected returns the firmware status code.
func (e *CommandError) Rejected() acxfw.CmdStatus { return e.Status }

// AssociationError describes a refused authentication or association.
type AssociationError struct {
	Status uint16
	Desc   string
}

func (e *AssociationError) Error() string {
	return "acx: association refused: " + e.Desc + " (" + strconv.Itoa(int(e.Status)) + ")"
}

func newAssociationError(status layers.Dot11Status) *AssociationError {
	return &AssociationError{Status: uint16(status), Desc: acxfw.Dot11StatusString(uint16(status))}
}

// MTU is the largest Ethernet frame accepted by SendEth, header excluded.
const MTU = 1500

const maxEthFrame = MTU + 14

// Status is the association state of the device.
type Status uint8

const (
	StatusStopped Status = iota
	StatusScanning
	StatusWaitAuth
	StatusAuthenticated
	StatusAssociated
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusScanning:
		return "SCANNING"
	case StatusWaitAuth:
		return "WAIT_AUTH"
	case StatusAuthenticated:
		return "AUTHENTICATED"
	case StatusAssociated:
		return "ASSOCIATED"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Mode is the network role of the device.
type Mode uint8

const (
	ModeManaged Mode = iota
	ModeAdhoc
	ModeAP
)

func (m Mode) String() string {
	switch m {
	case ModeManaged:
		return "managed"
	case ModeAdhoc:
		return "adhoc"
	case ModeAP:
		return "ap"
	}
	return "Mode(" + strconv.Itoa(int(m)) + ")"
}

// MACMode returns the firmware mode used in JOIN.
func (m Mode) MACMode() acxfw.MACMode {
	switch m {
	case ModeAdhoc:
		return acxfw.ModeAdhoc
	case ModeAP:
		return acxfw.ModeAP
	}
	return acxfw.ModeSTA
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "managed", "sta", "station":
		*m = ModeManaged
	case "adhoc", "ad-hoc", "ibss":
		*m = ModeAdhoc
	case "ap", "master":
		*m = ModeAP
	default:
		return errors.New("acx: unknown mode " + strconv.Quote(string(b)))
	}
	return nil
}

// AuthAlg is the 802.11 authentication algorithm.
type AuthAlg uint8

const (
	AuthOpen AuthAlg = iota
	AuthSharedKey
)

func (a AuthAlg) String() string {
	if a == AuthSharedKey {
		return "shared"
	}
	return "open"
}

func (a AuthAlg) dot11() layers.Dot11Algorithm {
	if a == AuthSharedKey {
		return layers.Dot11AlgorithmSharedKey
	}
	return layers.Dot11AlgorithmOpen
}

func (a AuthAlg) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AuthAlg) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "open", "":
		*a = AuthOpen
	case "shared", "sharedkey", "shared-key":
		*a = AuthSharedKey
	default:
		return errors.New("acx: unknown auth algorithm " + strconv.Quote(string(b)))
	}
	return nil
}

// Association timing.
const (
	scanRetryPeriod   = 1000 * time.Millisecond
	maxScanRetries    = 7
	authFirstPeriod   = 1500 * time.Millisecond
	authRetryPeriod   = 2500 * time.Millisecond
	maxAuthRetries    = 10
	scanInProgressMax = 10 * time.Second
	// apIgnoreCount is the number of TX reports ignored after a station
	// associates to us.
	apIgnoreCount = 16
	maxAID        = 2007
)

// Command timing.
const (
	cmdIdleTimeout = 200 * time.Millisecond
	cmdIdleBackoff = 8 * time.Millisecond
	cmdMinTimeout  = 10 * time.Millisecond
	cmdMaxTimeout  = 1200 * time.Millisecond
	cmdPollPeriod  = time.Millisecond
)

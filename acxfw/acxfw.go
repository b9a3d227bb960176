// package acxfw implements the host side of the Texas Instruments ACX100/ACX111
// firmware interface: command opcodes, configuration IEs, register map,
// descriptor layouts and rate encodings.
package acxfw

import (
	"encoding/binary"
	"strconv"
)

// Variant identifies the chip family. Register map, IE lengths and some
// command payloads differ between variants.
type Variant uint8

const (
	variantUndefined Variant = iota
	VariantACX100
	VariantACX111
)

func (v Variant) IsValid() bool { return v == VariantACX100 || v == VariantACX111 }

func (v Variant) String() string {
	switch v {
	case VariantACX100:
		return "ACX100"
	case VariantACX111:
		return "ACX111"
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}

// Opcode is a firmware command written to the command mailbox.
type Opcode uint16

const (
	CmdReset               Opcode = 0x00
	CmdInterrogate         Opcode = 0x01
	CmdConfigure           Opcode = 0x02
	CmdEnableRx            Opcode = 0x03
	CmdEnableTx            Opcode = 0x04
	CmdDisableRx           Opcode = 0x05
	CmdDisableTx           Opcode = 0x06
	CmdFlushQueue          Opcode = 0x07
	CmdScan                Opcode = 0x08
	CmdStopScan            Opcode = 0x09
	CmdConfigTIM           Opcode = 0x0a
	CmdJoin                Opcode = 0x0b
	CmdWEPMgmt             Opcode = 0x0c
	CmdHalt                Opcode = 0x0e
	CmdSleep               Opcode = 0x0f
	CmdWake                Opcode = 0x10
	CmdInitMemory          Opcode = 0x12
	CmdConfigBeacon        Opcode = 0x13
	CmdConfigProbeResponse Opcode = 0x14
	CmdConfigNullData      Opcode = 0x15
	CmdConfigProbeRequest  Opcode = 0x16
	CmdTest                Opcode = 0x17
	CmdRadioInit           Opcode = 0x18
	CmdRadioCalib          Opcode = 0x19 // ACX111 only.
)

func (op Opcode) String() string {
	switch op {
	case CmdReset:
		return "RESET"
	case CmdInterrogate:
		return "INTERROGATE"
	case CmdConfigure:
		return "CONFIGURE"
	case CmdEnableRx:
		return "ENABLE_RX"
	case CmdEnableTx:
		return "ENABLE_TX"
	case CmdDisableRx:
		return "DISABLE_RX"
	case CmdDisableTx:
		return "DISABLE_TX"
	case CmdFlushQueue:
		return "FLUSH_QUEUE"
	case CmdScan:
		return "SCAN"
	case CmdStopScan:
		return "STOP_SCAN"
	case CmdConfigTIM:
		return "CONFIG_TIM"
	case CmdJoin:
		return "JOIN"
	case CmdWEPMgmt:
		return "WEP_MGMT"
	case CmdHalt:
		return "HALT"
	case CmdSleep:
		return "SLEEP"
	case CmdWake:
		return "WAKE"
	case CmdInitMemory:
		return "INIT_MEMORY"
	case CmdConfigBeacon:
		return "CONFIG_BEACON"
	case CmdConfigProbeResponse:
		return "CONFIG_PROBE_RESPONSE"
	case CmdConfigNullData:
		return "CONFIG_NULL_DATA"
	case CmdConfigProbeRequest:
		return "CONFIG_PROBE_REQUEST"
	case CmdTest:
		return "TEST"
	case CmdRadioInit:
		return "RADIOINIT"
	case CmdRadioCalib:
		return "RADIOCALIB"
	}
	return "Opcode(0x" + strconv.FormatUint(uint64(op), 16) + ")"
}

// Supported reports whether the variant's firmware implements op.
func (v Variant) Supported(op Opcode) bool {
	switch op {
	case CmdRadioCalib:
		return v == VariantACX111
	case CmdWEPMgmt:
		return v == VariantACX100
	}
	return v.IsValid()
}

// CmdStatus is the status half of the command mailbox word.
type CmdStatus uint16

const (
	StatusIdle CmdStatus = iota
	StatusSuccess
	StatusUnknownCommand
	StatusInvalidIE
	StatusChannelRejected
	StatusChannelInvalidRegDomain
	StatusMACInvalid
	StatusReadOnlyIE
	StatusRejected
	StatusAlreadyAsleep
	StatusTxInProgress
	StatusAlreadyAwake
	StatusWriteOnly
	StatusRxInProgress
	StatusInvalidParameter
	StatusScanInProgress
	StatusFailed
)

var cmdStatusStr = [...]string{
	StatusIdle:                    "Idle",
	StatusSuccess:                 "Success",
	StatusUnknownCommand:          "Unknown Command",
	StatusInvalidIE:               "Invalid Information Element",
	StatusChannelRejected:         "Channel rejected",
	StatusChannelInvalidRegDomain: "Channel invalid in current regulatory domain",
	StatusMACInvalid:              "MAC invalid",
	StatusReadOnlyIE:              "Command rejected (read-only information element)",
	StatusRejected:                "Command rejected",
	StatusAlreadyAsleep:           "Already asleep",
	StatusTxInProgress:            "TX in progress",
	StatusAlreadyAwake:            "Already awake",
	StatusWriteOnly:               "Write only",
	StatusRxInProgress:            "RX in progress",
	StatusInvalidParameter:        "Invalid parameter",
	StatusScanInProgress:          "Scan in progress",
	StatusFailed:                  "Failed",
}

func (s CmdStatus) String() string {
	if int(s) < len(cmdStatusStr) {
		return cmdStatusStr[s]
	}
	return "unknown status " + strconv.Itoa(int(s))
}

// Command mailbox layout: a 32 bit word holding opcode (low half) and
// status (high half) followed by the parameter area.
const (
	CmdHeaderLen = 4
	CmdAreaSize  = 0x200
	CmdParamSize = CmdAreaSize - CmdHeaderLen
)

// PutCmdWord writes the mailbox word for op and status into b.
func PutCmdWord(b []byte, op Opcode, status CmdStatus) {
	binary.LittleEndian.PutUint32(b, uint32(op)|uint32(status)<<16)
}

// DecodeCmdWord splits the mailbox word into its opcode and status.
func DecodeCmdWord(word uint32) (Opcode, CmdStatus) {
	return Opcode(word & 0xffff), CmdStatus(word >> 16)
}

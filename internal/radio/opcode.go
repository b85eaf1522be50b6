package radio

import (
	"fmt"
	"sort"
	"strings"
)

// Opcode identifies the operation a Command or CompletionEvent represents.
// A completion always carries the opcode of the command that produced it.
type Opcode int

const (
	OpUnknown Opcode = iota

	// Logical channels and SIM I/O.
	OpOpenChannel
	OpCloseChannel
	OpTransmitAPDULogicalChannel
	OpTransmitAPDUBasicChannel
	OpExchangeSimIO
	OpSendEnvelope
	OpHandlePinMMI
	OpHandleUSSD
	OpGetOpenChannels

	// Network type and selection.
	OpGetPreferredNetworkType
	OpSetPreferredNetworkType
	OpGetAllowedNetworkTypesBitmask
	OpSetAllowedNetworkTypes
	OpGetCachedAllowedNetworkTypes
	OpPerformNetworkScan
	OpSetNetworkSelectionManual
	OpSetNetworkSelectionAutomatic
	OpGetNetworkSelectionMode
	OpGetForbiddenPLMNs
	OpSetForbiddenPLMNs
	OpSetSystemSelectionChannels
	OpGetSystemSelectionChannels
	OpSetNRDualConnectivity
	OpIsNRDualConnectivityEnabled
	OpSetVoNREnabled
	OpIsVoNREnabled
	OpGetCellLocation
	OpRequestCellInfoUpdate
	OpSetSignalStrengthReporting
	OpClearSignalStrengthReporting

	// Carrier restrictions.
	OpSetAllowedCarriers
	OpGetAllowedCarriers

	// Modem control.
	OpGetModemActivityInfo
	OpEnableModem
	OpGetModemStatus
	OpResetModemConfig
	OpEraseModemConfig
	OpRebootModem
	OpNVReadItem
	OpNVWriteItem
	OpNVWriteCDMAPRL
	OpSetRadioPower
	OpGetRadioHALVersion
	OpSetSimPower
	OpSetDataThrottling
	OpGetSlicingConfig
	OpPrepareUnattendedReboot
	OpSwitchSlots
	OpGetSlotMapping
	OpSetVoiceServiceStateOverride

	// Supplementary services.
	OpGetCallForwarding
	OpSetCallForwarding
	OpGetCallWaiting
	OpSetCallWaiting
	OpGetCLIR
	OpSetCLIR

	// CDMA.
	OpGetCDMARoamingMode
	OpSetCDMARoamingMode
	OpSetCDMASubscriptionMode

	// ICC lock.
	OpSetIccLockEnabled
	OpChangeIccLockPassword

	opSentinel
)

var opcodeNames = map[Opcode]string{
	OpUnknown:                       "UNKNOWN",
	OpOpenChannel:                   "OPEN_CHANNEL",
	OpCloseChannel:                  "CLOSE_CHANNEL",
	OpTransmitAPDULogicalChannel:    "TRANSMIT_APDU_LOGICAL_CHANNEL",
	OpTransmitAPDUBasicChannel:      "TRANSMIT_APDU_BASIC_CHANNEL",
	OpExchangeSimIO:                 "EXCHANGE_SIM_IO",
	OpSendEnvelope:                  "SEND_ENVELOPE",
	OpHandlePinMMI:                  "HANDLE_PIN_MMI",
	OpHandleUSSD:                    "HANDLE_USSD",
	OpGetOpenChannels:               "GET_OPEN_CHANNELS",
	OpGetPreferredNetworkType:       "GET_PREFERRED_NETWORK_TYPE",
	OpSetPreferredNetworkType:       "SET_PREFERRED_NETWORK_TYPE",
	OpGetAllowedNetworkTypesBitmask: "GET_ALLOWED_NETWORK_TYPES_BITMASK",
	OpSetAllowedNetworkTypes:        "SET_ALLOWED_NETWORK_TYPES",
	OpGetCachedAllowedNetworkTypes:  "GET_CACHED_ALLOWED_NETWORK_TYPES",
	OpPerformNetworkScan:            "PERFORM_NETWORK_SCAN",
	OpSetNetworkSelectionManual:     "SET_NETWORK_SELECTION_MANUAL",
	OpSetNetworkSelectionAutomatic:  "SET_NETWORK_SELECTION_AUTOMATIC",
	OpGetNetworkSelectionMode:       "GET_NETWORK_SELECTION_MODE",
	OpGetForbiddenPLMNs:             "GET_FORBIDDEN_PLMNS",
	OpSetForbiddenPLMNs:             "SET_FORBIDDEN_PLMNS",
	OpSetSystemSelectionChannels:    "SET_SYSTEM_SELECTION_CHANNELS",
	OpGetSystemSelectionChannels:    "GET_SYSTEM_SELECTION_CHANNELS",
	OpSetNRDualConnectivity:         "SET_NR_DUAL_CONNECTIVITY",
	OpIsNRDualConnectivityEnabled:   "IS_NR_DUAL_CONNECTIVITY_ENABLED",
	OpSetVoNREnabled:                "SET_VONR_ENABLED",
	OpIsVoNREnabled:                 "IS_VONR_ENABLED",
	OpGetCellLocation:               "GET_CELL_LOCATION",
	OpRequestCellInfoUpdate:         "REQUEST_CELL_INFO_UPDATE",
	OpSetSignalStrengthReporting:    "SET_SIGNAL_STRENGTH_REPORTING",
	OpClearSignalStrengthReporting:  "CLEAR_SIGNAL_STRENGTH_REPORTING",
	OpSetAllowedCarriers:            "SET_ALLOWED_CARRIERS",
	OpGetAllowedCarriers:            "GET_ALLOWED_CARRIERS",
	OpGetModemActivityInfo:          "GET_MODEM_ACTIVITY_INFO",
	OpEnableModem:                   "ENABLE_MODEM",
	OpGetModemStatus:                "GET_MODEM_STATUS",
	OpResetModemConfig:              "RESET_MODEM_CONFIG",
	OpEraseModemConfig:              "ERASE_MODEM_CONFIG",
	OpRebootModem:                   "REBOOT_MODEM",
	OpNVReadItem:                    "NV_READ_ITEM",
	OpNVWriteItem:                   "NV_WRITE_ITEM",
	OpNVWriteCDMAPRL:                "NV_WRITE_CDMA_PRL",
	OpSetRadioPower:                 "SET_RADIO_POWER",
	OpGetRadioHALVersion:            "GET_RADIO_HAL_VERSION",
	OpSetSimPower:                   "SET_SIM_POWER",
	OpSetDataThrottling:             "SET_DATA_THROTTLING",
	OpGetSlicingConfig:              "GET_SLICING_CONFIG",
	OpPrepareUnattendedReboot:       "PREPARE_UNATTENDED_REBOOT",
	OpSwitchSlots:                   "SWITCH_SLOTS",
	OpGetSlotMapping:                "GET_SLOT_MAPPING",
	OpSetVoiceServiceStateOverride:  "SET_VOICE_SERVICE_STATE_OVERRIDE",
	OpGetCallForwarding:             "GET_CALL_FORWARDING",
	OpSetCallForwarding:             "SET_CALL_FORWARDING",
	OpGetCallWaiting:                "GET_CALL_WAITING",
	OpSetCallWaiting:                "SET_CALL_WAITING",
	OpGetCLIR:                       "GET_CLIR",
	OpSetCLIR:                       "SET_CLIR",
	OpGetCDMARoamingMode:            "GET_CDMA_ROAMING_MODE",
	OpSetCDMARoamingMode:            "SET_CDMA_ROAMING_MODE",
	OpSetCDMASubscriptionMode:       "SET_CDMA_SUBSCRIPTION_MODE",
	OpSetIccLockEnabled:             "SET_ICC_LOCK_ENABLED",
	OpChangeIccLockPassword:         "CHANGE_ICC_LOCK_PASSWORD",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// String returns the canonical upper-snake name of the opcode.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OPCODE(%d)", int(o))
}

// Valid reports whether o names a real operation.
func (o Opcode) Valid() bool {
	return o > OpUnknown && o < opSentinel
}

// MarshalText renders the opcode by name so traces and scripts stay readable.
func (o Opcode) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses an opcode name.
func (o *Opcode) UnmarshalText(text []byte) error {
	op, err := ParseOpcode(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// ParseOpcode resolves a name such as "OPEN_CHANNEL" (case-insensitive,
// dashes accepted) to its Opcode.
func ParseOpcode(name string) (Opcode, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	if op, ok := opcodesByName[key]; ok && op.Valid() {
		return op, nil
	}
	return OpUnknown, fmt.Errorf("unknown opcode %q", name)
}

// Opcodes returns every valid opcode sorted by name.
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeNames))
	for op := range opcodeNames {
		if op.Valid() {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].String() < ops[j].String() })
	return ops
}

package engine

import (
	"slices"
	"strings"

	"github.com/roach88/phonebridge/internal/radio"
)

// defaultHandlers builds the opcode table. Every opcode in the radio
// registry has exactly one entry.
func defaultHandlers() map[radio.Opcode]handler {
	return map[radio.Opcode]handler{
		// Logical channels and SIM I/O.
		radio.OpOpenChannel:                args[radio.OpenChannelArgs](handler{shape: shapeOpenChannel}),
		radio.OpCloseChannel:               args[radio.CloseChannelArgs](handler{shape: shapeCloseChannel}),
		radio.OpTransmitAPDULogicalChannel: args[radio.APDUArgs](handler{shape: shapeIccIO}),
		radio.OpTransmitAPDUBasicChannel:   args[radio.APDUArgs](handler{shape: shapeIccIO}),
		radio.OpExchangeSimIO:              args[radio.SimIOArgs](handler{shape: shapeIccIO}),
		radio.OpSendEnvelope:               args[radio.EnvelopeArgs](value[string]()),
		radio.OpHandlePinMMI:               args[radio.DialArgs](local(localPinMMI)),
		radio.OpHandleUSSD:                 args[radio.USSDArgs](value[string]()),
		radio.OpGetOpenChannels:            noArgs(local(localOpenChannels)),

		// Network selection and radio access.
		radio.OpGetPreferredNetworkType:       noArgs(value[int]()),
		radio.OpSetPreferredNetworkType:       args[radio.NetworkTypeArgs](ack()),
		radio.OpGetAllowedNetworkTypesBitmask: noArgs(handler{shape: shapeAllowedNetworkTypesBitmask}),
		radio.OpSetAllowedNetworkTypes:        args[radio.AllowedNetworkTypesArgs](ackThen(applyAllowedNetworkTypes)),
		radio.OpGetCachedAllowedNetworkTypes:  args[radio.ReasonArgs](local(localCachedAllowedNetworkTypes)),
		radio.OpPerformNetworkScan:            noArgs(handler{shape: shapeStrings}),
		radio.OpSetNetworkSelectionManual:     args[radio.ManualSelectionArgs](ack()),
		radio.OpSetNetworkSelectionAutomatic:  noArgs(ack()),
		radio.OpGetNetworkSelectionMode:       noArgs(value[int]()),
		radio.OpGetForbiddenPLMNs:             args[radio.ForbiddenPLMNArgs](handler{shape: shapeGetForbiddenPLMNs}),
		radio.OpSetForbiddenPLMNs:             args[radio.SetForbiddenPLMNArgs](handler{shape: shapeSetForbiddenPLMNs}),
		radio.OpSetSystemSelectionChannels:    args[radio.ChannelSpecArgs](ack()),
		radio.OpGetSystemSelectionChannels:    noArgs(handler{shape: shapeStrings}),
		radio.OpSetNRDualConnectivity:         args[radio.StateArgs](resultCode()),
		radio.OpIsNRDualConnectivityEnabled:   noArgs(value[bool]()),
		radio.OpSetVoNREnabled:                args[radio.ToggleArgs](resultCode()),
		radio.OpIsVoNREnabled:                 noArgs(value[bool]()),
		radio.OpGetCellLocation:               noArgs(value[string]()),
		radio.OpRequestCellInfoUpdate:         noArgs(handler{shape: shapeStrings}),
		radio.OpSetSignalStrengthReporting:    args[radio.SignalReportingArgs](ack()),
		radio.OpClearSignalStrengthReporting:  noArgs(ack()),

		// Carrier restrictions.
		radio.OpSetAllowedCarriers: args[radio.CarrierRulesArgs](handler{shape: shapeSetAllowedCarriers}),
		radio.OpGetAllowedCarriers: noArgs(handler{shape: shapeGetAllowedCarriers}),

		// Modem control.
		radio.OpGetModemActivityInfo:         noArgs(handler{shape: shapeModemActivity}),
		radio.OpEnableModem:                  args[radio.ToggleArgs](ackThen(applyEnableModem)),
		radio.OpGetModemStatus:               noArgs(handler{shape: shapeModemStatus}),
		radio.OpResetModemConfig:             noArgs(ack()),
		radio.OpEraseModemConfig:             noArgs(ack()),
		radio.OpRebootModem:                  noArgs(ack()),
		radio.OpNVReadItem:                   args[radio.NVItemArgs](value[string]()),
		radio.OpNVWriteItem:                  args[radio.NVWriteArgs](ack()),
		radio.OpNVWriteCDMAPRL:               args[radio.PRLArgs](ack()),
		radio.OpSetRadioPower:                args[radio.ToggleArgs](ack()),
		radio.OpGetRadioHALVersion:           noArgs(value[string]()),
		radio.OpSetSimPower:                  args[radio.StateArgs](resultCode()),
		radio.OpSetDataThrottling:            args[radio.ThrottlingArgs](resultCode()),
		radio.OpGetSlicingConfig:             noArgs(handler{shape: shapeStrings}),
		radio.OpPrepareUnattendedReboot:      noArgs(resultCode()),
		radio.OpSwitchSlots:                  args[radio.SlotMappingArgs](ackThen(applySwitchSlots)),
		radio.OpGetSlotMapping:               noArgs(local(localSlotMapping)),
		radio.OpSetVoiceServiceStateOverride: args[radio.ToggleArgs](local(localVoiceOverride)),

		// Supplementary services.
		radio.OpGetCallForwarding: args[radio.CallForwardingReasonArgs](value[radio.CallForwardingInfo]()),
		radio.OpSetCallForwarding: args[radio.CallForwardingArgs](ack()),
		radio.OpGetCallWaiting:    noArgs(handler{shape: shapeCallWaiting}),
		radio.OpSetCallWaiting:    args[radio.ToggleArgs](ack()),
		radio.OpGetCLIR:           noArgs(value[[]int]()),
		radio.OpSetCLIR:           args[radio.ModeArgs](ack()),

		// CDMA.
		radio.OpGetCDMARoamingMode:      noArgs(handler{shape: shapeCDMARoamingMode}),
		radio.OpSetCDMARoamingMode:      args[radio.ModeArgs](ack()),
		radio.OpSetCDMASubscriptionMode: args[radio.ModeArgs](ack()),

		// ICC lock.
		radio.OpSetIccLockEnabled:     args[radio.IccLockArgs](iccLock()),
		radio.OpChangeIccLockPassword: args[radio.IccPasswordArgs](iccLock()),
	}
}

func shapeOpenChannel(st *modemState, req *PendingRequest, out radio.Outcome) any {
	if out.Err != nil {
		status := radio.ChannelUnknownError
		switch out.Err.Code {
		case radio.ErrMissingResource:
			status = radio.ChannelMissingResource
		case radio.ErrNoSuchElement:
			status = radio.ChannelNoSuchElement
		}
		return radio.OpenChannelResult{Channel: radio.InvalidChannel, Status: status}
	}

	resp, res := expect[radio.OpenChannelResponse](req, out)
	if res != nil {
		return res
	}
	if resp.Channel < 0 {
		return radio.OpenChannelResult{Channel: radio.InvalidChannel, Status: radio.ChannelUnknownError}
	}

	st.openChannel(req.target, resp.Channel, argsOf[radio.OpenChannelArgs](req).AID)
	return radio.OpenChannelResult{
		Channel:        resp.Channel,
		Status:         radio.ChannelNoError,
		SelectResponse: resp.SelectResponse,
	}
}

func shapeCloseChannel(st *modemState, req *PendingRequest, out radio.Outcome) any {
	if out.Err != nil {
		return false
	}
	st.closeChannel(req.target, argsOf[radio.CloseChannelArgs](req).Channel)
	return true
}

func shapeIccIO(_ *modemState, req *PendingRequest, out radio.Outcome) any {
	resp, res := expect[radio.IccIOResponse](req, out)
	if res != nil {
		return res
	}
	return resp.Hex()
}

// shapeStrings returns list results as non-nil slices.
func shapeStrings(_ *modemState, req *PendingRequest, out radio.Outcome) any {
	list, res := expect[[]string](req, out)
	if res != nil {
		return res
	}
	if list == nil {
		return []string{}
	}
	return list
}

func shapeAllowedNetworkTypesBitmask(st *modemState, req *PendingRequest, out radio.Outcome) any {
	bitmask, res := expect[int64](req, out)
	if res != nil {
		return res
	}
	st.effectiveTypes[req.target] = bitmask
	return bitmask
}

func applyAllowedNetworkTypes(st *modemState, req *PendingRequest) {
	a := argsOf[radio.AllowedNetworkTypesArgs](req)
	st.setAllowedNetworkTypes(req.target, a.Reason, a.Bitmask)
}

func localCachedAllowedNetworkTypes(st *modemState, req *PendingRequest) any {
	bitmask, ok := st.cachedAllowedNetworkTypes(req.target, argsOf[radio.ReasonArgs](req).Reason)
	if !ok {
		return radio.Unknown{Opcode: req.Opcode}
	}
	return bitmask
}

func shapeGetForbiddenPLMNs(st *modemState, req *PendingRequest, out radio.Outcome) any {
	plmns, res := expect[[]string](req, out)
	if res != nil {
		return res
	}
	if plmns == nil {
		plmns = []string{}
	}
	st.setForbiddenPLMNs(req.target, argsOf[radio.ForbiddenPLMNArgs](req).AppType, plmns)
	return plmns
}

func shapeSetForbiddenPLMNs(st *modemState, req *PendingRequest, out radio.Outcome) any {
	if out.Err != nil {
		return radio.ForbiddenPLMNWriteFailure
	}
	written, res := expect[int](req, out)
	if res != nil {
		return res
	}
	a := argsOf[radio.SetForbiddenPLMNArgs](req)
	st.setForbiddenPLMNs(req.target, a.AppType, a.PLMNs)
	return written
}

func shapeSetAllowedCarriers(st *modemState, req *PendingRequest, out radio.Outcome) any {
	if out.Err != nil {
		if out.Err.Code == radio.ErrRequestNotSupported {
			return radio.CarrierRestrictionNotSupported
		}
		return radio.CarrierRestrictionError
	}
	st.carrierRules[req.target] = argsOf[radio.CarrierRulesArgs](req).Rules
	return radio.CarrierRestrictionSuccess
}

func shapeGetAllowedCarriers(st *modemState, req *PendingRequest, out radio.Outcome) any {
	rules, res := expect[radio.CarrierRestrictionRules](req, out)
	if res != nil {
		return res
	}
	st.carrierRules[req.target] = rules
	return rules
}

// shapeModemActivity folds each report into the running total, so callers
// always see cumulative counters.
func shapeModemActivity(st *modemState, req *PendingRequest, out radio.Outcome) any {
	info, res := expect[radio.ModemActivityInfo](req, out)
	if res != nil {
		return res
	}
	if !info.Valid() {
		return radio.Unknown{Opcode: req.Opcode}
	}
	total := st.addActivity(req.target, info)
	total.TxMillis = slices.Clone(total.TxMillis)
	return total
}

func applyEnableModem(st *modemState, req *PendingRequest) {
	st.modemEnabled[req.target] = argsOf[radio.ToggleArgs](req).Enabled
}

func shapeModemStatus(st *modemState, req *PendingRequest, out radio.Outcome) any {
	enabled, res := expect[bool](req, out)
	if res != nil {
		return res
	}
	st.modemEnabled[req.target] = enabled
	return enabled
}

func applySwitchSlots(st *modemState, req *PendingRequest) {
	st.slotMapping = slices.Clone(argsOf[radio.SlotMappingArgs](req).PhysicalSlots)
}

func localSlotMapping(st *modemState, _ *PendingRequest) any {
	if st.slotMapping == nil {
		return []int{}
	}
	return slices.Clone(st.slotMapping)
}

func localVoiceOverride(st *modemState, req *PendingRequest) any {
	st.voiceOverride[req.target] = argsOf[radio.ToggleArgs](req).Enabled
	return true
}

func localOpenChannels(st *modemState, req *PendingRequest) any {
	return st.channels(req.target)
}

// pinMMIPrefixes are the MMI service codes for PIN and PIN2 change (04, 042)
// and unblock (05, 052).
var pinMMIPrefixes = []string{"**04*", "**042*", "**05*", "**052*"}

// localPinMMI reports whether the dial string is a PIN MMI code this
// instance handles.
func localPinMMI(_ *modemState, req *PendingRequest) any {
	dial := strings.TrimSpace(argsOf[radio.DialArgs](req).Dial)
	if !strings.HasSuffix(dial, "#") {
		return false
	}
	for _, p := range pinMMIPrefixes {
		if strings.HasPrefix(dial, p) {
			return true
		}
	}
	return false
}

func shapeCallWaiting(_ *modemState, req *PendingRequest, out radio.Outcome) any {
	if out.Err != nil {
		if out.Err.Code == radio.ErrRequestNotSupported {
			return radio.CallWaitingNotSupported
		}
		return radio.CallWaitingUnknownError
	}
	enabled, res := expect[bool](req, out)
	if res != nil {
		return res
	}
	if enabled {
		return radio.CallWaitingEnabled
	}
	return radio.CallWaitingDisabled
}

func shapeCDMARoamingMode(_ *modemState, req *PendingRequest, out radio.Outcome) any {
	if out.Err != nil {
		return radio.CDMARoamingDefault
	}
	mode, res := expect[int](req, out)
	if res != nil {
		return res
	}
	return mode
}

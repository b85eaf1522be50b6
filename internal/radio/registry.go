package radio

// opShape records the argument and downstream response shapes of an opcode.
// A nil response factory means the downstream answer is an acknowledgement
// with no payload.
type opShape struct {
	payload  func() Payload
	response func() any
}

func args[T any, PT interface {
	*T
	Payload
}]() func() Payload {
	return func() Payload { return PT(new(T)) }
}

func resp[T any]() func() any { return func() any { return new(T) } }

var noArgs = args[NoArgs]()

var shapes = map[Opcode]opShape{
	OpOpenChannel:                {args[OpenChannelArgs](), resp[OpenChannelResponse]()},
	OpCloseChannel:               {args[CloseChannelArgs](), nil},
	OpTransmitAPDULogicalChannel: {args[APDUArgs](), resp[IccIOResponse]()},
	OpTransmitAPDUBasicChannel:   {args[APDUArgs](), resp[IccIOResponse]()},
	OpExchangeSimIO:              {args[SimIOArgs](), resp[IccIOResponse]()},
	OpSendEnvelope:               {args[EnvelopeArgs](), resp[string]()},
	OpHandlePinMMI:               {args[DialArgs](), nil},
	OpHandleUSSD:                 {args[USSDArgs](), resp[string]()},
	OpGetOpenChannels:            {noArgs, nil},

	OpGetPreferredNetworkType:       {noArgs, resp[int]()},
	OpSetPreferredNetworkType:       {args[NetworkTypeArgs](), nil},
	OpGetAllowedNetworkTypesBitmask: {noArgs, resp[int64]()},
	OpSetAllowedNetworkTypes:        {args[AllowedNetworkTypesArgs](), nil},
	OpGetCachedAllowedNetworkTypes:  {args[ReasonArgs](), nil},
	OpPerformNetworkScan:            {noArgs, resp[[]string]()},
	OpSetNetworkSelectionManual:     {args[ManualSelectionArgs](), nil},
	OpSetNetworkSelectionAutomatic:  {noArgs, nil},
	OpGetNetworkSelectionMode:       {noArgs, resp[int]()},
	OpGetForbiddenPLMNs:             {args[ForbiddenPLMNArgs](), resp[[]string]()},
	OpSetForbiddenPLMNs:             {args[SetForbiddenPLMNArgs](), resp[int]()},
	OpSetSystemSelectionChannels:    {args[ChannelSpecArgs](), nil},
	OpGetSystemSelectionChannels:    {noArgs, resp[[]string]()},
	OpSetNRDualConnectivity:         {args[StateArgs](), nil},
	OpIsNRDualConnectivityEnabled:   {noArgs, resp[bool]()},
	OpSetVoNREnabled:                {args[ToggleArgs](), nil},
	OpIsVoNREnabled:                 {noArgs, resp[bool]()},
	OpGetCellLocation:               {noArgs, resp[string]()},
	OpRequestCellInfoUpdate:         {noArgs, resp[[]string]()},
	OpSetSignalStrengthReporting:    {args[SignalReportingArgs](), nil},
	OpClearSignalStrengthReporting:  {noArgs, nil},

	OpSetAllowedCarriers: {args[CarrierRulesArgs](), nil},
	OpGetAllowedCarriers: {noArgs, resp[CarrierRestrictionRules]()},

	OpGetModemActivityInfo:         {noArgs, resp[ModemActivityInfo]()},
	OpEnableModem:                  {args[ToggleArgs](), nil},
	OpGetModemStatus:               {noArgs, resp[bool]()},
	OpResetModemConfig:             {noArgs, nil},
	OpEraseModemConfig:             {noArgs, nil},
	OpRebootModem:                  {noArgs, nil},
	OpNVReadItem:                   {args[NVItemArgs](), resp[string]()},
	OpNVWriteItem:                  {args[NVWriteArgs](), nil},
	OpNVWriteCDMAPRL:               {args[PRLArgs](), nil},
	OpSetRadioPower:                {args[ToggleArgs](), nil},
	OpGetRadioHALVersion:           {noArgs, resp[string]()},
	OpSetSimPower:                  {args[StateArgs](), nil},
	OpSetDataThrottling:            {args[ThrottlingArgs](), nil},
	OpGetSlicingConfig:             {noArgs, resp[[]string]()},
	OpPrepareUnattendedReboot:      {noArgs, nil},
	OpSwitchSlots:                  {args[SlotMappingArgs](), nil},
	OpGetSlotMapping:               {noArgs, nil},
	OpSetVoiceServiceStateOverride: {args[ToggleArgs](), nil},

	OpGetCallForwarding: {args[CallForwardingReasonArgs](), resp[CallForwardingInfo]()},
	OpSetCallForwarding: {args[CallForwardingArgs](), nil},
	OpGetCallWaiting:    {noArgs, resp[bool]()},
	OpSetCallWaiting:    {args[ToggleArgs](), nil},
	OpGetCLIR:           {noArgs, resp[[]int]()},
	OpSetCLIR:           {args[ModeArgs](), nil},

	OpGetCDMARoamingMode:      {noArgs, resp[int]()},
	OpSetCDMARoamingMode:      {args[ModeArgs](), nil},
	OpSetCDMASubscriptionMode: {args[ModeArgs](), nil},

	OpSetIccLockEnabled:     {args[IccLockArgs](), nil},
	OpChangeIccLockPassword: {args[IccPasswordArgs](), nil},
}

// NewPayload returns a pointer to a zero payload of the type op expects,
// ready to be decoded into. Unknown opcodes get *NoArgs.
func NewPayload(op Opcode) Payload {
	if s, ok := shapes[op]; ok && s.payload != nil {
		return s.payload()
	}
	return new(NoArgs)
}

// NewResponse returns a pointer to a zero downstream response value for op,
// or nil when the opcode is acknowledged without a payload.
func NewResponse(op Opcode) any {
	if s, ok := shapes[op]; ok && s.response != nil {
		return s.response()
	}
	return nil
}

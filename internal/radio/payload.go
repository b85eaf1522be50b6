package radio

// Payload is the argument variant carried by a Command. The set of variants
// is closed: only types in this package implement it.
type Payload interface {
	radioPayload()
}

// NoArgs is the payload of opcodes that take no arguments.
type NoArgs struct{}

// OpenChannelArgs selects an application on a new logical channel.
type OpenChannelArgs struct {
	AID string `yaml:"aid" json:"aid"`
	P2  int    `yaml:"p2" json:"p2"`
}

// CloseChannelArgs names a logical channel to close.
type CloseChannelArgs struct {
	Channel int `yaml:"channel" json:"channel"`
}

// APDUArgs is one APDU. Channel is ignored on the basic channel.
type APDUArgs struct {
	Channel int    `yaml:"channel" json:"channel"`
	CLA     int    `yaml:"cla" json:"cla"`
	INS     int    `yaml:"ins" json:"ins"`
	P1      int    `yaml:"p1" json:"p1"`
	P2      int    `yaml:"p2" json:"p2"`
	P3      int    `yaml:"p3" json:"p3"`
	Data    string `yaml:"data" json:"data"`
}

// SimIOArgs is a raw SIM file I/O request.
type SimIOArgs struct {
	FileID   int    `yaml:"file_id" json:"file_id"`
	Command  int    `yaml:"command" json:"command"`
	P1       int    `yaml:"p1" json:"p1"`
	P2       int    `yaml:"p2" json:"p2"`
	P3       int    `yaml:"p3" json:"p3"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// EnvelopeArgs carries a hex-encoded SAT envelope.
type EnvelopeArgs struct {
	Contents string `yaml:"contents" json:"contents"`
}

// DialArgs carries a dial string to interpret as an MMI code.
type DialArgs struct {
	Dial string `yaml:"dial" json:"dial"`
}

// USSDArgs carries a USSD request string.
type USSDArgs struct {
	Request string `yaml:"request" json:"request"`
}

// NetworkTypeArgs selects a preferred network type.
type NetworkTypeArgs struct {
	NetworkType int `yaml:"network_type" json:"network_type"`
}

// AllowedNetworkTypesArgs sets the allowed radio access families for a reason.
type AllowedNetworkTypesArgs struct {
	Reason  int   `yaml:"reason" json:"reason"`
	Bitmask int64 `yaml:"bitmask" json:"bitmask"`
}

// ReasonArgs selects an allowed-network-types reason.
type ReasonArgs struct {
	Reason int `yaml:"reason" json:"reason"`
}

// ManualSelectionArgs pins network selection to one operator.
type ManualSelectionArgs struct {
	Operator string `yaml:"operator" json:"operator"`
	Persist  bool   `yaml:"persist" json:"persist"`
}

// ForbiddenPLMNArgs selects the card application whose forbidden list is read.
type ForbiddenPLMNArgs struct {
	AppType int `yaml:"app_type" json:"app_type"`
}

// SetForbiddenPLMNArgs replaces a forbidden PLMN list.
type SetForbiddenPLMNArgs struct {
	AppType int      `yaml:"app_type" json:"app_type"`
	PLMNs   []string `yaml:"plmns" json:"plmns"`
}

// ChannelSpecArgs lists system selection channel specifiers.
type ChannelSpecArgs struct {
	Specifiers []string `yaml:"specifiers" json:"specifiers"`
}

// StateArgs carries a requested numeric state.
type StateArgs struct {
	State int `yaml:"state" json:"state"`
}

// ToggleArgs turns a feature on or off.
type ToggleArgs struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SignalReportingArgs configures signal strength reporting thresholds.
type SignalReportingArgs struct {
	Measurement  string `yaml:"measurement" json:"measurement"`
	Thresholds   []int  `yaml:"thresholds" json:"thresholds"`
	HysteresisDB int    `yaml:"hysteresis_db" json:"hysteresis_db"`
}

// CarrierRulesArgs carries carrier restriction rules to apply.
type CarrierRulesArgs struct {
	Rules CarrierRestrictionRules `yaml:"rules" json:"rules"`
}

// NVItemArgs names a non-volatile item.
type NVItemArgs struct {
	ItemID int `yaml:"item_id" json:"item_id"`
}

// NVWriteArgs writes a non-volatile item.
type NVWriteArgs struct {
	ItemID int    `yaml:"item_id" json:"item_id"`
	Value  string `yaml:"value" json:"value"`
}

// PRLArgs carries a hex-encoded CDMA preferred roaming list.
type PRLArgs struct {
	PRL string `yaml:"prl" json:"prl"`
}

// ThrottlingArgs requests a data throttling action.
type ThrottlingArgs struct {
	Action         int   `yaml:"action" json:"action"`
	DurationMillis int64 `yaml:"duration_ms" json:"duration_ms"`
}

// SlotMappingArgs maps logical slots (by index) to physical slots.
type SlotMappingArgs struct {
	PhysicalSlots []int `yaml:"physical_slots" json:"physical_slots"`
}

// CallForwardingReasonArgs selects the call-forwarding reason to query.
type CallForwardingReasonArgs struct {
	Reason int `yaml:"reason" json:"reason"`
}

// CallForwardingArgs sets one call-forwarding rule.
type CallForwardingArgs struct {
	Info CallForwardingInfo `yaml:"info" json:"info"`
}

// ModeArgs carries a numeric mode (CLIR, CDMA roaming, CDMA subscription).
type ModeArgs struct {
	Mode int `yaml:"mode" json:"mode"`
}

// IccLockArgs enables or disables the ICC PIN lock.
type IccLockArgs struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Password string `yaml:"password" json:"password"`
}

// IccPasswordArgs changes the ICC PIN.
type IccPasswordArgs struct {
	Old string `yaml:"old" json:"old"`
	New string `yaml:"new" json:"new"`
}

func (NoArgs) radioPayload()                   {}
func (OpenChannelArgs) radioPayload()          {}
func (CloseChannelArgs) radioPayload()         {}
func (APDUArgs) radioPayload()                 {}
func (SimIOArgs) radioPayload()                {}
func (EnvelopeArgs) radioPayload()             {}
func (DialArgs) radioPayload()                 {}
func (USSDArgs) radioPayload()                 {}
func (NetworkTypeArgs) radioPayload()          {}
func (AllowedNetworkTypesArgs) radioPayload()  {}
func (ReasonArgs) radioPayload()               {}
func (ManualSelectionArgs) radioPayload()      {}
func (ForbiddenPLMNArgs) radioPayload()        {}
func (SetForbiddenPLMNArgs) radioPayload()     {}
func (ChannelSpecArgs) radioPayload()          {}
func (StateArgs) radioPayload()                {}
func (ToggleArgs) radioPayload()               {}
func (SignalReportingArgs) radioPayload()      {}
func (CarrierRulesArgs) radioPayload()         {}
func (NVItemArgs) radioPayload()               {}
func (NVWriteArgs) radioPayload()              {}
func (PRLArgs) radioPayload()                  {}
func (ThrottlingArgs) radioPayload()           {}
func (SlotMappingArgs) radioPayload()          {}
func (CallForwardingReasonArgs) radioPayload() {}
func (CallForwardingArgs) radioPayload()       {}
func (ModeArgs) radioPayload()                 {}
func (IccLockArgs) radioPayload()              {}
func (IccPasswordArgs) radioPayload()          {}

// PayloadAs extracts a payload of type T. Both T and *T are accepted so that
// decoded (pointer) and literal (value) payloads dispatch identically.
func PayloadAs[T Payload](p Payload) (T, bool) {
	if v, ok := p.(T); ok {
		return v, true
	}
	// *T has an empty method set here, so the assertion goes through any.
	if v, ok := any(p).(*T); ok && v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

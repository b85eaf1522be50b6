package radio

import (
	"fmt"
	"strings"
)

// ChannelStatus reports the outcome of opening a logical channel.
type ChannelStatus int

const (
	ChannelNoError ChannelStatus = iota
	ChannelMissingResource
	ChannelNoSuchElement
	ChannelUnknownError
)

// InvalidChannel is reported alongside any non-success ChannelStatus.
const InvalidChannel = -1

var channelStatusNames = map[ChannelStatus]string{
	ChannelNoError:         "NO_ERROR",
	ChannelMissingResource: "MISSING_RESOURCE",
	ChannelNoSuchElement:   "NO_SUCH_ELEMENT",
	ChannelUnknownError:    "UNKNOWN_ERROR",
}

func (s ChannelStatus) String() string {
	if name, ok := channelStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CHANNEL_STATUS(%d)", int(s))
}

// MarshalText renders the status by name.
func (s ChannelStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// OpenChannelResponse is what the card returns when a channel opens.
type OpenChannelResponse struct {
	Channel        int    `yaml:"channel" json:"channel"`
	SelectResponse string `yaml:"select_response" json:"select_response"`
}

// OpenChannelResult is the shaped result of OpOpenChannel.
type OpenChannelResult struct {
	Channel        int           `json:"channel"`
	Status         ChannelStatus `json:"status"`
	SelectResponse string        `json:"select_response"`
}

// IccIOResponse is a raw APDU or SIM I/O answer.
type IccIOResponse struct {
	SW1     int    `yaml:"sw1" json:"sw1"`
	SW2     int    `yaml:"sw2" json:"sw2"`
	Payload string `yaml:"payload" json:"payload"`
}

// Hex renders the payload followed by the two status words, the format
// callers of APDU operations expect.
func (r IccIOResponse) Hex() string {
	return strings.ToUpper(r.Payload) + fmt.Sprintf("%02X%02X", r.SW1&0xff, r.SW2&0xff)
}

// ModemActivityInfo holds modem activity counters in milliseconds.
type ModemActivityInfo struct {
	SleepMillis int64   `yaml:"sleep_ms" json:"sleep_ms"`
	IdleMillis  int64   `yaml:"idle_ms" json:"idle_ms"`
	RxMillis    int64   `yaml:"rx_ms" json:"rx_ms"`
	TxMillis    []int64 `yaml:"tx_ms" json:"tx_ms"`
}

// Valid reports whether the counters are usable. Negative counters, or all
// counters at zero, indicate the modem did not report activity.
func (m ModemActivityInfo) Valid() bool {
	total := m.SleepMillis + m.IdleMillis + m.RxMillis
	if m.SleepMillis < 0 || m.IdleMillis < 0 || m.RxMillis < 0 {
		return false
	}
	for _, tx := range m.TxMillis {
		if tx < 0 {
			return false
		}
		total += tx
	}
	return total > 0
}

// Add returns the element-wise sum of m and o. Tx levels missing on either
// side count as zero.
func (m ModemActivityInfo) Add(o ModemActivityInfo) ModemActivityInfo {
	n := len(m.TxMillis)
	if len(o.TxMillis) > n {
		n = len(o.TxMillis)
	}
	tx := make([]int64, n)
	for i := range tx {
		if i < len(m.TxMillis) {
			tx[i] += m.TxMillis[i]
		}
		if i < len(o.TxMillis) {
			tx[i] += o.TxMillis[i]
		}
	}
	return ModemActivityInfo{
		SleepMillis: m.SleepMillis + o.SleepMillis,
		IdleMillis:  m.IdleMillis + o.IdleMillis,
		RxMillis:    m.RxMillis + o.RxMillis,
		TxMillis:    tx,
	}
}

// Carrier identifies a carrier by PLMN plus optional group id.
type Carrier struct {
	MCC string `yaml:"mcc" json:"mcc"`
	MNC string `yaml:"mnc" json:"mnc"`
	GID string `yaml:"gid,omitempty" json:"gid,omitempty"`
}

// CarrierRestrictionRules is the allowed/excluded carrier configuration.
type CarrierRestrictionRules struct {
	Allowed        []Carrier `yaml:"allowed" json:"allowed"`
	Excluded       []Carrier `yaml:"excluded" json:"excluded"`
	DefaultAllowed bool      `yaml:"default_allowed" json:"default_allowed"`
	MultiSimPolicy int       `yaml:"multi_sim_policy" json:"multi_sim_policy"`
}

// CarrierRestrictionResult is the shaped result of OpSetAllowedCarriers.
type CarrierRestrictionResult int

const (
	CarrierRestrictionSuccess CarrierRestrictionResult = iota
	CarrierRestrictionNotSupported
	CarrierRestrictionError
)

// CallForwardingInfo describes one call-forwarding rule.
type CallForwardingInfo struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Reason         int    `yaml:"reason" json:"reason"`
	Number         string `yaml:"number" json:"number"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// CallWaitingStatus is the shaped result of OpGetCallWaiting.
type CallWaitingStatus int

const (
	CallWaitingEnabled CallWaitingStatus = iota + 1
	CallWaitingDisabled
	CallWaitingUnknownError
	CallWaitingNotSupported
)

// ResultCode is the shaped result of operations that report a numeric status
// (SIM power, data throttling, NR dual connectivity, VoNR, unattended reboot).
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultRadioNotAvailable
	ResultModemError
	ResultNotSupported
	ResultInvalidState
	ResultSimError
)

// ICC lock results. Any value between the two is the number of attempts
// remaining after an incorrect password.
const (
	IccLockFailure = -1
	IccLockSuccess = 1<<31 - 1
)

// CDMARoamingDefault is reported when the roaming mode cannot be read.
const CDMARoamingDefault = -1

// ForbiddenPLMNWriteFailure is reported when writing forbidden PLMNs fails.
const ForbiddenPLMNWriteFailure = -1

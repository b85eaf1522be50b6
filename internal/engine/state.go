package engine

import (
	"slices"
	"sort"

	"github.com/roach88/phonebridge/internal/radio"
)

// modemState is the radio state the worker caches between requests.
//
// Worker-owned: read and written only on the Run goroutine. Tests read it
// after a Call returns, which orders the read after the write.
type modemState struct {
	allowedNetworkTypes map[radio.Instance]map[int]int64
	effectiveTypes      map[radio.Instance]int64
	forbiddenPLMNs      map[radio.Instance]map[int][]string
	activity            map[radio.Instance]radio.ModemActivityInfo
	carrierRules        map[radio.Instance]radio.CarrierRestrictionRules
	modemEnabled        map[radio.Instance]bool
	openChannels        map[radio.Instance]map[int]string
	voiceOverride       map[radio.Instance]bool
	slotMapping         []int
}

func newModemState() *modemState {
	return &modemState{
		allowedNetworkTypes: make(map[radio.Instance]map[int]int64),
		effectiveTypes:      make(map[radio.Instance]int64),
		forbiddenPLMNs:      make(map[radio.Instance]map[int][]string),
		activity:            make(map[radio.Instance]radio.ModemActivityInfo),
		carrierRules:        make(map[radio.Instance]radio.CarrierRestrictionRules),
		modemEnabled:        make(map[radio.Instance]bool),
		openChannels:        make(map[radio.Instance]map[int]string),
		voiceOverride:       make(map[radio.Instance]bool),
		slotMapping:         []int{},
	}
}

func (s *modemState) setAllowedNetworkTypes(inst radio.Instance, reason int, bitmask int64) {
	m, ok := s.allowedNetworkTypes[inst]
	if !ok {
		m = make(map[int]int64)
		s.allowedNetworkTypes[inst] = m
	}
	m[reason] = bitmask
}

func (s *modemState) cachedAllowedNetworkTypes(inst radio.Instance, reason int) (int64, bool) {
	v, ok := s.allowedNetworkTypes[inst][reason]
	return v, ok
}

func (s *modemState) setForbiddenPLMNs(inst radio.Instance, appType int, plmns []string) {
	m, ok := s.forbiddenPLMNs[inst]
	if !ok {
		m = make(map[int][]string)
		s.forbiddenPLMNs[inst] = m
	}
	m[appType] = slices.Clone(plmns)
}

// addActivity merges one activity report into the running total and returns
// the new total.
func (s *modemState) addActivity(inst radio.Instance, delta radio.ModemActivityInfo) radio.ModemActivityInfo {
	total := s.activity[inst].Add(delta)
	s.activity[inst] = total
	return total
}

func (s *modemState) openChannel(inst radio.Instance, channel int, aid string) {
	m, ok := s.openChannels[inst]
	if !ok {
		m = make(map[int]string)
		s.openChannels[inst] = m
	}
	m[channel] = aid
}

func (s *modemState) closeChannel(inst radio.Instance, channel int) {
	delete(s.openChannels[inst], channel)
}

// channels lists the open channels of inst in ascending order.
func (s *modemState) channels(inst radio.Instance) []int {
	out := make([]int, 0, len(s.openChannels[inst]))
	for ch := range s.openChannels[inst] {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

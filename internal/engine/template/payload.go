package template

import (
	"sort"
	"strconv"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/value"
)

// AttackType selects how a PayloadAttack's named payload lists combine
// into individual request variable sets.
type AttackType int

const (
	// AttackBatteringRam inserts the same payload into every position at
	// once: one payload list, iterated.
	AttackBatteringRam AttackType = iota
	// AttackPitchFork zips multiple equal-length payload lists together
	// positionally.
	AttackPitchFork
	// AttackClusterBomb computes the full cartesian product of every
	// payload list.
	AttackClusterBomb
)

func (a AttackType) MarshalYAML() (any, error) {
	switch a {
	case AttackPitchFork:
		return "pitchfork", nil
	case AttackClusterBomb:
		return "clusterbomb", nil
	default:
		return "batteringram", nil
	}
}

func (a *AttackType) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*a = attackTypeFromString(s)
	return nil
}

func (a AttackType) MarshalJSON() ([]byte, error) {
	v, _ := a.MarshalYAML()
	return []byte(strconv.Quote(v.(string))), nil
}

func (a *AttackType) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	*a = attackTypeFromString(s)
	return nil
}

func attackTypeFromString(s string) AttackType {
	switch s {
	case "pitchfork":
		return AttackPitchFork
	case "clusterbomb":
		return AttackClusterBomb
	default:
		return AttackBatteringRam
	}
}

// PayloadAttack declares the named payload lists a request should be
// fuzzed with and how to combine them.
type PayloadAttack struct {
	Attack   AttackType               `yaml:"attack" json:"attack"`
	Payloads map[string]value.Value   `yaml:"payloads" json:"payloads"`
}

// PayloadIterator yields one variable-name-to-value map per request that
// should be generated from a PayloadAttack.
type PayloadIterator struct {
	sets []map[string]string
}

func (p PayloadIterator) Sets() []map[string]string { return p.sets }

// NewPayloadIterator expands attack's payload lists according to its
// AttackType.
func NewPayloadIterator(attack *PayloadAttack) PayloadIterator {
	if attack == nil {
		return PayloadIterator{}
	}
	names := make([]string, 0, len(attack.Payloads))
	for name := range attack.Payloads {
		names = append(names, name)
	}
	sort.Strings(names)

	switch attack.Attack {
	case AttackBatteringRam:
		return payloadBatteringRam(names, attack.Payloads)
	case AttackPitchFork:
		return payloadPitchFork(names, attack.Payloads)
	default:
		return payloadClusterBomb(names, attack.Payloads)
	}
}

func payloadBatteringRam(names []string, payloads map[string]value.Value) PayloadIterator {
	if len(names) == 0 {
		return PayloadIterator{}
	}
	name := names[0]
	var sets []map[string]string
	for _, v := range payloads[name].ToSlice() {
		sets = append(sets, map[string]string{name: v})
	}
	return PayloadIterator{sets: sets}
}

func payloadPitchFork(names []string, payloads map[string]value.Value) PayloadIterator {
	lists := make(map[string][]string, len(names))
	minLen := -1
	for _, name := range names {
		vals := payloads[name].ToSlice()
		lists[name] = vals
		if minLen == -1 || len(vals) < minLen {
			minLen = len(vals)
		}
	}
	if minLen <= 0 {
		return PayloadIterator{}
	}
	var sets []map[string]string
	for i := 0; i < minLen; i++ {
		set := make(map[string]string, len(names))
		for _, name := range names {
			set[name] = lists[name][i]
		}
		sets = append(sets, set)
	}
	return PayloadIterator{sets: sets}
}

func payloadClusterBomb(names []string, payloads map[string]value.Value) PayloadIterator {
	sets := []map[string]string{{}}
	for _, name := range names {
		vals := payloads[name].ToSlice()
		var next []map[string]string
		for _, base := range sets {
			for _, v := range vals {
				combined := make(map[string]string, len(base)+1)
				for k, bv := range base {
					combined[k] = bv
				}
				combined[name] = v
				next = append(next, combined)
			}
		}
		sets = next
	}
	if len(names) == 0 {
		return PayloadIterator{}
	}
	return PayloadIterator{sets: sets}
}

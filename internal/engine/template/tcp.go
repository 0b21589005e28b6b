package template

import (
	"strconv"
	"strings"
)

// PortRange parses nmap-style port specs ("80", "80-443", "T:9100",
// "U:30000-40000") into a set that Contains can test cheaply.
type PortRange struct {
	single []int
	ranges [][2]int
}

// ParsePortRange parses a comma-separated port spec. Leading "T:"/"U:"/":"
// protocol markers are stripped, matching the exclude-ports convention
// carried over from the probe generator this was adapted from.
func ParsePortRange(src string) (PortRange, error) {
	var pr PortRange
	if src == "" {
		return pr, nil
	}
	for _, part := range strings.Split(src, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if start, end, ok := strings.Cut(part, "-"); ok {
			s, err := strconv.Atoi(trimProto(start))
			if err != nil {
				return PortRange{}, err
			}
			e, err := strconv.Atoi(trimProto(end))
			if err != nil {
				return PortRange{}, err
			}
			pr.ranges = append(pr.ranges, [2]int{s, e})
			continue
		}
		p, err := strconv.Atoi(trimProto(part))
		if err != nil {
			return PortRange{}, err
		}
		pr.single = append(pr.single, p)
	}
	return pr, nil
}

func trimProto(s string) string {
	return strings.TrimLeft(s, "TU:")
}

// Contains reports whether port falls in this range.
func (p PortRange) Contains(port int) bool {
	for _, s := range p.single {
		if s == port {
			return true
		}
	}
	for _, r := range p.ranges {
		if port >= r[0] && port <= r[1] {
			return true
		}
	}
	return false
}

func (p PortRange) IsEmpty() bool { return len(p.single) == 0 && len(p.ranges) == 0 }

// All renders the range back to its comma-separated string form.
func (p PortRange) All() []string {
	out := make([]string, 0, len(p.single)+len(p.ranges))
	for _, s := range p.single {
		out = append(out, strconv.Itoa(s))
	}
	for _, r := range p.ranges {
		out = append(out, strconv.Itoa(r[0])+"-"+strconv.Itoa(r[1]))
	}
	return out
}

func (p PortRange) MarshalYAML() (any, error) {
	return strings.Join(p.All(), ","), nil
}

func (p *PortRange) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParsePortRange(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PortRange) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strings.Join(p.All(), ","))), nil
}

func (p *PortRange) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	parsed, err := ParsePortRange(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Input is a single write/read step for a TCP probe's conversation.
type Input struct {
	Data string `yaml:"data,omitempty" json:"data,omitempty"`
	Read int    `yaml:"read,omitempty" json:"read,omitempty"`
}

// TCPRequest is one raw-socket probe within a template's requests.tcp
// list.
type TCPRequest struct {
	ID            string
	Name          string
	Inputs        []Input
	Host          []string
	Operators     Operators
	PayloadAttack *PayloadAttack
	Threads       int
	Port          *PortRange
	ExcludePorts  string
	ReadSize      int
	ReadAll       bool
}

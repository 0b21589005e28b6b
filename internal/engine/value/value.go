// Package value implements the permissive scalar/list/map value used for
// template metadata, and a string-or-list codec for fields that may
// appear in YAML/JSON as either a bare string or an array of strings.
package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags which alternative a Value currently holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNum
	KindString
	KindList
	KindMap
)

// Value is an untagged union mirroring the template corpus's free-form
// metadata values: null, bool, number, string, list, or string-keyed map.
type Value struct {
	kind   Kind
	b      bool
	n      uint32
	s      string
	list   []Value
	object map[string]Value
}

func Null() Value                    { return Value{kind: KindNull} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func Num(n uint32) Value             { return Value{kind: KindNum, n: n} }
func String(s string) Value          { return Value{kind: KindString, s: s} }
func List(items []Value) Value       { return Value{kind: KindList, list: items} }
func Map(m map[string]Value) Value   { return Value{kind: KindMap, object: m} }

func (v Value) Kind() Kind { return v.kind }

// ToSlice flattens a Value into a list of strings the way the template
// engine flattens metadata into positional args: scalars become a single
// element, lists flatten recursively, maps contribute nothing.
func (v Value) ToSlice() []string {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return []string{strconv.FormatBool(v.b)}
	case KindNum:
		return []string{strconv.FormatUint(uint64(v.n), 10)}
	case KindString:
		return []string{v.s}
	case KindList:
		out := make([]string, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.ToSlice()...)
		}
		return out
	default:
		return nil
	}
}

// String renders the scalar forms; lists and maps render empty, matching
// the original Display impl which only stringifies scalars.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNum:
		return strconv.FormatUint(uint64(v.n), 10)
	case KindString:
		return v.s
	default:
		return ""
	}
}

func (v Value) IsZero() bool {
	return v.kind == KindNull
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// UnmarshalYAML supports gopkg.in/yaml.v3's generic-any decode path.
func (v *Value) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case int:
		return Num(uint32(t)), nil
	case int64:
		return Num(uint32(t)), nil
	case float64:
		return Num(uint32(t)), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return List(items), nil
	case map[string]any:
		object := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			object[k] = v
		}
		return Map(object), nil
	case map[any]any:
		object := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			object[fmt.Sprintf("%v", k)] = v
		}
		return Map(object), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", raw)
	}
}

// StringList is a field that permissively decodes as either a bare
// comma-separated string or a YAML/JSON list of strings, always
// normalized into a []string on read.
type StringList []string

func (sl StringList) MarshalYAML() (any, error) {
	return strings.Join(sl, ","), nil
}

func (sl *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*sl = list
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*sl = splitCSV(s)
	return nil
}

func (sl StringList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(sl, ","))
}

func (sl *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*sl = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*sl = splitCSV(s)
	return nil
}

func splitCSV(s string) StringList {
	if s == "" {
		return StringList{}
	}
	parts := strings.Split(s, ",")
	out := make(StringList, 0, len(parts))
	for _, p := range parts {
		out = append(out, p)
	}
	return out
}

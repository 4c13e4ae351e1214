package bayes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the dynamic type held by a Value.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindBool
)

// Value is a comparable feature value key. The zero Value is the empty string.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
}

func String(s string) Value { return Value{kind: KindString, s: s} }

func Int(i int64) Value { return Value{kind: KindInt, i: i} }

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Equal(o Value) bool { return v == o }

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// ParseValue decodes the textual form written by Value.Encode.
func ParseValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString:
		return String(text), nil
	case KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, invalidInput("int value %q: %v", text, err)
		}
		return Int(i), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, invalidInput("bool value %q: %v", text, err)
		}
		return Bool(b), nil
	}
	return Value{}, invalidInput("unknown value kind %d", kind)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

// UnmarshalJSON accepts a JSON string, integer or boolean. null is
// rejected rather than decoded as a zero value.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return invalidInput("empty feature value")
	}
	if bytes.Equal(data, []byte("null")) {
		return invalidInput("feature value must not be null")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		var i int64
		if err := json.Unmarshal(data, &i); err != nil {
			return invalidInput("feature value must be a string, integer or boolean: %v", err)
		}
		*v = Int(i)
	}
	return nil
}

// MarshalYAML and UnmarshalYAML let training tables carry typed values.
func (v Value) MarshalYAML() (any, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindBool:
		return v.b, nil
	default:
		return v.s, nil
	}
}

func (v *Value) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = String(x)
	case int:
		*v = Int(int64(x))
	case int64:
		*v = Int(x)
	case bool:
		*v = Bool(x)
	default:
		return fmt.Errorf("unsupported feature value %v (%T)", raw, raw)
	}
	return nil
}

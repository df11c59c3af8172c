package model

import (
	"errors"
	"fmt"
)

// SettingType is the declared value type of a setting.
type SettingType int

const (
	// UnknownType marks override-only entries without a declared type.
	UnknownType SettingType = -1

	BoolType   SettingType = 0
	StringType SettingType = 1
	IntType    SettingType = 2
	DoubleType SettingType = 3
)

func (t SettingType) String() string {
	switch t {
	case BoolType:
		return "bool"
	case StringType:
		return "string"
	case IntType:
		return "int"
	case DoubleType:
		return "double"
	default:
		return "unknown"
	}
}

// ErrNoSettingValue indicates a value slot with none of its variants set.
var ErrNoSettingValue = errors.New("setting value is missing or invalid")

// SettingValue carries exactly one of a bool, string, int, or double value.
// Which field is set must agree with the owning setting's declared type.
type SettingValue struct {
	BoolValue   *bool    `json:"b,omitempty"`
	StringValue *string  `json:"s,omitempty"`
	IntValue    *int     `json:"i,omitempty"`
	DoubleValue *float64 `json:"d,omitempty"`
}

// Value unwraps the populated variant. It fails when no variant (or more
// than one) is populated, which indicates a malformed config document.
func (v SettingValue) Value() (any, error) {
	var result any
	count := 0
	if v.BoolValue != nil {
		result = *v.BoolValue
		count++
	}
	if v.StringValue != nil {
		result = *v.StringValue
		count++
	}
	if v.IntValue != nil {
		result = *v.IntValue
		count++
	}
	if v.DoubleValue != nil {
		result = *v.DoubleValue
		count++
	}
	if count != 1 {
		return nil, ErrNoSettingValue
	}
	return result, nil
}

// ValueForType unwraps the variant matching the given setting type.
func (v SettingValue) ValueForType(t SettingType) (any, error) {
	switch t {
	case BoolType:
		if v.BoolValue != nil {
			return *v.BoolValue, nil
		}
	case StringType:
		if v.StringValue != nil {
			return *v.StringValue, nil
		}
	case IntType:
		if v.IntValue != nil {
			return *v.IntValue, nil
		}
	case DoubleType:
		if v.DoubleValue != nil {
			return *v.DoubleValue, nil
		}
	default:
		return v.Value()
	}
	return nil, fmt.Errorf("%w: no %s value present", ErrNoSettingValue, t)
}

// TypeOf infers the SettingType matching a Go value supplied by a caller,
// e.g. a default value passed to an evaluation.
func TypeOf(value any) SettingType {
	switch value.(type) {
	case bool:
		return BoolType
	case string:
		return StringType
	case int:
		return IntType
	case float64:
		return DoubleType
	default:
		return UnknownType
	}
}

// NewSettingValue wraps a Go value into a SettingValue. Unsupported types
// yield an empty value.
func NewSettingValue(value any) SettingValue {
	switch v := value.(type) {
	case bool:
		return SettingValue{BoolValue: &v}
	case string:
		return SettingValue{StringValue: &v}
	case int:
		return SettingValue{IntValue: &v}
	case float64:
		return SettingValue{DoubleValue: &v}
	default:
		return SettingValue{}
	}
}

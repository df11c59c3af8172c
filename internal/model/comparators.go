package model

// Comparator identifies one of the fixed user-condition operators defined by
// the config document schema. The numeric values are part of the wire format
// and must not be reordered.
type Comparator int

const (
	TextIsOneOf Comparator = iota
	TextIsNotOneOf
	TextContainsAnyOf
	TextNotContainsAnyOf
	SemVerIsOneOf
	SemVerIsNotOneOf
	SemVerLess
	SemVerLessOrEquals
	SemVerGreater
	SemVerGreaterOrEquals
	NumberEquals
	NumberNotEquals
	NumberLess
	NumberLessOrEquals
	NumberGreater
	NumberGreaterOrEquals
	SensitiveTextIsOneOf
	SensitiveTextIsNotOneOf
	DateTimeBefore
	DateTimeAfter
	SensitiveTextEquals
	SensitiveTextNotEquals
	SensitiveTextStartsWithAnyOf
	SensitiveTextNotStartsWithAnyOf
	SensitiveTextEndsWithAnyOf
	SensitiveTextNotEndsWithAnyOf
	SensitiveArrayContainsAnyOf
	SensitiveArrayNotContainsAnyOf
	TextEquals
	TextNotEquals
	TextStartsWithAnyOf
	TextNotStartsWithAnyOf
	TextEndsWithAnyOf
	TextNotEndsWithAnyOf
	ArrayContainsAnyOf
	ArrayNotContainsAnyOf
)

var comparatorNames = map[Comparator]string{
	TextIsOneOf:                     "IS ONE OF",
	TextIsNotOneOf:                  "IS NOT ONE OF",
	TextContainsAnyOf:               "CONTAINS ANY OF",
	TextNotContainsAnyOf:            "NOT CONTAINS ANY OF",
	SemVerIsOneOf:                   "IS ONE OF",
	SemVerIsNotOneOf:                "IS NOT ONE OF",
	SemVerLess:                      "<",
	SemVerLessOrEquals:              "<=",
	SemVerGreater:                   ">",
	SemVerGreaterOrEquals:           ">=",
	NumberEquals:                    "=",
	NumberNotEquals:                 "!=",
	NumberLess:                      "<",
	NumberLessOrEquals:              "<=",
	NumberGreater:                   ">",
	NumberGreaterOrEquals:           ">=",
	SensitiveTextIsOneOf:            "IS ONE OF",
	SensitiveTextIsNotOneOf:         "IS NOT ONE OF",
	DateTimeBefore:                  "BEFORE",
	DateTimeAfter:                   "AFTER",
	SensitiveTextEquals:             "EQUALS",
	SensitiveTextNotEquals:          "NOT EQUALS",
	SensitiveTextStartsWithAnyOf:    "STARTS WITH ANY OF",
	SensitiveTextNotStartsWithAnyOf: "NOT STARTS WITH ANY OF",
	SensitiveTextEndsWithAnyOf:      "ENDS WITH ANY OF",
	SensitiveTextNotEndsWithAnyOf:   "NOT ENDS WITH ANY OF",
	SensitiveArrayContainsAnyOf:     "ARRAY CONTAINS ANY OF",
	SensitiveArrayNotContainsAnyOf:  "ARRAY NOT CONTAINS ANY OF",
	TextEquals:                      "EQUALS",
	TextNotEquals:                   "NOT EQUALS",
	TextStartsWithAnyOf:             "STARTS WITH ANY OF",
	TextNotStartsWithAnyOf:          "NOT STARTS WITH ANY OF",
	TextEndsWithAnyOf:               "ENDS WITH ANY OF",
	TextNotEndsWithAnyOf:            "NOT ENDS WITH ANY OF",
	ArrayContainsAnyOf:              "ARRAY CONTAINS ANY OF",
	ArrayNotContainsAnyOf:           "ARRAY NOT CONTAINS ANY OF",
}

// String returns the human-readable operator name used in evaluation traces.
func (c Comparator) String() string {
	if name, ok := comparatorNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsSensitive reports whether the comparator compares against salted hashes
// instead of cleartext values. Traces must never render the comparison values
// of sensitive comparators.
func (c Comparator) IsSensitive() bool {
	switch c {
	case SensitiveTextIsOneOf, SensitiveTextIsNotOneOf,
		SensitiveTextEquals, SensitiveTextNotEquals,
		SensitiveTextStartsWithAnyOf, SensitiveTextNotStartsWithAnyOf,
		SensitiveTextEndsWithAnyOf, SensitiveTextNotEndsWithAnyOf,
		SensitiveArrayContainsAnyOf, SensitiveArrayNotContainsAnyOf:
		return true
	}
	return false
}

// HasListValue reports whether the comparator's comparison value is a string
// list rather than a single string or number.
func (c Comparator) HasListValue() bool {
	switch c {
	case TextIsOneOf, TextIsNotOneOf, TextContainsAnyOf, TextNotContainsAnyOf,
		SemVerIsOneOf, SemVerIsNotOneOf,
		SensitiveTextIsOneOf, SensitiveTextIsNotOneOf,
		SensitiveTextStartsWithAnyOf, SensitiveTextNotStartsWithAnyOf,
		SensitiveTextEndsWithAnyOf, SensitiveTextNotEndsWithAnyOf,
		SensitiveArrayContainsAnyOf, SensitiveArrayNotContainsAnyOf,
		TextStartsWithAnyOf, TextNotStartsWithAnyOf,
		TextEndsWithAnyOf, TextNotEndsWithAnyOf,
		ArrayContainsAnyOf, ArrayNotContainsAnyOf:
		return true
	}
	return false
}

// PrerequisiteComparator compares a prerequisite flag's evaluated value.
type PrerequisiteComparator int

const (
	PrerequisiteEquals PrerequisiteComparator = iota
	PrerequisiteNotEquals
)

func (c PrerequisiteComparator) String() string {
	if c == PrerequisiteNotEquals {
		return "NOT EQUALS"
	}
	return "EQUALS"
}

// SegmentComparator applies IN / NOT IN semantics to a segment match.
type SegmentComparator int

const (
	SegmentIsIn SegmentComparator = iota
	SegmentIsNotIn
)

func (c SegmentComparator) String() string {
	if c == SegmentIsNotIn {
		return "IS NOT IN SEGMENT"
	}
	return "IS IN SEGMENT"
}

// Package model contains the immutable representation of a downloaded rule
// document: settings, targeting rules, conditions, segments and percentage
// options, plus the user context evaluated against them.
//
// The JSON field names are fixed by the external config schema and are
// deliberately terse; the Go names spell them out.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RedirectMode controls how a client reacts to a document that declares a
// different canonical base URL.
type RedirectMode int

const (
	// RedirectNo adopts the new URL for later requests but does not retry.
	RedirectNo RedirectMode = 0
	// RedirectShould retries once against the new URL and warns about the
	// data-governance mismatch.
	RedirectShould RedirectMode = 1
	// RedirectForce always retries against the new URL.
	RedirectForce RedirectMode = 2
)

// Preferences is the document's preference block.
type Preferences struct {
	BaseURL      string       `json:"u,omitempty"`
	RedirectMode RedirectMode `json:"r"`
	Salt         string       `json:"s,omitempty"`
}

// Segment is a named, AND-combined list of user conditions, referenced by
// index from segment conditions.
type Segment struct {
	Name       string          `json:"n"`
	Conditions []UserCondition `json:"r"`
}

// UserCondition compares a user attribute against a comparison value with
// one of the fixed comparators. Exactly one of StringValue, DoubleValue and
// StringListValue is populated, depending on the comparator.
type UserCondition struct {
	Attribute       string     `json:"a"`
	Comparator      Comparator `json:"c"`
	StringValue     *string    `json:"s,omitempty"`
	DoubleValue     *float64   `json:"d,omitempty"`
	StringListValue []string   `json:"l,omitempty"`
}

// PrerequisiteFlagCondition references another setting by key and compares
// its evaluated value.
type PrerequisiteFlagCondition struct {
	FlagKey    string                 `json:"f"`
	Comparator PrerequisiteComparator `json:"c"`
	Value      SettingValue           `json:"v"`
}

// SegmentCondition references a segment by index in the document's segment
// list.
type SegmentCondition struct {
	Index      int               `json:"s"`
	Comparator SegmentComparator `json:"c"`
}

// ConditionKind discriminates the condition union.
type ConditionKind int

const (
	UserConditionKind ConditionKind = iota
	PrerequisiteConditionKind
	SegmentConditionKind
	invalidConditionKind
)

// Condition is the tagged union of the three condition kinds. Exactly one of
// the pointer fields is set in a well-formed document; Kind reports which.
type Condition struct {
	User         *UserCondition             `json:"u,omitempty"`
	Prerequisite *PrerequisiteFlagCondition `json:"p,omitempty"`
	Segment      *SegmentCondition          `json:"s,omitempty"`
}

// Kind identifies the populated variant.
func (c Condition) Kind() ConditionKind {
	switch {
	case c.User != nil:
		return UserConditionKind
	case c.Prerequisite != nil:
		return PrerequisiteConditionKind
	case c.Segment != nil:
		return SegmentConditionKind
	default:
		return invalidConditionKind
	}
}

// ServedValue is a concrete value plus its variation id.
type ServedValue struct {
	Value       SettingValue `json:"v"`
	VariationID string       `json:"i,omitempty"`
}

// PercentageOption is one slice of a percentage rollout. Weights of a list
// must sum to 100; the invariant is enforced at evaluation time.
type PercentageOption struct {
	Percentage  int          `json:"p"`
	Value       SettingValue `json:"v"`
	VariationID string       `json:"i,omitempty"`
}

// TargetingRule is an AND-combined condition list plus its THEN part: either
// a single served value or a nested percentage-option list.
type TargetingRule struct {
	Conditions        []Condition        `json:"c,omitempty"`
	ServedValue       *ServedValue       `json:"s,omitempty"`
	PercentageOptions []PercentageOption `json:"p,omitempty"`
}

// Setting is one feature flag or config value.
type Setting struct {
	Type                SettingType        `json:"t"`
	PercentageAttribute string             `json:"a,omitempty"`
	TargetingRules      []TargetingRule    `json:"r,omitempty"`
	PercentageOptions   []PercentageOption `json:"p,omitempty"`
	Value               SettingValue       `json:"v"`
	VariationID         string             `json:"i,omitempty"`

	// Stamped once at load time from the owning document; see
	// ConfigDocument fixup. Never mutated afterwards.
	salt     string
	segments []Segment
}

// Salt returns the owning document's hash salt.
func (s *Setting) Salt() string { return s.salt }

// Segments returns the owning document's segment list.
func (s *Setting) Segments() []Segment { return s.segments }

// StampDocument attaches the owning document's salt and segment list to the
// setting. Used for settings constructed outside of ParseConfigDocument
// (overrides, tests).
func (s *Setting) StampDocument(salt string, segments []Segment) {
	s.salt = salt
	s.segments = segments
}

// ConfigDocument is the root of a downloaded rule set. Immutable once
// deserialized.
type ConfigDocument struct {
	Preferences *Preferences        `json:"p,omitempty"`
	Segments    []Segment           `json:"s,omitempty"`
	Settings    map[string]*Setting `json:"f,omitempty"`
}

// Salt returns the document's hash salt, or "" when no preference block is
// present.
func (d *ConfigDocument) Salt() string {
	if d.Preferences == nil {
		return ""
	}
	return d.Preferences.Salt
}

// ErrEmptyConfig indicates an empty or whitespace-only payload.
var ErrEmptyConfig = errors.New("config JSON is empty")

// ParseConfigDocument deserializes a config document payload and runs the
// one-time fixup pass stamping each setting with the document's salt and
// segment list. This happens before any reference escapes, so the document
// can be shared by reference across concurrent evaluations afterwards.
func ParseConfigDocument(payload []byte) (*ConfigDocument, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyConfig
	}

	var doc ConfigDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if doc.Settings == nil {
		return nil, errors.New("invalid config JSON: no settings block")
	}

	salt := doc.Salt()
	for _, setting := range doc.Settings {
		setting.salt = salt
		setting.segments = doc.Segments
	}
	return &doc, nil
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDocumentStampsSettings(t *testing.T) {
	payload := `{
		"p": {"u": "https://cdn.example.com", "r": 1, "s": "doc-salt"},
		"s": [{"n": "Beta Users", "r": [{"a": "Email", "c": 16, "l": ["h1"]}]}],
		"f": {
			"flagA": {"t": 0, "v": {"b": true}},
			"flagB": {"t": 1, "v": {"s": "on"}}
		}
	}`

	doc, err := ParseConfigDocument([]byte(payload))
	require.NoError(t, err)

	require.NotNil(t, doc.Preferences)
	assert.Equal(t, RedirectShould, doc.Preferences.RedirectMode)
	assert.Equal(t, "doc-salt", doc.Salt())

	require.Len(t, doc.Settings, 2)
	for key, setting := range doc.Settings {
		assert.Equal(t, "doc-salt", setting.Salt(), key)
		require.Len(t, setting.Segments(), 1, key)
		assert.Equal(t, "Beta Users", setting.Segments()[0].Name, key)
	}
}

func TestParseConfigDocumentWithoutPreferences(t *testing.T) {
	doc, err := ParseConfigDocument([]byte(`{"f":{"flag":{"t":0,"v":{"b":false}}}}`))
	require.NoError(t, err)
	assert.Equal(t, "", doc.Salt())
	assert.Empty(t, doc.Settings["flag"].Segments())
}

func TestParseConfigDocumentErrors(t *testing.T) {
	_, err := ParseConfigDocument(nil)
	assert.ErrorIs(t, err, ErrEmptyConfig)

	_, err = ParseConfigDocument([]byte("{broken"))
	assert.Error(t, err)

	_, err = ParseConfigDocument([]byte(`{"p":{"s":"x"}}`))
	assert.Error(t, err, "document without a settings block must be rejected")
}

func TestConditionKind(t *testing.T) {
	assert.Equal(t, UserConditionKind, Condition{User: &UserCondition{}}.Kind())
	assert.Equal(t, PrerequisiteConditionKind, Condition{Prerequisite: &PrerequisiteFlagCondition{}}.Kind())
	assert.Equal(t, SegmentConditionKind, Condition{Segment: &SegmentCondition{}}.Kind())
	assert.Equal(t, invalidConditionKind, Condition{}.Kind())
}

func TestSettingValueExactlyOne(t *testing.T) {
	b := true
	s := "text"

	v, err := (SettingValue{BoolValue: &b}).Value()
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = (SettingValue{}).Value()
	assert.ErrorIs(t, err, ErrNoSettingValue)

	_, err = (SettingValue{BoolValue: &b, StringValue: &s}).Value()
	assert.ErrorIs(t, err, ErrNoSettingValue)
}

func TestSettingValueForType(t *testing.T) {
	n := 42
	v, err := (SettingValue{IntValue: &n}).ValueForType(IntType)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = (SettingValue{IntValue: &n}).ValueForType(StringType)
	assert.ErrorIs(t, err, ErrNoSettingValue)
}

func TestTypeOfAndNewSettingValue(t *testing.T) {
	tests := []struct {
		value any
		want  SettingType
	}{
		{true, BoolType},
		{"s", StringType},
		{7, IntType},
		{1.5, DoubleType},
		{[]string{"x"}, UnknownType},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TypeOf(tc.value))
		if tc.want == UnknownType {
			continue
		}
		wrapped := NewSettingValue(tc.value)
		got, err := wrapped.ValueForType(tc.want)
		require.NoError(t, err)
		assert.Equal(t, tc.value, got)
	}
}

func TestComparatorMetadata(t *testing.T) {
	assert.Equal(t, "IS ONE OF", TextIsOneOf.String())
	assert.Equal(t, "STARTS WITH ANY OF", SensitiveTextStartsWithAnyOf.String())
	assert.Equal(t, "UNKNOWN", Comparator(99).String())

	assert.True(t, SensitiveTextIsOneOf.IsSensitive())
	assert.True(t, SensitiveArrayNotContainsAnyOf.IsSensitive())
	assert.False(t, TextEquals.IsSensitive())

	assert.True(t, TextIsOneOf.HasListValue())
	assert.True(t, ArrayContainsAnyOf.HasListValue())
	assert.False(t, NumberEquals.HasListValue())
	assert.False(t, SensitiveTextEquals.HasListValue())
}

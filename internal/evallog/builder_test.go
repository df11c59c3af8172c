package evallog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TimurManjosov/goflagclient/internal/model"
)

func TestBuilderIndentation(t *testing.T) {
	b := New()
	b.NewLine("Evaluating 'flag'")
	b.IncIndent()
	b.NewLine("- IF User.Email IS ONE OF ['a@x.com']")
	b.IncIndent()
	b.NewLine("=> no match")
	b.DecIndent()
	b.DecIndent()
	b.NewLine("Returning 'false'.")

	want := "Evaluating 'flag'\n" +
		"  - IF User.Email IS ONE OF ['a@x.com']\n" +
		"    => no match\n" +
		"Returning 'false'."
	assert.Equal(t, want, b.String())
}

func TestBuilderDecIndentClampsAtZero(t *testing.T) {
	b := New()
	b.DecIndent().NewLine("top")
	assert.Equal(t, "top", b.String())
}

func TestBuilderAppendContinuesLine(t *testing.T) {
	b := New()
	b.NewLine("- IF condition").Append(" => %s", "true")
	assert.Equal(t, "- IF condition => true", b.String())
}

func TestFormatUserConditionCleartext(t *testing.T) {
	v := "admin"
	c := &model.UserCondition{Attribute: "Role", Comparator: model.TextEquals, StringValue: &v}
	assert.Equal(t, "User.Role EQUALS 'admin'", FormatUserCondition(c))

	d := 21.5
	c = &model.UserCondition{Attribute: "Age", Comparator: model.NumberGreater, DoubleValue: &d}
	assert.Equal(t, "User.Age > '21.5'", FormatUserCondition(c))

	c = &model.UserCondition{
		Attribute:       "Country",
		Comparator:      model.TextIsOneOf,
		StringListValue: []string{"US", "CA"},
	}
	assert.Equal(t, "User.Country IS ONE OF ['US', 'CA']", FormatUserCondition(c))
}

func TestFormatUserConditionMasksSensitiveValues(t *testing.T) {
	hash := "53e9dcge1d2d37a4bee3c01d1e32ccaa09b4e53dcbe0df6fd94d99c0a03ebfbd"
	c := &model.UserCondition{
		Attribute:   "Email",
		Comparator:  model.SensitiveTextEquals,
		StringValue: &hash,
	}
	assert.Equal(t, "User.Email EQUALS <1 hashed value>", FormatUserCondition(c))

	c = &model.UserCondition{
		Attribute:       "Email",
		Comparator:      model.SensitiveTextIsOneOf,
		StringListValue: []string{hash, hash, hash},
	}
	assert.Equal(t, "User.Email IS ONE OF <3 hashed values>", FormatUserCondition(c))
}

func TestFormatUserConditionTruncatesLongLists(t *testing.T) {
	values := make([]string, 14)
	for i := range values {
		values[i] = fmt.Sprintf("v%d", i)
	}
	c := &model.UserCondition{
		Attribute:       "Country",
		Comparator:      model.TextIsOneOf,
		StringListValue: values,
	}

	got := FormatUserCondition(c)
	assert.Contains(t, got, "'v9'")
	assert.NotContains(t, got, "'v10'")
	assert.Contains(t, got, ", ... <4 more>]")
}

func TestFormatPrerequisiteCondition(t *testing.T) {
	on := "on"
	c := &model.PrerequisiteFlagCondition{
		FlagKey:    "mainFlag",
		Comparator: model.PrerequisiteEquals,
		Value:      model.SettingValue{StringValue: &on},
	}
	assert.Equal(t, "Flag 'mainFlag' EQUALS 'on'", FormatPrerequisiteCondition(c))

	c.Value = model.SettingValue{}
	assert.Equal(t, "Flag 'mainFlag' EQUALS '<invalid value>'", FormatPrerequisiteCondition(c))
}

func TestFormatSegmentCondition(t *testing.T) {
	c := &model.SegmentCondition{Index: 0, Comparator: model.SegmentIsNotIn}
	assert.Equal(t, "User IS NOT IN SEGMENT 'Beta Users'", FormatSegmentCondition(c, "Beta Users"))
}

// Package evallog builds the human-readable trace of an evaluation decision
// tree. Builders are created only when the log sink reports the target level
// as observable, so trace construction cost is avoided otherwise.
package evallog

import (
	"fmt"
	"strings"

	"github.com/TimurManjosov/goflagclient/internal/model"
)

// stringListMaxLength caps how many comparison-list entries a trace line
// renders before collapsing the rest into a count.
const stringListMaxLength = 10

// Builder accumulates an indented evaluation trace.
type Builder struct {
	sb     strings.Builder
	indent int
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{}
}

// IncIndent increases the indentation of subsequent lines.
func (b *Builder) IncIndent() *Builder {
	b.indent++
	return b
}

// DecIndent decreases the indentation of subsequent lines.
func (b *Builder) DecIndent() *Builder {
	if b.indent > 0 {
		b.indent--
	}
	return b
}

// NewLine starts a new indented line with the given content.
func (b *Builder) NewLine(format string, args ...any) *Builder {
	if b.sb.Len() > 0 {
		b.sb.WriteByte('\n')
	}
	b.sb.WriteString(strings.Repeat("  ", b.indent))
	if len(args) == 0 {
		b.sb.WriteString(format)
	} else {
		fmt.Fprintf(&b.sb, format, args...)
	}
	return b
}

// Append adds content to the current line.
func (b *Builder) Append(format string, args ...any) *Builder {
	if len(args) == 0 {
		b.sb.WriteString(format)
	} else {
		fmt.Fprintf(&b.sb, format, args...)
	}
	return b
}

// String returns the accumulated trace.
func (b *Builder) String() string {
	return b.sb.String()
}

// FormatUserCondition renders a user condition as
// "User.<attr> <OP> '<value>'". Sensitive comparators render a hash-count
// placeholder instead of the real comparison data; long value lists are
// truncated.
func FormatUserCondition(c *model.UserCondition) string {
	return fmt.Sprintf("User.%s %s %s", c.Attribute, c.Comparator, formatComparisonValue(c))
}

// FormatPrerequisiteCondition renders a prerequisite-flag condition header.
func FormatPrerequisiteCondition(c *model.PrerequisiteFlagCondition) string {
	value, err := c.Value.Value()
	if err != nil {
		value = "<invalid value>"
	}
	return fmt.Sprintf("Flag '%s' %s '%v'", c.FlagKey, c.Comparator, value)
}

// FormatSegmentCondition renders a segment condition header.
func FormatSegmentCondition(c *model.SegmentCondition, segmentName string) string {
	return fmt.Sprintf("User %s '%s'", c.Comparator, segmentName)
}

func formatComparisonValue(c *model.UserCondition) string {
	if c.Comparator.IsSensitive() {
		count := 1
		if c.Comparator.HasListValue() {
			count = len(c.StringListValue)
		}
		if count == 1 {
			return "<1 hashed value>"
		}
		return fmt.Sprintf("<%d hashed values>", count)
	}

	switch {
	case c.Comparator.HasListValue():
		return formatStringList(c.StringListValue)
	case c.StringValue != nil:
		return fmt.Sprintf("'%s'", *c.StringValue)
	case c.DoubleValue != nil:
		return fmt.Sprintf("'%v'", *c.DoubleValue)
	default:
		return "<invalid value>"
	}
}

func formatStringList(values []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		if i == stringListMaxLength {
			fmt.Fprintf(&sb, ", ... <%d more>", len(values)-stringListMaxLength)
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('\'')
		sb.WriteString(v)
		sb.WriteByte('\'')
	}
	sb.WriteByte(']')
	return sb.String()
}

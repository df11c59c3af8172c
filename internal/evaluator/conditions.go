package evaluator

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/TimurManjosov/goflagclient/internal/evallog"
	"github.com/TimurManjosov/goflagclient/internal/model"
)

const (
	reasonMissingUser            = "cannot evaluate, User Object is missing"
	reasonInvalidComparisonValue = "cannot evaluate, comparison value is missing or invalid"
)

func reasonMissingAttribute(attribute string) string {
	return fmt.Sprintf("cannot evaluate, the User.%s attribute is missing", attribute)
}

func reasonInvalidAttribute(attribute, detail string) string {
	return fmt.Sprintf("cannot evaluate, the User.%s attribute is invalid (%s)", attribute, detail)
}

// evaluateConditions applies AND semantics with short-circuiting: the result
// is a match only if every condition matches; evaluation stops at the first
// non-match or "cannot evaluate" outcome. Fatal config-model violations
// abort with an error instead.
func (e *Evaluator) evaluateConditions(ctx evalContext, conditions []model.Condition, contextSalt string) (conditionResult, error) {
	trace := ctx.state.trace

	for i := range conditions {
		cond := &conditions[i]
		if trace != nil {
			if i == 0 {
				trace.NewLine("- IF ")
			} else {
				trace.IncIndent()
				trace.NewLine("AND ")
				trace.DecIndent()
			}
		}

		var result conditionResult
		var err error
		switch cond.Kind() {
		case model.UserConditionKind:
			if trace != nil {
				trace.Append("%s", evallog.FormatUserCondition(cond.User))
			}
			result = e.evaluateUserCondition(ctx, cond.User, contextSalt)
		case model.PrerequisiteConditionKind:
			result, err = e.evaluatePrerequisiteCondition(ctx, cond.Prerequisite)
		case model.SegmentConditionKind:
			result, err = e.evaluateSegmentCondition(ctx, cond.Segment)
		default:
			return conditionResult{}, invalidConfigModel("setting '%s' has a condition with no populated variant", ctx.key)
		}
		if err != nil {
			return conditionResult{}, err
		}

		if trace != nil {
			switch result.outcome {
			case outcomeMatch:
				trace.Append(" => true")
			case outcomeNoMatch:
				trace.Append(" => false")
				if i+1 < len(conditions) {
					trace.Append(", skipping the remaining AND conditions")
				}
			case outcomeCannotEvaluate:
				trace.Append(" => %s", result.reason)
			}
		}
		if result.outcome != outcomeMatch {
			return result, nil
		}
	}
	return matchResult(true), nil
}

// evaluateUserCondition dispatches on the comparator family. Every family
// requires the named user attribute to be present; a missing or empty
// attribute yields "cannot evaluate", logged once per top-level call.
func (e *Evaluator) evaluateUserCondition(ctx evalContext, c *model.UserCondition, contextSalt string) conditionResult {
	if ctx.state.user == nil {
		ctx.state.logMissingUserOnce(ctx.key)
		return cannotEvaluate(reasonMissingUser)
	}

	attrValue, ok := ctx.state.user.Attribute(c.Attribute)
	if !ok || attrValue == "" {
		ctx.state.logMissingAttributeOnce(ctx.key, c.Attribute)
		return cannotEvaluate(reasonMissingAttribute(c.Attribute))
	}

	configSalt := ctx.setting.Salt()

	switch c.Comparator {
	case model.TextIsOneOf, model.TextIsNotOneOf,
		model.SensitiveTextIsOneOf, model.SensitiveTextIsNotOneOf:
		return e.textIsOneOf(ctx, c, attrValue, configSalt, contextSalt)

	case model.TextEquals, model.TextNotEquals,
		model.SensitiveTextEquals, model.SensitiveTextNotEquals:
		return e.textEquals(ctx, c, attrValue, configSalt, contextSalt)

	case model.TextContainsAnyOf, model.TextNotContainsAnyOf:
		return e.textContainsAnyOf(ctx, c, attrValue)

	case model.TextStartsWithAnyOf, model.TextNotStartsWithAnyOf,
		model.TextEndsWithAnyOf, model.TextNotEndsWithAnyOf:
		return e.textSliceCompare(ctx, c, attrValue)

	case model.SensitiveTextStartsWithAnyOf, model.SensitiveTextNotStartsWithAnyOf,
		model.SensitiveTextEndsWithAnyOf, model.SensitiveTextNotEndsWithAnyOf:
		return e.sensitiveTextSliceCompare(ctx, c, attrValue, configSalt, contextSalt)

	case model.SemVerIsOneOf, model.SemVerIsNotOneOf:
		return e.semverIsOneOf(c, attrValue)

	case model.SemVerLess, model.SemVerLessOrEquals,
		model.SemVerGreater, model.SemVerGreaterOrEquals:
		return e.semverCompare(c, attrValue)

	case model.NumberEquals, model.NumberNotEquals,
		model.NumberLess, model.NumberLessOrEquals,
		model.NumberGreater, model.NumberGreaterOrEquals:
		return e.numberCompare(c, attrValue)

	case model.DateTimeBefore, model.DateTimeAfter:
		return e.dateTimeCompare(c, attrValue)

	case model.ArrayContainsAnyOf, model.ArrayNotContainsAnyOf,
		model.SensitiveArrayContainsAnyOf, model.SensitiveArrayNotContainsAnyOf:
		return e.arrayContainsAnyOf(ctx, c, attrValue, configSalt, contextSalt)

	default:
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
}

// textAttribute coerces the attribute to a string. Non-string values are
// stringified with a warning.
func (e *Evaluator) textAttribute(ctx evalContext, attribute string, value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	text := stringifyAttribute(value)
	e.log.Warnf("the User.%s attribute is not a string value, converting to '%s' for setting '%s'",
		attribute, text, ctx.key)
	return text
}

func (e *Evaluator) textIsOneOf(ctx evalContext, c *model.UserCondition, attrValue any, configSalt, contextSalt string) conditionResult {
	if c.StringListValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	text := e.textAttribute(ctx, c.Attribute, attrValue)
	if c.Comparator.IsSensitive() {
		text = saltedHash([]byte(text), configSalt, contextSalt)
	}
	matched := slices.Contains(c.StringListValue, text)
	if c.Comparator == model.TextIsNotOneOf || c.Comparator == model.SensitiveTextIsNotOneOf {
		matched = !matched
	}
	return matchResult(matched)
}

func (e *Evaluator) textEquals(ctx evalContext, c *model.UserCondition, attrValue any, configSalt, contextSalt string) conditionResult {
	if c.StringValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	text := e.textAttribute(ctx, c.Attribute, attrValue)
	if c.Comparator.IsSensitive() {
		text = saltedHash([]byte(text), configSalt, contextSalt)
	}
	matched := text == *c.StringValue
	if c.Comparator == model.TextNotEquals || c.Comparator == model.SensitiveTextNotEquals {
		matched = !matched
	}
	return matchResult(matched)
}

func (e *Evaluator) textContainsAnyOf(ctx evalContext, c *model.UserCondition, attrValue any) conditionResult {
	if c.StringListValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	text := e.textAttribute(ctx, c.Attribute, attrValue)
	matched := false
	for _, entry := range c.StringListValue {
		if strings.Contains(text, entry) {
			matched = true
			break
		}
	}
	if c.Comparator == model.TextNotContainsAnyOf {
		matched = !matched
	}
	return matchResult(matched)
}

func (e *Evaluator) textSliceCompare(ctx evalContext, c *model.UserCondition, attrValue any) conditionResult {
	if c.StringListValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	text := e.textAttribute(ctx, c.Attribute, attrValue)
	prefix := c.Comparator == model.TextStartsWithAnyOf || c.Comparator == model.TextNotStartsWithAnyOf

	matched := false
	for _, entry := range c.StringListValue {
		if prefix && strings.HasPrefix(text, entry) {
			matched = true
			break
		}
		if !prefix && strings.HasSuffix(text, entry) {
			matched = true
			break
		}
	}
	if c.Comparator == model.TextNotStartsWithAnyOf || c.Comparator == model.TextNotEndsWithAnyOf {
		matched = !matched
	}
	return matchResult(matched)
}

// sensitiveTextSliceCompare handles the hashed starts/ends-with variants.
// Each comparison token encodes the expected slice length as "<len>_<hash>";
// only that UTF-8 byte slice of the attribute is hashed and compared.
func (e *Evaluator) sensitiveTextSliceCompare(ctx evalContext, c *model.UserCondition, attrValue any, configSalt, contextSalt string) conditionResult {
	if c.StringListValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	textBytes := []byte(e.textAttribute(ctx, c.Attribute, attrValue))
	prefix := c.Comparator == model.SensitiveTextStartsWithAnyOf || c.Comparator == model.SensitiveTextNotStartsWithAnyOf

	matched := false
	for _, entry := range c.StringListValue {
		lengthPart, hashPart, ok := strings.Cut(entry, "_")
		if !ok || hashPart == "" {
			return cannotEvaluate(reasonInvalidComparisonValue)
		}
		length, err := strconv.Atoi(strings.TrimSpace(lengthPart))
		if err != nil || length < 0 {
			return cannotEvaluate(reasonInvalidComparisonValue)
		}
		if length > len(textBytes) {
			continue
		}
		var chunk []byte
		if prefix {
			chunk = textBytes[:length]
		} else {
			chunk = textBytes[len(textBytes)-length:]
		}
		if saltedHash(chunk, configSalt, contextSalt) == hashPart {
			matched = true
			break
		}
	}
	if c.Comparator == model.SensitiveTextNotStartsWithAnyOf || c.Comparator == model.SensitiveTextNotEndsWithAnyOf {
		matched = !matched
	}
	return matchResult(matched)
}

// semverIsOneOf preserves a backward-compatibility quirk: an invalid or
// empty comparison entry anywhere in the list short-circuits the whole
// evaluation to "no match" (not an error), even for the negated variant and
// even when an earlier entry already matched.
func (e *Evaluator) semverIsOneOf(c *model.UserCondition, attrValue any) conditionResult {
	if c.StringListValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	attrVersion, result := parseSemVerAttribute(c.Attribute, attrValue)
	if result != nil {
		return *result
	}

	matched := false
	for _, entry := range c.StringListValue {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return matchResult(false)
		}
		version, err := semver.NewVersion(entry)
		if err != nil {
			return matchResult(false)
		}
		if version.Equal(attrVersion) {
			matched = true
		}
	}
	if c.Comparator == model.SemVerIsNotOneOf {
		matched = !matched
	}
	return matchResult(matched)
}

func (e *Evaluator) semverCompare(c *model.UserCondition, attrValue any) conditionResult {
	if c.StringValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	attrVersion, result := parseSemVerAttribute(c.Attribute, attrValue)
	if result != nil {
		return *result
	}
	// An unparseable comparison value is "no match", not an error.
	compVersion, err := semver.NewVersion(strings.TrimSpace(*c.StringValue))
	if err != nil {
		return matchResult(false)
	}

	cmp := attrVersion.Compare(compVersion)
	switch c.Comparator {
	case model.SemVerLess:
		return matchResult(cmp < 0)
	case model.SemVerLessOrEquals:
		return matchResult(cmp <= 0)
	case model.SemVerGreater:
		return matchResult(cmp > 0)
	default:
		return matchResult(cmp >= 0)
	}
}

func parseSemVerAttribute(attribute string, value any) (*semver.Version, *conditionResult) {
	text, ok := value.(string)
	if !ok {
		text = stringifyAttribute(value)
	}
	version, err := semver.NewVersion(strings.TrimSpace(text))
	if err != nil {
		r := cannotEvaluate(reasonInvalidAttribute(attribute, fmt.Sprintf("'%s' is not a valid semantic version", text)))
		return nil, &r
	}
	return version, nil
}

func (e *Evaluator) numberCompare(c *model.UserCondition, attrValue any) conditionResult {
	if c.DoubleValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	number, ok := numberAttribute(attrValue)
	if !ok {
		return cannotEvaluate(reasonInvalidAttribute(c.Attribute,
			fmt.Sprintf("'%v' is not a valid decimal number", attrValue)))
	}

	comparison := *c.DoubleValue
	switch c.Comparator {
	case model.NumberEquals:
		return matchResult(number == comparison)
	case model.NumberNotEquals:
		return matchResult(number != comparison)
	case model.NumberLess:
		return matchResult(number < comparison)
	case model.NumberLessOrEquals:
		return matchResult(number <= comparison)
	case model.NumberGreater:
		return matchResult(number > comparison)
	default:
		return matchResult(number >= comparison)
	}
}

func (e *Evaluator) dateTimeCompare(c *model.UserCondition, attrValue any) conditionResult {
	if c.DoubleValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	seconds, ok := epochSecondsAttribute(attrValue)
	if !ok {
		return cannotEvaluate(reasonInvalidAttribute(c.Attribute,
			fmt.Sprintf("'%v' is not a valid Unix timestamp", attrValue)))
	}

	if c.Comparator == model.DateTimeBefore {
		return matchResult(seconds < *c.DoubleValue)
	}
	return matchResult(seconds > *c.DoubleValue)
}

func (e *Evaluator) arrayContainsAnyOf(ctx evalContext, c *model.UserCondition, attrValue any, configSalt, contextSalt string) conditionResult {
	if c.StringListValue == nil {
		return cannotEvaluate(reasonInvalidComparisonValue)
	}
	array, ok := stringSliceAttribute(attrValue)
	if !ok {
		return cannotEvaluate(reasonInvalidAttribute(c.Attribute, "the value is not a valid string array"))
	}

	sensitive := c.Comparator.IsSensitive()
	elements := make(map[string]struct{}, len(array))
	for _, item := range array {
		if sensitive {
			item = saltedHash([]byte(item), configSalt, contextSalt)
		}
		elements[item] = struct{}{}
	}

	matched := false
	for _, entry := range c.StringListValue {
		if _, ok := elements[entry]; ok {
			matched = true
			break
		}
	}
	if c.Comparator == model.ArrayNotContainsAnyOf || c.Comparator == model.SensitiveArrayNotContainsAnyOf {
		matched = !matched
	}
	return matchResult(matched)
}

// evaluatePrerequisiteCondition recursively evaluates the referenced flag
// and compares its value. The current key is pushed onto the shared visited
// stack around the recursion; revisiting a key on the path is a fatal
// circular-dependency error naming the full cycle.
func (e *Evaluator) evaluatePrerequisiteCondition(ctx evalContext, c *model.PrerequisiteFlagCondition) (conditionResult, error) {
	state := ctx.state
	trace := state.trace
	if trace != nil {
		trace.Append("%s", evallog.FormatPrerequisiteCondition(c))
	}

	target, ok := state.settings[c.FlagKey]
	if !ok {
		return conditionResult{}, invalidConfigModel(
			"setting '%s' references prerequisite flag '%s' which is missing from the config", ctx.key, c.FlagKey)
	}
	comparisonValue, err := c.Value.Value()
	if err != nil {
		return conditionResult{}, invalidConfigModel(
			"prerequisite condition of setting '%s' has a missing or invalid comparison value", ctx.key)
	}

	state.visited = append(state.visited, ctx.key)
	if slices.Contains(state.visited[:len(state.visited)-1], c.FlagKey) || c.FlagKey == ctx.key {
		chain := append(slices.Clone(state.visited), c.FlagKey)
		state.visited = state.visited[:len(state.visited)-1]
		return conditionResult{}, &EvaluationError{
			Code: ErrCodeCircularDependency,
			Message: fmt.Sprintf("circular dependency detected between the following depending flags: ['%s']",
				strings.Join(chain, "' -> '")),
		}
	}

	if trace != nil {
		trace.NewLine("(").IncIndent()
		trace.NewLine("Evaluating prerequisite flag '%s':", c.FlagKey)
	}

	result, err := e.evaluateSetting(ctx.child(c.FlagKey, target))
	state.visited = state.visited[:len(state.visited)-1]
	if err != nil {
		return conditionResult{}, err
	}

	if model.TypeOf(result.Value) != model.TypeOf(comparisonValue) {
		return conditionResult{}, invalidConfigModel(
			"the type of the value of prerequisite flag '%s' (%T) does not match the type of the comparison value (%T)",
			c.FlagKey, result.Value, comparisonValue)
	}

	matched := result.Value == comparisonValue
	if c.Comparator == model.PrerequisiteNotEquals {
		matched = !matched
	}

	if trace != nil {
		trace.NewLine("Prerequisite flag evaluation result: '%v'.", result.Value)
		trace.NewLine("Condition (%s) evaluates to %v.", evallog.FormatPrerequisiteCondition(c), matched)
		trace.DecIndent().NewLine(")")
	}
	return matchResult(matched), nil
}

// evaluateSegmentCondition resolves the referenced segment's AND-condition
// list with the segment name as the salt context, then applies the IN /
// NOT-IN comparator. "Cannot evaluate" outcomes propagate unchanged and are
// never inverted.
func (e *Evaluator) evaluateSegmentCondition(ctx evalContext, c *model.SegmentCondition) (conditionResult, error) {
	state := ctx.state

	segments := ctx.setting.Segments()
	if c.Index < 0 || c.Index >= len(segments) {
		return conditionResult{}, invalidConfigModel(
			"setting '%s' references segment index %d which is out of range", ctx.key, c.Index)
	}
	segment := &segments[c.Index]

	if state.trace != nil {
		state.trace.Append("%s", evallog.FormatSegmentCondition(c, segment.Name))
	}

	if state.user == nil {
		state.logMissingUserOnce(ctx.key)
		return cannotEvaluate(reasonMissingUser), nil
	}
	if len(segment.Conditions) == 0 {
		return conditionResult{}, invalidConfigModel("segment '%s' has no conditions", segment.Name)
	}

	trace := state.trace
	if trace != nil {
		trace.NewLine("(").IncIndent()
		trace.NewLine("Evaluating segment '%s':", segment.Name)
	}

	inner := matchResult(true)
	for i := range segment.Conditions {
		cond := &segment.Conditions[i]
		if trace != nil {
			if i == 0 {
				trace.NewLine("- IF %s", evallog.FormatUserCondition(cond))
			} else {
				trace.NewLine("  AND %s", evallog.FormatUserCondition(cond))
			}
		}
		result := e.evaluateUserCondition(ctx, cond, segment.Name)
		if trace != nil {
			switch result.outcome {
			case outcomeMatch:
				trace.Append(" => true")
			case outcomeNoMatch:
				trace.Append(" => false")
				if i+1 < len(segment.Conditions) {
					trace.Append(", skipping the remaining AND conditions")
				}
			case outcomeCannotEvaluate:
				trace.Append(" => %s", result.reason)
			}
		}
		if result.outcome != outcomeMatch {
			inner = result
			break
		}
	}

	if trace != nil {
		if inner.outcome == outcomeCannotEvaluate {
			trace.NewLine("Segment evaluation result: %s.", inner.reason)
		} else {
			trace.NewLine("Segment evaluation result: User %s.", segmentMembership(inner.outcome == outcomeMatch))
		}
		trace.DecIndent().NewLine(")")
	}

	if inner.outcome == outcomeCannotEvaluate {
		return inner, nil
	}
	matched := inner.outcome == outcomeMatch
	if c.Comparator == model.SegmentIsNotIn {
		matched = !matched
	}
	return matchResult(matched), nil
}

func segmentMembership(isIn bool) string {
	if isIn {
		return "IS IN SEGMENT"
	}
	return "IS NOT IN SEGMENT"
}

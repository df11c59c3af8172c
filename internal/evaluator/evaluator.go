// Package evaluator implements the rollout evaluation engine: targeting
// rules, percentage rollouts, prerequisite-flag recursion and segment
// resolution over an immutable config document.
package evaluator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TimurManjosov/goflagclient/internal/evallog"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
)

// Result is the outcome of a successful evaluation.
type Result struct {
	Value                   any
	VariationID             string
	MatchedTargetingRule    *model.TargetingRule
	MatchedPercentageOption *model.PercentageOption
}

// Evaluator computes deterministic rule-based evaluation for settings.
// It is stateless and safe for concurrent use.
type Evaluator struct {
	log logger.Logger
}

// New creates an Evaluator logging through the given sink.
func New(log logger.Logger) *Evaluator {
	return &Evaluator{log: log}
}

// Evaluate resolves the value of the named setting for the given user.
// defaultValue is only used for type checking here; fallback on error is the
// caller's responsibility. A nil defaultValue skips the type check.
//
// Evaluation is reproducible: the same (settings, key, user) triple always
// yields the same result.
func (e *Evaluator) Evaluate(settings map[string]*model.Setting, key string, defaultValue any, user *model.User) (Result, error) {
	setting, ok := settings[key]
	if !ok {
		return Result{}, &EvaluationError{
			Code: ErrCodeSettingKeyMissing,
			Message: fmt.Sprintf("failed to evaluate setting '%s' (the key was not found in config JSON); available keys: %s",
				key, formatAvailableKeys(settings)),
		}
	}

	if defaultValue != nil {
		defaultType := model.TypeOf(defaultValue)
		if defaultType == model.UnknownType {
			return Result{}, &EvaluationError{
				Code:    ErrCodeTypeMismatch,
				Message: fmt.Sprintf("the default value for setting '%s' has unsupported type %T", key, defaultValue),
			}
		}
		if setting.Type != model.UnknownType && setting.Type != defaultType {
			return Result{}, &EvaluationError{
				Code: ErrCodeTypeMismatch,
				Message: fmt.Sprintf("the type of the default value (%s) does not match the declared type of setting '%s' (%s)",
					defaultType, key, setting.Type),
			}
		}
	}

	state := &evalState{
		settings: settings,
		user:     user,
		log:      e.log,
	}
	// The trace is non-trivial to build, so skip it entirely when the
	// target level is not observable.
	if e.log.Enabled(logger.LevelInfo) {
		state.trace = evallog.New()
		state.trace.NewLine("Evaluating '%s'", key)
		if user != nil {
			state.trace.Append(" for User '%s'", user.String())
		}
		state.trace.IncIndent()
	}

	ctx := evalContext{state: state, key: key, setting: setting}
	result, err := e.evaluateSetting(ctx)

	if state.trace != nil {
		state.trace.DecIndent()
		if err != nil {
			state.trace.NewLine("Evaluation failed: %s.", err.Error())
		} else {
			state.trace.NewLine("Returning '%v'.", result.Value)
		}
		e.log.Infof("%s", state.trace.String())
	}
	return result, err
}

// evaluateSetting walks targeting rules first, then the setting's own
// percentage options, then falls back to the default served value.
func (e *Evaluator) evaluateSetting(ctx evalContext) (Result, error) {
	if len(ctx.setting.TargetingRules) > 0 {
		result, matched, err := e.evaluateTargetingRules(ctx)
		if err != nil || matched {
			return result, err
		}
	}

	if len(ctx.setting.PercentageOptions) > 0 {
		option, value, selected, err := e.evaluatePercentageOptions(ctx, ctx.setting.PercentageOptions)
		if err != nil {
			return Result{}, err
		}
		if selected {
			return Result{
				Value:                   value,
				VariationID:             option.VariationID,
				MatchedPercentageOption: option,
			}, nil
		}
	}

	value, err := ctx.setting.Value.ValueForType(ctx.setting.Type)
	if err != nil {
		return Result{}, invalidConfigModel("setting '%s' has a missing or invalid default value (%v)", ctx.key, err)
	}
	return Result{Value: value, VariationID: ctx.setting.VariationID}, nil
}

// evaluateTargetingRules evaluates rules in declared order; the first rule
// whose AND-combined condition list fully matches wins. A rule whose
// percentage-option THEN yields no selection is skipped and evaluation
// continues with the next rule.
func (e *Evaluator) evaluateTargetingRules(ctx evalContext) (Result, bool, error) {
	trace := ctx.state.trace
	if trace != nil {
		trace.NewLine("Evaluating targeting rules and applying the first match if any:")
		trace.IncIndent()
		defer trace.DecIndent()
	}

	for i := range ctx.setting.TargetingRules {
		rule := &ctx.setting.TargetingRules[i]

		condResult, err := e.evaluateConditions(ctx, rule.Conditions, ctx.key)
		if err != nil {
			return Result{}, false, err
		}
		if condResult.outcome != outcomeMatch {
			e.traceRuleConsequence(ctx, rule, condResult)
			continue
		}

		if rule.ServedValue != nil {
			value, err := rule.ServedValue.Value.ValueForType(ctx.setting.Type)
			if err != nil {
				return Result{}, false, invalidConfigModel(
					"targeting rule of setting '%s' serves a missing or invalid value (%v)", ctx.key, err)
			}
			if trace != nil {
				trace.NewLine("THEN '%v' => MATCH, applying rule", value)
			}
			return Result{
				Value:                value,
				VariationID:          rule.ServedValue.VariationID,
				MatchedTargetingRule: rule,
			}, true, nil
		}

		if len(rule.PercentageOptions) > 0 {
			option, value, selected, err := e.evaluatePercentageOptions(ctx, rule.PercentageOptions)
			if err != nil {
				return Result{}, false, err
			}
			if !selected {
				if trace != nil {
					trace.NewLine("The current targeting rule is ignored and the evaluation continues with the next rule.")
				}
				continue
			}
			if trace != nil {
				trace.NewLine("THEN %% options => MATCH, applying rule")
			}
			return Result{
				Value:                   value,
				VariationID:             option.VariationID,
				MatchedTargetingRule:    rule,
				MatchedPercentageOption: option,
			}, true, nil
		}

		return Result{}, false, invalidConfigModel("targeting rule of setting '%s' has no consequence", ctx.key)
	}
	return Result{}, false, nil
}

func (e *Evaluator) traceRuleConsequence(ctx evalContext, rule *model.TargetingRule, condResult conditionResult) {
	trace := ctx.state.trace
	if trace == nil {
		return
	}
	switch condResult.outcome {
	case outcomeCannotEvaluate:
		trace.NewLine("THEN => %s", condResult.reason)
	default:
		trace.NewLine("THEN => no match")
	}
}

// evaluatePercentageOptions resolves a percentage-option list through
// deterministic bucketing. The boolean return reports whether an option was
// selected; "no selection" (missing user or bucketing attribute) is not an
// error here so the caller can skip rule-level option lists.
func (e *Evaluator) evaluatePercentageOptions(ctx evalContext, options []model.PercentageOption) (*model.PercentageOption, any, bool, error) {
	trace := ctx.state.trace

	if ctx.state.user == nil {
		ctx.state.logMissingUserOnce(ctx.key)
		if trace != nil {
			trace.NewLine("Skipping %% options because the User Object is missing.")
		}
		return nil, nil, false, nil
	}

	attribute := ctx.setting.PercentageAttribute
	if attribute == "" {
		attribute = "Identifier"
	}
	attrValue, ok := ctx.state.user.Attribute(attribute)
	if !ok {
		ctx.state.logMissingAttributeOnce(ctx.key, attribute)
		if trace != nil {
			trace.NewLine("Skipping %% options because the User.%s attribute is missing.", attribute)
		}
		return nil, nil, false, nil
	}

	bucket := hashBucket(ctx.key, stringifyAttribute(attrValue))
	if trace != nil {
		trace.NewLine("Evaluating %% options based on the User.%s attribute:", attribute)
		trace.IncIndent()
		trace.NewLine("- computing hash in the [0..99] range from User.%s => %d (this value is sticky and consistent across all SDKs)", attribute, bucket)
	}

	cumulative := 0
	for i := range options {
		cumulative += options[i].Percentage
		if bucket < cumulative {
			value, err := options[i].Value.ValueForType(ctx.setting.Type)
			if err != nil {
				if trace != nil {
					trace.DecIndent()
				}
				return nil, nil, false, invalidConfigModel(
					"%% option of setting '%s' serves a missing or invalid value (%v)", ctx.key, err)
			}
			if trace != nil {
				trace.NewLine("- hash value %d selects %% option %d (%d%%), '%v'", bucket, i+1, options[i].Percentage, value)
				trace.DecIndent()
			}
			return &options[i], value, true, nil
		}
	}

	if trace != nil {
		trace.DecIndent()
	}
	return nil, nil, false, invalidConfigModel(
		"the sum of the %% option weights of setting '%s' is less than 100", ctx.key)
}

func formatAvailableKeys(settings map[string]*model.Setting) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, "'"+k+"'")
	}
	sort.Strings(keys)
	return "[" + strings.Join(keys, ", ") + "]"
}

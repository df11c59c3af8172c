package client

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/TimurManjosov/goflagclient/internal/evaluator"
	"github.com/TimurManjosov/goflagclient/internal/model"
	"github.com/TimurManjosov/goflagclient/internal/telemetry"
)

// EvaluationDetails carries everything known about one flag evaluation:
// the served value plus which rule or percentage option produced it, or the
// structured error that forced the default value.
type EvaluationDetails struct {
	Key                     string
	Value                   any
	VariationID             string
	User                    *model.User
	IsDefaultValue          bool
	ErrorCode               evaluator.ErrorCode
	Error                   error
	FetchTime               time.Time
	MatchedTargetingRule    *model.TargetingRule
	MatchedPercentageOption *model.PercentageOption
}

// evaluate is the single evaluation path behind every getter. Evaluation
// errors never escape: they are folded into the details with the caller's
// default value served.
func (c *Client) evaluate(ctx context.Context, key string, defaultValue any, user *model.User) EvaluationDetails {
	start := time.Now()
	settings, fetchTime := c.currentSettings(ctx)
	user = c.resolveUser(user)

	details := EvaluationDetails{
		Key:            key,
		Value:          defaultValue,
		User:           user,
		IsDefaultValue: true,
		FetchTime:      fetchTime,
	}

	if len(settings) == 0 {
		details.ErrorCode = evaluator.ErrCodeConfigNotAvailable
		details.Error = &evaluator.EvaluationError{
			Code: evaluator.ErrCodeConfigNotAvailable,
			Message: "config JSON is not present when evaluating setting '" + key +
				"'; returning the default value",
		}
		c.log.Warnf("%v", details.Error)
		c.recordEvaluation(key, string(details.ErrorCode), start)
		return details
	}

	result, err := c.evaluator.Evaluate(settings, key, defaultValue, user)
	if err != nil {
		var evalErr *evaluator.EvaluationError
		if errors.As(err, &evalErr) {
			details.ErrorCode = evalErr.Code
		}
		details.Error = err
		c.log.Errorf("%v", err)
		c.recordEvaluation(key, string(details.ErrorCode), start)
		return details
	}

	details.Value = result.Value
	details.VariationID = result.VariationID
	details.IsDefaultValue = false
	details.MatchedTargetingRule = result.MatchedTargetingRule
	details.MatchedPercentageOption = result.MatchedPercentageOption
	c.recordEvaluation(key, "success", start)
	return details
}

func (c *Client) recordEvaluation(key, outcome string, start time.Time) {
	if c.metrics {
		telemetry.RecordEvaluation(key, outcome, time.Since(start))
	}
}

// GetBoolValue evaluates a bool setting, returning defaultValue on any
// error.
func (c *Client) GetBoolValue(ctx context.Context, key string, defaultValue bool, user *model.User) bool {
	if v, ok := c.evaluate(ctx, key, defaultValue, user).Value.(bool); ok {
		return v
	}
	return defaultValue
}

// GetStringValue evaluates a string setting, returning defaultValue on any
// error.
func (c *Client) GetStringValue(ctx context.Context, key string, defaultValue string, user *model.User) string {
	if v, ok := c.evaluate(ctx, key, defaultValue, user).Value.(string); ok {
		return v
	}
	return defaultValue
}

// GetIntValue evaluates an int setting, returning defaultValue on any error.
func (c *Client) GetIntValue(ctx context.Context, key string, defaultValue int, user *model.User) int {
	if v, ok := c.evaluate(ctx, key, defaultValue, user).Value.(int); ok {
		return v
	}
	return defaultValue
}

// GetFloatValue evaluates a double setting, returning defaultValue on any
// error.
func (c *Client) GetFloatValue(ctx context.Context, key string, defaultValue float64, user *model.User) float64 {
	if v, ok := c.evaluate(ctx, key, defaultValue, user).Value.(float64); ok {
		return v
	}
	return defaultValue
}

// GetBoolValueDetails is GetBoolValue with full evaluation details.
func (c *Client) GetBoolValueDetails(ctx context.Context, key string, defaultValue bool, user *model.User) EvaluationDetails {
	return c.evaluate(ctx, key, defaultValue, user)
}

// GetStringValueDetails is GetStringValue with full evaluation details.
func (c *Client) GetStringValueDetails(ctx context.Context, key string, defaultValue string, user *model.User) EvaluationDetails {
	return c.evaluate(ctx, key, defaultValue, user)
}

// GetIntValueDetails is GetIntValue with full evaluation details.
func (c *Client) GetIntValueDetails(ctx context.Context, key string, defaultValue int, user *model.User) EvaluationDetails {
	return c.evaluate(ctx, key, defaultValue, user)
}

// GetFloatValueDetails is GetFloatValue with full evaluation details.
func (c *Client) GetFloatValueDetails(ctx context.Context, key string, defaultValue float64, user *model.User) EvaluationDetails {
	return c.evaluate(ctx, key, defaultValue, user)
}

// GetAllKeys returns the sorted keys of every known setting.
func (c *Client) GetAllKeys(ctx context.Context) []string {
	settings, _ := c.currentSettings(ctx)
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// GetAllValueDetails evaluates every known setting for the given user.
// Results are ordered by key.
func (c *Client) GetAllValueDetails(ctx context.Context, user *model.User) []EvaluationDetails {
	keys := c.GetAllKeys(ctx)
	details := make([]EvaluationDetails, 0, len(keys))
	for _, key := range keys {
		details = append(details, c.evaluate(ctx, key, nil, user))
	}
	return details
}

// GetAllValues evaluates every known setting for the given user, keyed by
// setting key.
func (c *Client) GetAllValues(ctx context.Context, user *model.User) map[string]any {
	keys := c.GetAllKeys(ctx)
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		values[key] = c.evaluate(ctx, key, nil, user).Value
	}
	return values
}

// GetKeyAndValueForVariationID finds the setting key and value that a
// variation ID belongs to, searching default values, targeting rules and
// percentage options. The third result is false when the ID is unknown.
func (c *Client) GetKeyAndValueForVariationID(ctx context.Context, variationID string) (string, any, bool) {
	settings, _ := c.currentSettings(ctx)
	for key, setting := range settings {
		if value, ok := variationValue(setting, variationID); ok {
			return key, value, true
		}
	}
	c.log.Errorf("could not find the setting for the specified variation ID: '%s'", variationID)
	return "", nil, false
}

func variationValue(setting *model.Setting, variationID string) (any, bool) {
	if setting.VariationID == variationID {
		if v, err := setting.Value.ValueForType(setting.Type); err == nil {
			return v, true
		}
		return nil, false
	}
	for i := range setting.TargetingRules {
		rule := &setting.TargetingRules[i]
		if rule.ServedValue != nil && rule.ServedValue.VariationID == variationID {
			if v, err := rule.ServedValue.Value.ValueForType(setting.Type); err == nil {
				return v, true
			}
			return nil, false
		}
		for j := range rule.PercentageOptions {
			if opt := &rule.PercentageOptions[j]; opt.VariationID == variationID {
				if v, err := opt.Value.ValueForType(setting.Type); err == nil {
					return v, true
				}
				return nil, false
			}
		}
	}
	for i := range setting.PercentageOptions {
		if opt := &setting.PercentageOptions[i]; opt.VariationID == variationID {
			if v, err := opt.Value.ValueForType(setting.Type); err == nil {
				return v, true
			}
			return nil, false
		}
	}
	return nil, false
}

package evaluator

import (
	"github.com/TimurManjosov/goflagclient/internal/evallog"
	"github.com/TimurManjosov/goflagclient/internal/logger"
	"github.com/TimurManjosov/goflagclient/internal/model"
)

// conditionOutcome is the three-variant result of a single condition:
// match, no match, or "cannot evaluate". The last one is distinct from a
// match failure; it carries a reason and is logged and traced differently.
type conditionOutcome int8

const (
	outcomeNoMatch conditionOutcome = iota
	outcomeMatch
	outcomeCannotEvaluate
)

type conditionResult struct {
	outcome conditionOutcome
	reason  string
}

func matchResult(matched bool) conditionResult {
	if matched {
		return conditionResult{outcome: outcomeMatch}
	}
	return conditionResult{outcome: outcomeNoMatch}
}

func cannotEvaluate(reason string) conditionResult {
	return conditionResult{outcome: outcomeCannotEvaluate, reason: reason}
}

// evalState is the per-top-level-call state shared by reference across
// prerequisite recursion: user, full setting map, visited-key stack, trace
// builder and the log-once flags.
type evalState struct {
	settings map[string]*model.Setting
	user     *model.User
	log      logger.Logger
	trace    *evallog.Builder

	// visited holds the keys on the current prerequisite recursion path.
	visited []string

	missingUserLogged bool
	missingAttrLogged map[string]bool
}

func (s *evalState) logMissingUserOnce(key string) {
	if s.missingUserLogged {
		return
	}
	s.missingUserLogged = true
	s.log.Warnf("cannot evaluate targeting rules and %% options for setting '%s' (User Object is missing)", key)
}

func (s *evalState) logMissingAttributeOnce(key, attribute string) {
	if s.missingAttrLogged == nil {
		s.missingAttrLogged = make(map[string]bool)
	}
	if s.missingAttrLogged[attribute] {
		return
	}
	s.missingAttrLogged[attribute] = true
	s.log.Warnf("cannot evaluate a condition of setting '%s' (the User.%s attribute is missing)", key, attribute)
}

// evalContext is the per-setting view of an evaluation: the key and setting
// under evaluation plus the shared state. A child context is derived per
// prerequisite recursion.
type evalContext struct {
	state   *evalState
	key     string
	setting *model.Setting
}

func (c evalContext) child(key string, setting *model.Setting) evalContext {
	return evalContext{state: c.state, key: key, setting: setting}
}

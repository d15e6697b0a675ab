package executor

import (
	"go.uber.org/zap"

	"github.com/devicelab-dev/checkbox-runner/pkg/jsengine"
	"github.com/devicelab-dev/checkbox-runner/pkg/scenario"
)

// ScriptEngine expands ${...} expressions in a scenario. One engine serves
// one scenario so variables never leak between concurrent runs.
type ScriptEngine struct {
	js *jsengine.Engine
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine(logger *zap.Logger) *ScriptEngine {
	return &ScriptEngine{js: jsengine.New(jsengine.WithLogger(logger))}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariables sets multiple variables. Later calls win.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	se.js.SetVariables(vars)
}

// Expand returns a copy of sc with run variables, then its own env, applied.
func (se *ScriptEngine) Expand(sc *scenario.Scenario, runVars map[string]string) (*scenario.Scenario, error) {
	se.SetVariables(runVars)
	se.SetVariables(sc.Env)
	return sc.Expand(se.js.ExpandVariables)
}

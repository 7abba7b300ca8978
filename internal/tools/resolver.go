// Package tools resolves tool names to task classes and effective
// timeouts. The core never executes tools; it only needs the class and
// timeout because execution happens out-of-band.
package tools

import (
	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/models"
)

// sentinelClass backs the fallback timeout when a tool's class has no
// configured default.
const sentinelClass = "MEDIUM_SCRIPT"

// Resolver maps tool_name -> task_class -> default timeout. Pure and free
// of I/O once built from settings.
type Resolver struct {
	classTimeouts map[string]int
	tools         map[string]app.ToolSettings
}

// NewResolver builds a resolver from effective settings.
func NewResolver(s app.Settings) *Resolver {
	classTimeouts := make(map[string]int, len(s.TaskClasses))
	for class, tc := range s.TaskClasses {
		if tc.Timeout > 0 {
			classTimeouts[class] = tc.Timeout
		}
	}
	tools := make(map[string]app.ToolSettings, len(s.Tools))
	for name, t := range s.Tools {
		tools[name] = t
	}
	return &Resolver{classTimeouts: classTimeouts, tools: tools}
}

// Resolution is the outcome of resolving a tool.
type Resolution struct {
	ToolName       string
	TaskClass      string
	TimeoutSeconds int
}

// Resolve returns the tool's task class and effective timeout.
// Precedence: positive caller override > per-tool timeout > class default
// > the sentinel MEDIUM_SCRIPT default. Unknown tools are a validation
// error; a negative or zero override means "no override".
func (r *Resolver) Resolve(toolName string, override int) (Resolution, error) {
	tool, ok := r.tools[toolName]
	if !ok {
		return Resolution{}, models.Validationf("unknown tool: %s", toolName)
	}

	class := tool.TaskClass
	if class == "" {
		class = sentinelClass
	}

	res := Resolution{ToolName: toolName, TaskClass: class}
	switch {
	case override > 0:
		res.TimeoutSeconds = override
	case tool.Timeout > 0:
		res.TimeoutSeconds = tool.Timeout
	default:
		timeout, ok := r.classTimeouts[class]
		if !ok {
			timeout = r.classTimeouts[sentinelClass]
		}
		if timeout <= 0 {
			timeout = app.DefaultTaskClassTimeouts[sentinelClass]
		}
		res.TimeoutSeconds = timeout
	}
	return res, nil
}

// Known reports whether the resolver has a registration for toolName.
func (r *Resolver) Known(toolName string) bool {
	_, ok := r.tools[toolName]
	return ok
}

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/sparkq/internal/app"
	"github.com/dotcommander/sparkq/internal/models"
)

func testSettings() app.Settings {
	return app.Settings{
		TaskClasses: map[string]app.TaskClassSettings{
			"FAST_SCRIPT":   {Timeout: 30},
			"MEDIUM_SCRIPT": {Timeout: 120},
			"LLM_HEAVY":     {Timeout: 900},
		},
		Tools: map[string]app.ToolSettings{
			"run-script": {TaskClass: "MEDIUM_SCRIPT"},
			"quick":      {TaskClass: "FAST_SCRIPT", Timeout: 10},
			"llm-opus":   {TaskClass: "LLM_HEAVY"},
			"classless":  {},
			"oddball":    {TaskClass: "NO_SUCH_CLASS"},
		},
	}.Effective()
}

func TestResolve_ClassDefault(t *testing.T) {
	r := NewResolver(testSettings())

	res, err := r.Resolve("run-script", 0)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM_SCRIPT", res.TaskClass)
	assert.Equal(t, 120, res.TimeoutSeconds)
}

func TestResolve_PerToolTimeoutBeatsClass(t *testing.T) {
	r := NewResolver(testSettings())

	res, err := r.Resolve("quick", 0)
	require.NoError(t, err)
	assert.Equal(t, "FAST_SCRIPT", res.TaskClass)
	assert.Equal(t, 10, res.TimeoutSeconds)
}

func TestResolve_CallerOverrideBeatsEverything(t *testing.T) {
	r := NewResolver(testSettings())

	res, err := r.Resolve("quick", 777)
	require.NoError(t, err)
	assert.Equal(t, 777, res.TimeoutSeconds)

	// Zero and negative overrides mean "no override".
	res, err = r.Resolve("quick", -5)
	require.NoError(t, err)
	assert.Equal(t, 10, res.TimeoutSeconds)
}

func TestResolve_MissingClassFallsBackToSentinel(t *testing.T) {
	r := NewResolver(testSettings())

	res, err := r.Resolve("classless", 0)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM_SCRIPT", res.TaskClass)
	assert.Equal(t, 120, res.TimeoutSeconds)

	res, err = r.Resolve("oddball", 0)
	require.NoError(t, err)
	assert.Equal(t, "NO_SUCH_CLASS", res.TaskClass)
	assert.Equal(t, 120, res.TimeoutSeconds, "unknown class borrows the sentinel timeout")
}

func TestResolve_UnknownTool(t *testing.T) {
	r := NewResolver(testSettings())

	_, err := r.Resolve("no-such-tool", 0)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindValidation))
	assert.False(t, r.Known("no-such-tool"))
	assert.True(t, r.Known("run-script"))
}

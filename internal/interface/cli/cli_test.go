package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alextrx818/matchpipe/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRootRegistersEveryStage(t *testing.T) {
	root := NewRoot()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "init")
	assert.Contains(t, names, "status")
	for _, stage := range pipeline.Order {
		assert.Contains(t, names, pipeline.CommandName(stage))
	}
}

func TestStageCommandsCarrySingleRunFlag(t *testing.T) {
	root := NewRoot()
	for _, stage := range pipeline.Order {
		c, _, err := root.Find([]string{pipeline.CommandName(stage)})
		require.NoError(t, err)
		assert.NotNil(t, c.Flags().Lookup("single-run"), c.Name())
	}
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t,
		[]string{"merge", "clean", "convert", "monitor", "alert-overs", "alert-underdog"},
		commandNames(pipeline.Order[1:]))
}

func TestPadMatchesHeaderWidth(t *testing.T) {
	assert.Equal(t, len("alert-overs"), len(pad("ok", pipeline.StageAlertOvers)))
	assert.Equal(t, "ok", pad("ok", "x"), "never truncates the mark")
}

func TestLeveledLoggerThresholds(t *testing.T) {
	l := newLeveledLogger("warn").(*leveledLogger)
	assert.Equal(t, levelWarn, l.min)
	assert.Equal(t, levelInfo, newLeveledLogger("").(*leveledLogger).min)
	assert.Equal(t, levelInfo, newLeveledLogger("nonsense").(*leveledLogger).min)
	assert.Equal(t, levelDebug, newLeveledLogger("DEBUG").(*leveledLogger).min)
	assert.Equal(t, levelError, newLeveledLogger("error").(*leveledLogger).min)
}

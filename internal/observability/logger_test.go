package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestInitCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	l := InitCLILogger("test", false)
	assert.Same(t, l, CLILogger)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l = InitCLILogger("test", true)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestInitWithLevel(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	l := InitWithLevel("test", "warn")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l = InitWithLevel("test", "bogus")
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

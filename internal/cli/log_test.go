package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerFiltersByLevel(t *testing.T) {
	tests := []struct {
		level log.Level
		debug bool
		info  bool
	}{
		{level: log.InfoLevel, debug: false, info: true},
		{level: log.DebugLevel, debug: true, info: true},
		{level: log.WarnLevel, debug: false, info: false},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)

			logger.Debug("negotiating bulk channel")
			assert.Equal(t, tt.debug, bytes.Contains(buf.Bytes(), []byte("negotiating")))

			logger.Info("catalog loaded", "procedures", 412)
			assert.Equal(t, tt.info, bytes.Contains(buf.Bytes(), []byte("procedures=412")))
		})
	}
}

func TestStopwatchReportsElapsed(t *testing.T) {
	var buf bytes.Buffer
	sw := newStopwatch(newLogger(&buf, log.InfoLevel))
	sw.start = sw.start.Add(-1500 * time.Millisecond)

	sw.done("gds.pageRank.stream returned 42 rows")
	out := buf.String()
	assert.Contains(t, out, "gds.pageRank.stream returned 42 rows")
	assert.Contains(t, out, "(1.5")
}

func TestLoggerTravelsInContext(t *testing.T) {
	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)

	assert.Same(t, custom, loggerFromContext(withLogger(context.Background(), custom)))
	assert.Same(t, log.Default(), loggerFromContext(context.Background()))
}

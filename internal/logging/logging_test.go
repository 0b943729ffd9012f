package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{"defaults", "", "", zapcore.InfoLevel, false},
		{"debug json", "debug", FormatJSON, zapcore.DebugLevel, false},
		{"warn console", "warn", FormatConsole, zapcore.WarnLevel, false},
		{"bad level", "loud", FormatJSON, 0, true},
		{"bad format", "info", "xml", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New("", "xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}

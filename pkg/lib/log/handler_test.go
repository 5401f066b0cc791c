package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConfig(t *testing.T) {
	cfg := ParseConfig("core/loader=debug, core=warn, error", "json")

	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, slog.LevelDebug, cfg.LevelFor("core/loader"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelFor("core/registry"))
	assert.Equal(t, slog.LevelError, cfg.LevelFor("cmd"))

	// 无效级别忽略
	cfg = ParseConfig("loader=verbose,nope", "")
	assert.Equal(t, slog.LevelInfo, cfg.DefaultLevel)
	assert.Empty(t, cfg.ComponentLevels)
	assert.Equal(t, FormatText, cfg.Format)
}

func TestComponentHandler_FiltersByComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	cfg := ParseConfig("core/loader=debug,warn", "")
	l := slog.New(NewHandler(buf, cfg))

	l.With(ComponentKey, "core/loader").Debug("loader debug")
	l.With(ComponentKey, "core/registry").Info("registry info")
	l.With(ComponentKey, "core/registry").Warn("registry warn")
	l.Info("untagged info", ComponentKey, "core/loader")

	out := buf.String()
	assert.Contains(t, out, "loader debug")
	assert.NotContains(t, out, "registry info")
	assert.Contains(t, out, "registry warn")
	assert.Contains(t, out, "untagged info")
}

func TestLazyLogger_FollowsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	l := Logger("test/lazy")
	buf := &bytes.Buffer{}
	SetDefault(slog.New(NewHandler(buf, ParseConfig("debug", ""))))

	l.Debug("after switch", "key", "value")
	assert.Contains(t, buf.String(), "after switch")
	assert.Contains(t, buf.String(), "component=test/lazy")
	assert.Equal(t, "test/lazy", l.Component())
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghijk", 8))
}

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ComponentKey 组件属性名
const ComponentKey = "component"

// 环境变量
const (
	// EnvLevel 级别配置，格式: 组件=级别,组件=级别,默认级别
	// 示例: core/loader=debug,core/registry=warn,info
	EnvLevel = "WIDGETSYNC_LOG_LEVEL"

	// EnvFormat 输出格式: text 或 json
	EnvFormat = "WIDGETSYNC_LOG_FORMAT"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// HandlerConfig 日志 handler 配置
type HandlerConfig struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// ComponentLevels 各组件的日志级别（按前缀匹配，最长者优先）
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format Format
}

// LevelFor 获取组件的日志级别
//
// "core" 会匹配 "core/loader"；更长的前缀优先。
func (c HandlerConfig) LevelFor(component string) slog.Level {
	best := -1
	level := c.DefaultLevel
	for prefix, lvl := range c.ComponentLevels {
		if component == prefix || strings.HasPrefix(component, prefix+"/") {
			if len(prefix) > best {
				best = len(prefix)
				level = lvl
			}
		}
	}
	return level
}

// minLevel 返回配置中最低的级别，用于 Enabled 的快速判断
func (c HandlerConfig) minLevel() slog.Level {
	min := c.DefaultLevel
	for _, lvl := range c.ComponentLevels {
		if lvl < min {
			min = lvl
		}
	}
	return min
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() HandlerConfig {
	return ParseConfig(os.Getenv(EnvLevel), os.Getenv(EnvFormat))
}

// ParseConfig 解析级别与格式字符串
func ParseConfig(levelStr, formatStr string) HandlerConfig {
	cfg := HandlerConfig{
		DefaultLevel:    slog.LevelInfo,
		ComponentLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, lvl, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(strings.TrimSpace(lvl)); ok {
				cfg.ComponentLevels[strings.TrimSpace(name)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}

	if strings.EqualFold(strings.TrimSpace(formatStr), "json") {
		cfg.Format = FormatJSON
	}
	return cfg
}

// CheckConfig 检查级别与格式字符串，报告无法识别的部分
func CheckConfig(levelStr, formatStr string) error {
	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, lvl, ok := strings.Cut(part, "="); ok {
			part = strings.TrimSpace(lvl)
		}
		if _, ok := ParseLevel(part); !ok {
			return fmt.Errorf("unknown log level %q", part)
		}
	}
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", formatStr)
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ============================================================================
//                              componentHandler
// ============================================================================

// componentHandler 按 component 属性过滤级别的 slog.Handler
type componentHandler struct {
	cfg       HandlerConfig
	component string
	inner     slog.Handler
}

// NewHandler 创建支持组件级别控制的 handler
func NewHandler(w io.Writer, cfg HandlerConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: cfg.minLevel(),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}
	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}
	return &componentHandler{cfg: cfg, inner: inner}
}

// Enabled 组件未知时按最低级别放行，Handle 中再精确过滤
func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.component != "" {
		return level >= h.cfg.LevelFor(h.component)
	}
	return h.inner.Enabled(ctx, level)
}

// Handle 处理日志记录
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == ComponentKey {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.cfg.LevelFor(component) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs 添加属性（捕获 component 以便后续过滤）
func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == ComponentKey {
			component = a.Value.String()
		}
	}
	return &componentHandler{cfg: h.cfg, component: component, inner: h.inner.WithAttrs(attrs)}
}

// WithGroup 添加组
func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{cfg: h.cfg, component: h.component, inner: h.inner.WithGroup(name)}
}

// discardHandler 丢弃所有日志的 Handler（用于测试）
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

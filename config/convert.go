package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FromJSON 从 JSON 数据创建配置；未出现的字段保留默认值
//
// 示例 JSON:
//
//	{
//	  "loader": {"url_template": "https://cdn.example.com/{package}@{version}/widgets.json"},
//	  "storage": {"save_state": true, "data_dir": "/var/lib/widgetsync"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// ============================================================================
//                              环境变量覆盖
// ============================================================================

// EnvPrefix 环境变量前缀
const EnvPrefix = "WIDGETSYNC_"

// LookupFunc 环境变量查找函数（os.LookupEnv 的签名）
type LookupFunc func(key string) (string, bool)

// ApplyEnv 用环境变量覆盖配置
//
// 支持的变量：
//
//	WIDGETSYNC_LOADER_URL_TEMPLATE     WIDGETSYNC_LOADER_FETCH_TIMEOUT
//	WIDGETSYNC_LOADER_CACHE_SIZE       WIDGETSYNC_REGISTRY_CONSTRUCT_TIMEOUT
//	WIDGETSYNC_CHANNEL_TARGET_NAME     WIDGETSYNC_CHANNEL_WRITE_TIMEOUT
//	WIDGETSYNC_STORAGE_SAVE_STATE      WIDGETSYNC_STORAGE_DATA_DIR
//	WIDGETSYNC_METRICS_ENABLE          WIDGETSYNC_LOG_LEVEL  WIDGETSYNC_LOG_FORMAT
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, o := range c.envOverrides() {
		v, ok := lookup(EnvPrefix + o.name)
		if !ok {
			continue
		}
		if err := o.apply(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
		}
	}
	return nil
}

type envOverride struct {
	name  string
	apply func(string) error
}

func (c *Config) envOverrides() []envOverride {
	return []envOverride{
		{"LOADER_URL_TEMPLATE", setString(&c.Loader.URLTemplate)},
		{"LOADER_FETCH_TIMEOUT", c.Loader.FetchTimeout.Set},
		{"LOADER_CACHE_SIZE", setInt(&c.Loader.CacheSize)},
		{"REGISTRY_CONSTRUCT_TIMEOUT", c.Registry.ConstructTimeout.Set},
		{"REGISTRY_DISPOSE_TIMEOUT", c.Registry.DisposeTimeout.Set},
		{"CHANNEL_TARGET_NAME", setString(&c.Channel.TargetName)},
		{"CHANNEL_WRITE_TIMEOUT", c.Channel.WriteTimeout.Set},
		{"STORAGE_SAVE_STATE", setBool(&c.Storage.SaveState)},
		{"STORAGE_DATA_DIR", setString(&c.Storage.DataDir)},
		{"METRICS_ENABLE", setBool(&c.Metrics.Enable)},
		{"LOG_LEVEL", setString(&c.Log.Level)},
		{"LOG_FORMAT", setString(&c.Log.Format)},
	}
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

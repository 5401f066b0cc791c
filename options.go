package widgetsync

import (
	"fmt"
	"net/http"

	"github.com/dep2p/go-widgetsync/config"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 基础配置（WithConfig）
	config *config.Config

	// 覆盖项；nil 表示未设置
	loaderURLTemplate *string
	dataDir           *string
	saveState         *bool

	// 注入的协作者
	registerer prometheus.Registerer
	httpClient *http.Client
	extensions []pkgif.Extension
	renderHost pkgif.RenderHost

	// 追加的 Fx 选项（测试与嵌入场景）
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

// toConfig 把覆盖项应用到配置副本
func (o *options) toConfig() *config.Config {
	var cfg *config.Config
	if o.config != nil {
		cfg = o.config.Clone()
	} else {
		cfg = config.NewConfig()
	}
	if o.loaderURLTemplate != nil {
		cfg.Loader.URLTemplate = *o.loaderURLTemplate
	}
	if o.dataDir != nil {
		cfg.Storage.DataDir = *o.dataDir
	}
	if o.saveState != nil {
		cfg.Storage.SaveState = *o.saveState
	}
	if o.registerer != nil {
		cfg.Metrics.Enable = true
	}
	return cfg
}

// WithConfig 使用完整配置作为基础
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		o.config = cfg
		return nil
	}
}

// WithLoaderURLTemplate 设置远端模块 URL 模板；空字符串关闭远端加载
//
// 模板支持 {package} 与 {version} 占位符。
func WithLoaderURLTemplate(tmpl string) Option {
	return func(o *options) error {
		o.loaderURLTemplate = &tmpl
		return nil
	}
}

// WithDataDir 设置保存状态的数据目录
func WithDataDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return fmt.Errorf("data dir cannot be empty")
		}
		o.dataDir = &dir
		return nil
	}
}

// WithSaveState 是否持久化会话的 widget 状态
func WithSaveState(enable bool) Option {
	return func(o *options) error {
		o.saveState = &enable
		return nil
	}
}

// WithMetricsRegisterer 启用指标并注册到 reg
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		if reg == nil {
			return fmt.Errorf("nil registerer")
		}
		o.registerer = reg
		return nil
	}
}

// WithHTTPClient 设置远端模块加载使用的 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) error {
		o.httpClient = c
		return nil
	}
}

// WithExtensions 注册进程内扩展
func WithExtensions(exts ...pkgif.Extension) Option {
	return func(o *options) error {
		o.extensions = append(o.extensions, exts...)
		return nil
	}
}

// WithRenderHost 设置视图挂载宿主；未设置时 Bind 返回错误
func WithRenderHost(h pkgif.RenderHost) Option {
	return func(o *options) error {
		o.renderHost = h
		return nil
	}
}

// WithFxOptions 追加 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}

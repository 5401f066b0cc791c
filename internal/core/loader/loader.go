package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/metrics"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ============================================================================
//                              选项
// ============================================================================

// Option 加载器选项
type Option func(*Loader)

// WithHTTPClient 自定义 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithMetrics 记录获取指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// ============================================================================
//                              Loader
// ============================================================================

// Loader 动态类加载器，实现 interfaces.ClassResolver
type Loader struct {
	cfg     config.LoaderConfig
	client  *http.Client
	metrics *metrics.Metrics

	mu         sync.RWMutex
	extensions map[string][]*extension

	group singleflight.Group
	cache *lru.Cache[string, *module]
}

var _ pkgif.ClassResolver = (*Loader)(nil)

// module 已加载的模块
type module struct {
	name    string
	version string
	exports pkgif.Exports
}

// extension 注册的扩展及其求值结果
type extension struct {
	def pkgif.Extension

	mu      sync.Mutex
	exports pkgif.Exports
}

// New 创建加载器
func New(cfg config.LoaderConfig, opts ...Option) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *module](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create module cache: %w", err)
	}
	l := &Loader{
		cfg:        cfg,
		client:     http.DefaultClient,
		extensions: make(map[string][]*extension),
		cache:      cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// ============================================================================
//                              扩展注册
// ============================================================================

// Register 注册扩展
func (l *Loader) Register(ext pkgif.Extension) error {
	if ext.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidExtension)
	}
	if !validVersion(ext.Version) {
		return fmt.Errorf("%w: %s has invalid version %q", ErrInvalidExtension, ext.Name, ext.Version)
	}
	if ext.Exports == nil && ext.Thunk == nil {
		return fmt.Errorf("%w: %s@%s has neither exports nor thunk", ErrInvalidExtension, ext.Name, ext.Version)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.extensions[ext.Name] {
		if canonical(e.def.Version) == canonical(ext.Version) {
			return fmt.Errorf("%w: %s@%s", ErrDuplicateExtension, ext.Name, ext.Version)
		}
	}
	e := &extension{def: ext}
	if ext.Thunk == nil {
		e.exports = ext.Exports
	}
	l.extensions[ext.Name] = append(l.extensions[ext.Name], e)
	logger.Debug("注册扩展", "name", ext.Name, "version", ext.Version)
	return nil
}

// Extensions 返回已注册扩展的 name@version 列表
func (l *Loader) Extensions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []string
	for name, exts := range l.extensions {
		for _, e := range exts {
			out = append(out, name+"@"+e.def.Version)
		}
	}
	sort.Strings(out)
	return out
}

// matchExtension 返回满足范围的最高版本扩展
func (l *Loader) matchExtension(name, rng string) (*extension, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var best *extension
	for _, e := range l.extensions[name] {
		ok, err := matchRange(rng, e.def.Version)
		if err != nil {
			return nil, err
		}
		if ok && (best == nil || higher(e.def.Version, best.def.Version)) {
			best = e
		}
	}
	return best, nil
}

// ============================================================================
//                              解析
// ============================================================================

// Resolve 把描述符解析为类
func (l *Loader) Resolve(ctx context.Context, desc types.ClassDescriptor) (*pkgif.Class, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if desc.Version == "" {
		desc.Version = "*"
	}

	mod, err := l.load(ctx, desc)
	if err != nil {
		return nil, err
	}
	cls, ok := mod.exports[desc.Class]
	if !ok || cls == nil {
		return nil, &ClassNotFoundError{Module: desc.Module, Version: mod.version, Class: desc.Class}
	}

	out := *cls
	out.Descriptor = types.ClassDescriptor{Module: desc.Module, Version: mod.version, Class: desc.Class}
	if out.Defaults != nil {
		out.Defaults = statetree.CloneMapping(out.Defaults)
	}
	return &out, nil
}

func (l *Loader) load(ctx context.Context, desc types.ClassDescriptor) (*module, error) {
	ext, err := l.matchExtension(desc.Module, desc.Version)
	if err != nil {
		return nil, &LoadError{Module: desc.Module, Version: desc.Version, Err: err}
	}
	if ext != nil {
		return l.loadExtension(ctx, ext)
	}
	if !l.cfg.RemoteEnabled() {
		return nil, &LoadError{Module: desc.Module, Version: desc.Version, Err: ErrNoSource}
	}
	return l.loadRemote(ctx, desc.Module, desc.Version)
}

// loadExtension 求值扩展导出；成功结果保留，失败允许重试
func (l *Loader) loadExtension(ctx context.Context, e *extension) (*module, error) {
	e.mu.Lock()
	exports := e.exports
	e.mu.Unlock()
	if exports != nil {
		return &module{name: e.def.Name, version: e.def.Version, exports: exports}, nil
	}

	key := "ext:" + e.def.Name + "@" + e.def.Version
	ch := l.group.DoChan(key, func() (any, error) {
		e.mu.Lock()
		if e.exports != nil {
			defer e.mu.Unlock()
			return e.exports, nil
		}
		e.mu.Unlock()

		fetchCtx, cancel := context.WithTimeout(context.Background(), l.cfg.FetchTimeout.Duration())
		defer cancel()
		exp, err := e.def.Thunk(fetchCtx)
		if err != nil {
			return nil, err
		}
		if exp == nil {
			exp = pkgif.Exports{}
		}
		e.mu.Lock()
		e.exports = exp
		e.mu.Unlock()
		return exp, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, &LoadError{Module: e.def.Name, Version: e.def.Version, Err: res.Err}
		}
		return &module{name: e.def.Name, version: e.def.Version, exports: res.Val.(pkgif.Exports)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ============================================================================
//                              远程获取
// ============================================================================

// loadRemote 合并相同模块的并发获取
func (l *Loader) loadRemote(ctx context.Context, name, version string) (*module, error) {
	key := name + "@" + version
	if mod, ok := l.cache.Get(key); ok {
		l.metrics.LoaderCacheHit()
		return mod, nil
	}

	ch := l.group.DoChan("fetch:"+key, func() (any, error) {
		return l.fetchShared(key, name, version)
	})

	select {
	case res := <-ch:
		if res.Shared {
			l.metrics.LoaderFetch(metrics.OutcomeCoalesced)
		}
		if res.Err != nil {
			return nil, &LoadError{Module: name, Version: version, Err: res.Err}
		}
		return res.Val.(*module), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchShared 在合并组内执行；先复查缓存，避开刚结束的同名获取
func (l *Loader) fetchShared(key, name, version string) (*module, error) {
	if mod, ok := l.cache.Get(key); ok {
		l.metrics.LoaderCacheHit()
		return mod, nil
	}
	fetchCtx, cancel := context.WithTimeout(context.Background(), l.cfg.FetchTimeout.Duration())
	defer cancel()
	mod, err := l.fetch(fetchCtx, name, version)
	if err != nil {
		l.metrics.LoaderFetch(metrics.OutcomeError)
		logger.Warn("模块获取失败", "module", key, "err", err)
		return nil, err
	}
	l.metrics.LoaderFetch(metrics.OutcomeOK)
	l.cache.Add(key, mod)
	logger.Info("模块已加载", "module", key, "classes", len(mod.exports))
	return mod, nil
}

// manifest 远程模块清单
type manifest struct {
	Name    string                    `json:"name"`
	Version string                    `json:"version"`
	Exports map[string]manifestExport `json:"exports"`
}

type manifestExport struct {
	Defaults statetree.Mapping `json:"defaults"`
	View     string            `json:"view"`
}

// ModuleURL 按模板生成模块清单地址
func (l *Loader) ModuleURL(name, version string) string {
	if version == "" {
		version = "*"
	}
	return strings.NewReplacer("{package}", name, "{version}", version).Replace(l.cfg.URLTemplate)
}

func (l *Loader) fetch(ctx context.Context, name, version string) (*module, error) {
	url := l.ModuleURL(name, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrHTTPStatus, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, l.cfg.MaxModuleBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > l.cfg.MaxModuleBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrModuleTooLarge, l.cfg.MaxModuleBytes)
	}

	var mf manifest
	if err := json.Unmarshal(body, &mf); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", url, err)
	}
	if mf.Name != "" && mf.Name != name {
		return nil, fmt.Errorf("%w: requested %s, got %s", ErrModuleMismatch, name, mf.Name)
	}
	resolved := mf.Version
	if resolved == "" {
		resolved = version
	}

	exports := make(pkgif.Exports, len(mf.Exports))
	for cls, ex := range mf.Exports {
		exports[cls] = &pkgif.Class{
			Descriptor: types.ClassDescriptor{Module: name, Version: resolved, Class: cls},
			Defaults:   ex.Defaults,
			View:       ex.View,
		}
	}
	return &module{name: name, version: resolved, exports: exports}, nil
}

// Purge 清空模块缓存
func (l *Loader) Purge() {
	l.cache.Purge()
}

// Cached 缓存的模块数
func (l *Loader) Cached() int {
	return l.cache.Len()
}

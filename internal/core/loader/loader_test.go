package loader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dep2p/go-widgetsync/config"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// ============================================================================
//                              测试辅助
// ============================================================================

const sliderManifest = `{
  "name": "acme-widgets",
  "version": "1.4.0",
  "exports": {
    "SliderModel": {"defaults": {"value": 0, "min": 0, "max": 100}, "view": "SliderView"}
  }
}`

// moduleServer 返回固定清单的模块服务，gate 非空时阻塞到 gate 关闭
func moduleServer(t *testing.T, body string, gate <-chan struct{}) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if gate != nil {
			<-gate
		}
		if !strings.Contains(r.URL.Path, "acme-widgets") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func remoteConfig(srv *httptest.Server) config.LoaderConfig {
	cfg := config.DefaultLoaderConfig()
	cfg.URLTemplate = srv.URL + "/{package}@{version}/widgets.json"
	cfg.FetchTimeout = config.Duration(5 * time.Second)
	return cfg
}

func localConfig() config.LoaderConfig {
	cfg := config.DefaultLoaderConfig()
	cfg.URLTemplate = ""
	return cfg
}

func slider() types.ClassDescriptor {
	return types.ClassDescriptor{Module: "acme-widgets", Version: "^1.0.0", Class: "SliderModel"}
}

// ============================================================================
//                              扩展
// ============================================================================

func TestRegister_Validation(t *testing.T) {
	l, err := New(localConfig())
	require.NoError(t, err)

	assert.ErrorIs(t, l.Register(pkgif.Extension{Version: "1.0.0", Exports: pkgif.Exports{}}), ErrInvalidExtension)
	assert.ErrorIs(t, l.Register(pkgif.Extension{Name: "x", Version: "one", Exports: pkgif.Exports{}}), ErrInvalidExtension)
	assert.ErrorIs(t, l.Register(pkgif.Extension{Name: "x", Version: "1.0.0"}), ErrInvalidExtension)

	require.NoError(t, l.Register(pkgif.Extension{Name: "x", Version: "1.0.0", Exports: pkgif.Exports{}}))
	assert.ErrorIs(t, l.Register(pkgif.Extension{Name: "x", Version: "1.0.0", Exports: pkgif.Exports{}}), ErrDuplicateExtension)
	require.NoError(t, l.Register(pkgif.Extension{Name: "x", Version: "1.1.0", Exports: pkgif.Exports{}}))

	assert.Equal(t, []string{"x@1.0.0", "x@1.1.0"}, l.Extensions())
}

func TestResolve_ExtensionPicksHighestMatch(t *testing.T) {
	l, err := New(localConfig())
	require.NoError(t, err)

	for _, v := range []string{"1.0.0", "1.3.0", "2.0.0"} {
		require.NoError(t, l.Register(pkgif.Extension{
			Name:    "acme-widgets",
			Version: v,
			Exports: pkgif.Exports{"SliderModel": {View: "v" + v}},
		}))
	}

	cls, err := l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", cls.Descriptor.Version)
	assert.Equal(t, "v1.3.0", cls.View)
}

func TestResolve_ThunkEvaluatedOnce(t *testing.T) {
	l, err := New(localConfig())
	require.NoError(t, err)

	var calls atomic.Int32
	release := make(chan struct{})
	require.NoError(t, l.Register(pkgif.Extension{
		Name:    "acme-widgets",
		Version: "1.0.0",
		Thunk: func(ctx context.Context) (pkgif.Exports, error) {
			calls.Add(1)
			<-release
			return pkgif.Exports{"SliderModel": {Defaults: statetree.Mapping{"value": statetree.Int(1)}}}, nil
		},
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Resolve(context.Background(), slider())
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	_, err = l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_ThunkFailureRetried(t *testing.T) {
	l, err := New(localConfig())
	require.NoError(t, err)

	boom := errors.New("boom")
	var calls atomic.Int32
	require.NoError(t, l.Register(pkgif.Extension{
		Name:    "acme-widgets",
		Version: "1.0.0",
		Thunk: func(ctx context.Context) (pkgif.Exports, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return pkgif.Exports{"SliderModel": {}}, nil
		},
	}))

	_, err = l.Resolve(context.Background(), slider())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, boom)

	_, err = l.Resolve(context.Background(), slider())
	assert.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResolve_NoSource(t *testing.T) {
	l, err := New(localConfig())
	require.NoError(t, err)

	_, err = l.Resolve(context.Background(), slider())
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, ErrNoSource)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "acme-widgets", le.Module)
}

func TestResolve_InvalidDescriptor(t *testing.T) {
	l, err := New(localConfig())
	require.NoError(t, err)
	_, err = l.Resolve(context.Background(), types.ClassDescriptor{Module: "m"})
	assert.ErrorIs(t, err, types.ErrInvalidDescriptor)
}

// ============================================================================
//                              远程
// ============================================================================

func TestResolve_Remote(t *testing.T) {
	srv, hits := moduleServer(t, sliderManifest, nil)
	l, err := New(remoteConfig(srv))
	require.NoError(t, err)

	cls, err := l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", cls.Descriptor.Version)
	assert.Equal(t, "SliderView", cls.View)
	maxV, ok := cls.Defaults["max"].(statetree.Scalar).AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(100), maxV)

	// 返回的默认值是副本
	cls.Defaults["max"] = statetree.Int(1)
	again, err := l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	maxV, _ = again.Defaults["max"].(statetree.Scalar).AsInt()
	assert.Equal(t, int64(100), maxV)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, l.Cached())
}

func TestFetchShared_RechecksCache(t *testing.T) {
	srv, hits := moduleServer(t, sliderManifest, nil)
	l, err := New(remoteConfig(srv))
	require.NoError(t, err)

	_, err = l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	// 合并组内的获取在外层缓存未命中之后开始，此时模块已被前一次获取缓存
	key := "acme-widgets@^1.0.0"
	require.True(t, l.cache.Contains(key))
	mod, err := l.fetchShared(key, "acme-widgets", "^1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", mod.version)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_ClassNotFound(t *testing.T) {
	srv, _ := moduleServer(t, sliderManifest, nil)
	l, err := New(remoteConfig(srv))
	require.NoError(t, err)

	desc := slider()
	desc.Class = "KnobModel"
	_, err = l.Resolve(context.Background(), desc)
	assert.ErrorIs(t, err, ErrClassNotFound)
	assert.NotErrorIs(t, err, ErrLoadFailed)

	var cnf *ClassNotFoundError
	require.ErrorAs(t, err, &cnf)
	assert.Equal(t, "class KnobModel not found in module acme-widgets@1.4.0", cnf.Error())
}

func TestResolve_ConcurrentFetchCoalesced(t *testing.T) {
	gate := make(chan struct{})
	srv, hits := moduleServer(t, sliderManifest, gate)
	l, err := New(remoteConfig(srv))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Resolve(context.Background(), slider())
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	close(gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_CallerAbandonsFetchContinues(t *testing.T) {
	gate := make(chan struct{})
	srv, hits := moduleServer(t, sliderManifest, gate)
	l, err := New(remoteConfig(srv))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Resolve(ctx, slider())
		done <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, 3*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(gate)
	require.Eventually(t, func() bool { return l.Cached() == 1 }, 3*time.Second, 5*time.Millisecond)

	_, err = l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_FailureNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, sliderManifest)
	}))
	t.Cleanup(srv.Close)

	l, err := New(remoteConfig(srv))
	require.NoError(t, err)

	_, err = l.Resolve(context.Background(), slider())
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Zero(t, l.Cached())

	fail.Store(false)
	_, err = l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestResolve_ManifestChecks(t *testing.T) {
	t.Run("mismatch", func(t *testing.T) {
		srv, _ := moduleServer(t, `{"name":"other","exports":{}}`, nil)
		l, err := New(remoteConfig(srv))
		require.NoError(t, err)
		_, err = l.Resolve(context.Background(), slider())
		assert.ErrorIs(t, err, ErrModuleMismatch)
	})

	t.Run("too large", func(t *testing.T) {
		srv, _ := moduleServer(t, sliderManifest, nil)
		cfg := remoteConfig(srv)
		cfg.MaxModuleBytes = 16
		l, err := New(cfg)
		require.NoError(t, err)
		_, err = l.Resolve(context.Background(), slider())
		assert.ErrorIs(t, err, ErrModuleTooLarge)
	})

	t.Run("malformed", func(t *testing.T) {
		srv, _ := moduleServer(t, `{"exports":`, nil)
		l, err := New(remoteConfig(srv))
		require.NoError(t, err)
		_, err = l.Resolve(context.Background(), slider())
		assert.ErrorIs(t, err, ErrLoadFailed)
	})
}

func TestResolve_ExtensionShadowsRemote(t *testing.T) {
	srv, hits := moduleServer(t, sliderManifest, nil)
	l, err := New(remoteConfig(srv))
	require.NoError(t, err)
	require.NoError(t, l.Register(pkgif.Extension{
		Name:    "acme-widgets",
		Version: "1.9.0",
		Exports: pkgif.Exports{"SliderModel": {View: "Local"}},
	}))

	cls, err := l.Resolve(context.Background(), slider())
	require.NoError(t, err)
	assert.Equal(t, "Local", cls.View)
	assert.Zero(t, hits.Load())

	// 范围不匹配时回退到远程
	desc := slider()
	desc.Version = "~1.4.0"
	cls, err = l.Resolve(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "SliderView", cls.View)
}

func TestModuleURL(t *testing.T) {
	cfg := config.DefaultLoaderConfig()
	cfg.URLTemplate = "https://cdn.example/{package}@{version}/dist/widgets.json"
	l, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/acme@^1.0.0/dist/widgets.json", l.ModuleURL("acme", "^1.0.0"))
	assert.Equal(t, "https://cdn.example/acme@*/dist/widgets.json", l.ModuleURL("acme", ""))
}

func TestModule_RegistersExtensions(t *testing.T) {
	var l *Loader
	app := fxtest.New(t,
		Module(),
		fx.Provide(fx.Annotate(
			func() pkgif.Extension {
				return pkgif.Extension{Name: "acme-widgets", Version: "1.0.0", Exports: pkgif.Exports{"SliderModel": {}}}
			},
			fx.ResultTags(`group:"extensions"`),
		)),
		fx.Populate(&l),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, []string{"acme-widgets@1.0.0"}, l.Extensions())
}

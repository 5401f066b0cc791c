// Package main 提供 widgetsync 命令行入口
//
// 连接一个内核 websocket，获取该会话的管理器，记录模型创建与状态变更，
// 可选地暴露 Prometheus 指标并在退出时保存 widget 状态。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-widgetsync"
	"github.com/dep2p/go-widgetsync/config"
	"github.com/dep2p/go-widgetsync/internal/core/channel/ws"
	"github.com/dep2p/go-widgetsync/internal/core/model"
	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
	"github.com/dep2p/go-widgetsync/pkg/lib/log"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

var logger = log.Logger("widgetsync/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」连哪个内核）
//   JSON 配置文件：持久化配置（超时、缓存、存储）
//
// 优先级：命令行 > 环境变量（WIDGETSYNC_*）> 配置文件 > 默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile  = flag.String("config", "", "配置文件路径（JSON）")
	kernelURL   = flag.String("kernel-url", "", "内核 websocket 地址，如 ws://localhost:8888/api/kernels/<id>/channels")
	sessionKey  = flag.String("session", "", "会话标识（默认取 kernel-url）")
	dataDir     = flag.String("data-dir", "", "数据目录（保存状态用）")
	saveState   = flag.Bool("save-state", false, "退出时保存 widget 状态，启动时恢复")
	metricsAddr = flag.String("metrics-addr", "", "Prometheus 指标监听地址，如 :9090")
	logFile     = flag.String("log", "", "日志文件路径（默认 stderr）")
	logLevel    = flag.String("log-level", "", "日志级别，如 info 或 core/loader=debug,info")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

const consumerID types.ConsumerID = "cli"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		for _, e := range widgetsync.ErrorStack(err)[1:] {
			fmt.Fprintf(os.Stderr, "  原因: %v\n", e)
		}
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(widgetsync.VersionInfo())
		return nil
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}
	if *kernelURL == "" {
		return errors.New("必须指定 -kernel-url")
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("启动 widgetsync", "version", widgetsync.Version, "commit", widgetsync.GitCommit)

	opts := []widgetsync.Option{widgetsync.WithConfig(cfg)}
	var reg *prometheus.Registry
	if *metricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, widgetsync.WithMetricsRegisterer(reg))
	}

	host, err := widgetsync.New(opts...)
	if err != nil {
		return err
	}
	if err := host.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.Warn("关闭失败", "err", err)
		}
	}()

	if reg != nil {
		srv := serveMetrics(*metricsAddr, reg)
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	key := types.SessionKey(*sessionKey)
	if key.IsEmpty() {
		key = types.SessionKey(*kernelURL)
	}
	sess, err := ws.Dial(ctx, *kernelURL, key, ws.OptionsFromConfig(cfg.Channel))
	if err != nil {
		return fmt.Errorf("连接内核失败: %w", err)
	}
	defer func() { _ = sess.Close() }()

	mgr, err := host.Acquire(ctx, sess, consumerID)
	if err != nil {
		return fmt.Errorf("获取管理器失败: %w", err)
	}
	mgr.OnModelCreated(watchModel)
	for _, mdl := range mgr.Models() {
		watchModel(mdl)
	}

	fmt.Printf("已连接 %s（会话 %s），按 Ctrl+C 退出\n", *kernelURL, key.ShortString())
	<-ctx.Done()
	fmt.Println("\n正在关闭...")

	// 释放时最后一个消费者离开，管理器销毁（启用时写入快照）
	rctx, rcancel := context.WithTimeout(context.Background(), cfg.Registry.DisposeTimeout.Duration())
	defer rcancel()
	if err := host.Release(rctx, mgr.Key(), consumerID); err != nil && !errors.Is(err, widgetsync.ErrNotFound) {
		return err
	}
	return nil
}

// buildConfig 依次应用配置文件、环境变量和命令行参数
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}

	if isFlagSet("data-dir") {
		cfg.Storage.DataDir = *dataDir
	}
	if isFlagSet("save-state") {
		cfg.Storage.SaveState = *saveState
	}
	if isFlagSet("metrics-addr") {
		cfg.Metrics.Enable = *metricsAddr != ""
	}
	if isFlagSet("log") {
		cfg.Log.File = *logFile
	}
	if isFlagSet("log-level") {
		cfg.Log.Level = *logLevel
	}
	return cfg, cfg.Validate()
}

// isFlagSet 检查参数是否被显式设置
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// setupLogging 按配置安装默认 logger，返回关闭文件的函数
func setupLogging(c config.LogConfig) (func(), error) {
	out := os.Stderr
	closeFn := func() {}
	if c.File != "" {
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // 用户指定的日志路径
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}
	log.SetDefault(slog.New(log.NewHandler(out, c.HandlerConfig())))
	return closeFn, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务退出", "addr", addr, "err", err)
		}
	}()
	logger.Info("指标服务已启动", "addr", addr)
	return srv
}

// watchModel 记录模型的状态变更
func watchModel(mdl *model.Model) {
	desc := mdl.Class()
	logger.Info("模型已创建", "model", mdl.ID().ShortString(), "class", desc.String(), "view", mdl.View())
	mdl.OnStateChange(func(_ pkgif.StateStore, changed statetree.Mapping) {
		logger.Info("状态已变更", "model", mdl.ID().ShortString(), "keys", changed.Keys())
	})
}

// Package widgetsync 在 Go 进程内同步 Jupyter widget 状态
//
// widgetsync 实现 widget 协议 2.1.0 的前端侧：每个后端会话（内核）对应一个
// 管理器，管理器拥有该会话上全部 widget 模型，模型状态通过 comm 通道与内核
// 双向同步。模型类由扩展或远端模块按需解析。
//
// # 核心概念
//
//   - Host: 入口门面，组装注册表、加载器、存储与渲染绑定
//   - Manager: 单个会话的同步权威，按会话标识共享
//   - Model: 带缓冲区的状态树，变更按通道顺序发送与应用
//   - Binder: 视图到挂载点的绑定，随管理器销毁而失效
//
// # 快速开始
//
//	host, err := widgetsync.New(
//	    widgetsync.WithExtensions(myWidgets),
//	    widgetsync.WithSaveState(true),
//	    widgetsync.WithDataDir("./data"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := host.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer host.Close()
//
//	sess, _ := ws.Dial(ctx, kernelURL, "kernel-1", cfg.Channel)
//	mgr, err := host.Acquire(ctx, sess, "notebook-view")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer host.Release(ctx, sess.Key(), "notebook-view")
//
//	mgr.OnModelCreated(func(m *model.Model) {
//	    m.OnStateChange(func(_ pkgif.StateStore, changed []string) { ... })
//	})
//
// # 配置
//
// 配置来自 config.Config（JSON），选项覆盖其上；CLI 额外支持
// WIDGETSYNC_ 前缀的环境变量。
package widgetsync

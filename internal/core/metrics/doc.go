// Package metrics 提供 widgetsync 的 Prometheus 指标
//
// 指标（默认命名空间 widgetsync）：
//
//	widgetsync_registry_managers               gauge    活跃会话管理器数
//	widgetsync_registry_acquire_total{outcome} counter  acquire 结果（created/joined/coalesced/error/not_found/disposed）
//	widgetsync_loader_fetch_total{outcome}     counter  远程模块获取（ok/error）
//	widgetsync_loader_cache_hits_total         counter  模块缓存命中
//	widgetsync_model_sync_total{outcome}       counter  状态同步发送（ok/error）
//	widgetsync_model_sync_bytes_total          counter  同步发送的缓冲区与 JSON 字节数
//
// *Metrics 为 nil 时所有记录方法都是空操作，禁用指标时直接传 nil。
package metrics

import "github.com/dep2p/go-widgetsync/pkg/lib/log"

var logger = log.Logger("core/metrics")

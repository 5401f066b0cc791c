package widgetsync

import (
	"github.com/dep2p/go-widgetsync/internal/core/wire"
	"github.com/dep2p/go-widgetsync/pkg/lib/log"
)

var logger = log.Logger("widgetsync")

// ════════════════════════════════════════════════════════════════════════════
//                              版本信息
// ════════════════════════════════════════════════════════════════════════════

// Version 当前版本
const Version = "v0.1.0"

// ProtocolVersion 实现的 widget 协议版本
const ProtocolVersion = wire.ProtocolVersion

// BuildInfo 构建信息（通过 ldflags 注入）
var (
	// GitCommit Git 提交哈希
	GitCommit string

	// BuildDate 构建日期
	BuildDate string
)

// VersionInfo 返回完整版本信息字符串
func VersionInfo() string {
	info := "widgetsync " + Version + " (protocol " + ProtocolVersion + ")"
	if GitCommit != "" {
		info += " " + GitCommit[:min(8, len(GitCommit))]
	}
	if BuildDate != "" {
		info += " built " + BuildDate
	}
	return info
}

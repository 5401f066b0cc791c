package types

// ============================================================================
//                              RecordState - 管理器记录状态
// ============================================================================

// RecordState 会话记录的生命周期状态
//
//	Absent → Constructing → Active → Disposed（终态）
type RecordState int

const (
	// RecordAbsent 不存在
	RecordAbsent RecordState = iota
	// RecordConstructing 构造中
	RecordConstructing
	// RecordActive 活跃
	RecordActive
	// RecordDisposed 已销毁
	RecordDisposed
)

// String 返回状态名
func (s RecordState) String() string {
	switch s {
	case RecordAbsent:
		return "absent"
	case RecordConstructing:
		return "constructing"
	case RecordActive:
		return "active"
	case RecordDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              Origin - 变更来源
// ============================================================================

// Origin 状态变更的来源
type Origin int

const (
	// OriginLocal 本地 set 调用（需要同步到远端）
	OriginLocal Origin = iota
	// OriginRemote 来自通道的入站消息（不再回传）
	OriginRemote
	// OriginRestore 从保存的状态恢复（不同步）
	OriginRestore
)

// String 返回来源名
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginRestore:
		return "restore"
	default:
		return "unknown"
	}
}

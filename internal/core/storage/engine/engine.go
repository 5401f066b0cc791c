// Package engine 定义保存状态所用的键值存储引擎接口
package engine

// ============================================================================
//                              Engine
// ============================================================================

// Engine 键值存储引擎
//
// 键值均为字节切片；返回的切片归调用方所有。
type Engine interface {
	// Get 读取键；不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 写入键值
	Put(key, value []byte) error

	// Delete 删除键；键不存在不算错误
	Delete(key []byte) error

	// Has 键是否存在
	Has(key []byte) (bool, error)

	// NewBatch 创建批量写入
	NewBatch() Batch

	// NewPrefixIterator 按键序遍历带前缀的键
	NewPrefixIterator(prefix []byte) Iterator

	// Start 启动后台任务（值日志 GC）
	Start() error

	// Sync 把数据刷到磁盘
	Sync() error

	// Stats 运行统计
	Stats() Stats

	// Close 关闭引擎；重复调用安全
	Close() error
}

// Batch 批量写入；Write 之后可以复用
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Write() error
	Size() int
	Close() error
}

// Iterator 前缀迭代器
//
//	it := eng.NewPrefixIterator(prefix)
//	defer it.Close()
//	for it.Next() {
//	    use(it.Key(), it.Value())
//	}
//	return it.Error()
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close()
}

// Stats 引擎统计
type Stats struct {
	LSMSize    int64
	VlogSize   int64
	NumReads   int64
	NumWrites  int64
	NumDeletes int64
}

// DiskSize 磁盘占用
func (s Stats) DiskSize() int64 { return s.LSMSize + s.VlogSize }

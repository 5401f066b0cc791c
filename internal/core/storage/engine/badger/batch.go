package badger

import (
	"sync/atomic"

	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
	"github.com/dgraph-io/badger/v4"
)

// WriteBatch 基于 badger.WriteBatch 的批量写入
type WriteBatch struct {
	db     *Engine
	batch  *badger.WriteBatch
	count  atomic.Int32
	closed atomic.Bool
	err    error
}

// Put 加入写入；空键被忽略
func (b *WriteBatch) Put(key, value []byte) {
	if b.closed.Load() || len(key) == 0 {
		return
	}
	if err := b.batch.Set(key, value); err != nil && b.err == nil {
		b.err = err
	}
	b.count.Add(1)
}

// Delete 加入删除；空键被忽略
func (b *WriteBatch) Delete(key []byte) {
	if b.closed.Load() || len(key) == 0 {
		return
	}
	if err := b.batch.Delete(key); err != nil && b.err == nil {
		b.err = err
	}
	b.count.Add(1)
}

// Write 提交并重置批量
func (b *WriteBatch) Write() error {
	if b.closed.Load() {
		return engine.ErrBatchClosed
	}
	if b.db.closed.Load() {
		return engine.ErrClosed
	}
	if b.db.config.ReadOnly {
		return engine.ErrReadOnly
	}
	if b.err != nil {
		err := b.err
		b.reset()
		return convertError(err)
	}
	if err := b.batch.Flush(); err != nil {
		b.reset()
		return convertError(err)
	}
	b.db.stats.numWrites.Add(int64(b.count.Load()))
	b.reset()
	return nil
}

func (b *WriteBatch) reset() {
	b.count.Store(0)
	b.err = nil
	b.batch = b.db.db.NewWriteBatch()
}

// Size 未提交的操作数
func (b *WriteBatch) Size() int {
	return int(b.count.Load())
}

// Close 丢弃未提交的操作
func (b *WriteBatch) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.batch.Cancel()
	return nil
}

var _ engine.Batch = (*WriteBatch)(nil)

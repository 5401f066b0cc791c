package badger

import (
	"sync/atomic"

	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
	"github.com/dgraph-io/badger/v4"
)

// Iterator 只读事务上的前缀迭代器
type Iterator struct {
	txn     *badger.Txn
	iter    *badger.Iterator
	prefix  []byte
	started bool
	done    bool
	closed  atomic.Bool
	err     error
}

// Next 前进一步；第一次调用定位到首个键
func (it *Iterator) Next() bool {
	if it.done || it.closed.Load() {
		return false
	}
	if !it.started {
		it.started = true
		it.iter.Seek(it.prefix)
	} else {
		it.iter.Next()
	}
	if !it.iter.ValidForPrefix(it.prefix) {
		it.done = true
		return false
	}
	return true
}

// Key 当前键（副本）
func (it *Iterator) Key() []byte {
	if it.done || it.closed.Load() || !it.started {
		return nil
	}
	return it.iter.Item().KeyCopy(nil)
}

// Value 当前值（副本）；读取失败记录到 Error
func (it *Iterator) Value() []byte {
	if it.done || it.closed.Load() || !it.started {
		return nil
	}
	value, err := it.iter.Item().ValueCopy(nil)
	if err != nil {
		it.err = err
		return nil
	}
	return value
}

// Error 迭代中遇到的错误
func (it *Iterator) Error() error {
	return it.err
}

// Close 释放迭代器和事务
func (it *Iterator) Close() {
	if it.closed.Swap(true) {
		return
	}
	if it.iter != nil {
		it.iter.Close()
	}
	if it.txn != nil {
		it.txn.Discard()
	}
}

var _ engine.Iterator = (*Iterator)(nil)

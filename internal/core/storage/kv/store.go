// Package kv 在存储引擎上提供带前缀隔离的键空间
//
// 键空间约定：
//
//	ws/<session>   会话的保存状态（JSON）
package kv

import (
	"encoding/json"
	"fmt"

	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
)

// Store 带前缀隔离的 KV 存储
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建前缀为 prefix 的存储
func New(eng engine.Engine, prefix []byte) *Store {
	p := make([]byte, len(prefix))
	copy(p, prefix)
	return &Store{engine: eng, prefix: p}
}

func (s *Store) prefixKey(key []byte) []byte {
	out := make([]byte, 0, len(s.prefix)+len(key))
	out = append(out, s.prefix...)
	return append(out, key...)
}

func (s *Store) stripPrefix(key []byte) []byte {
	if len(key) < len(s.prefix) {
		return key
	}
	return key[len(s.prefix):]
}

// Get 读取键
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 写入键值
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// Has 键是否存在
func (s *Store) Has(key []byte) (bool, error) {
	return s.engine.Has(s.prefixKey(key))
}

// GetJSON 读取并解码 JSON
func (s *Store) GetJSON(key []byte, v interface{}) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("kv: decode %s: %w", key, err)
	}
	return nil
}

// PutJSON 编码为 JSON 写入
func (s *Store) PutJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", key, err)
	}
	return s.Put(key, data)
}

// PrefixScan 按键序遍历子前缀；fn 返回 false 停止
//
// 传给 fn 的键已去掉存储前缀。
func (s *Store) PrefixScan(subPrefix []byte, fn func(key, value []byte) bool) error {
	it := s.engine.NewPrefixIterator(s.prefixKey(subPrefix))
	defer it.Close()
	for it.Next() {
		if !fn(s.stripPrefix(it.Key()), it.Value()) {
			break
		}
	}
	return it.Error()
}

// Keys 子前缀下的全部键
func (s *Store) Keys(subPrefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.PrefixScan(subPrefix, func(key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, err
}

// DeletePrefix 删除子前缀下的全部键，返回删除数
func (s *Store) DeletePrefix(subPrefix []byte) (int, error) {
	keys, err := s.Keys(subPrefix)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	batch := s.engine.NewBatch()
	defer batch.Close()
	for _, k := range keys {
		batch.Delete(s.prefixKey(k))
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// SubStore 在当前前缀后追加子前缀
func (s *Store) SubStore(subPrefix []byte) *Store {
	return New(s.engine, s.prefixKey(subPrefix))
}

// Prefix 存储前缀
func (s *Store) Prefix() []byte {
	return s.prefix
}

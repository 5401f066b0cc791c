// Package snapshot 把会话的保存状态写入 KV 存储
//
// 每个会话一条记录，键为 ws/<session>，值为 zstd 压缩的保存状态文档 JSON。
// 读取时兼容未压缩的明文 JSON。
package snapshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/dep2p/go-widgetsync/internal/core/manager"
	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
	"github.com/dep2p/go-widgetsync/internal/core/storage/kv"
	"github.com/dep2p/go-widgetsync/pkg/lib/log"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

var logger = log.Logger("core/storage/snapshot")

// Prefix 保存状态的键前缀
var Prefix = []byte("ws/")

// Store 按会话保存快照
type Store struct {
	kv *kv.Store
}

// New 在引擎上创建快照存储
func New(eng engine.Engine) *Store {
	return &Store{kv: kv.New(eng, Prefix)}
}

// Put 覆盖会话的快照
func (s *Store) Put(ctx context.Context, key types.SessionKey, st *manager.SavedState) error {
	if key.IsEmpty() {
		return types.ErrEmptySessionKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeValue(st)
	if err != nil {
		return fmt.Errorf("snapshot: encode %s: %w", key, err)
	}
	if err := s.kv.Put([]byte(key), data); err != nil {
		return fmt.Errorf("snapshot: put %s: %w", key, err)
	}
	logger.Debug("快照已保存", "session", key.ShortString(), "models", len(st.State))
	return nil
}

// Get 读取会话的快照；不存在时返回包装 manager.ErrNoSnapshot 的错误
func (s *Store) Get(ctx context.Context, key types.SessionKey) (*manager.SavedState, error) {
	if key.IsEmpty() {
		return nil, types.ErrEmptySessionKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.kv.Get([]byte(key))
	if err != nil {
		if engine.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", manager.ErrNoSnapshot, key)
		}
		return nil, fmt.Errorf("snapshot: get %s: %w", key, err)
	}
	var st manager.SavedState
	if err := decodeValue(data, &st); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", key, err)
	}
	return &st, nil
}

// Delete 删除会话的快照；不存在不算错误
func (s *Store) Delete(ctx context.Context, key types.SessionKey) error {
	if key.IsEmpty() {
		return types.ErrEmptySessionKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.kv.Delete([]byte(key))
}

// Sessions 有快照的会话（排序）
func (s *Store) Sessions(ctx context.Context) ([]types.SessionKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys, err := s.kv.Keys(nil)
	if err != nil {
		return nil, err
	}
	out := make([]types.SessionKey, len(keys))
	for i, k := range keys {
		out[i] = types.SessionKey(k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

var _ manager.SnapshotStore = (*Store)(nil)

package manager

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/dep2p/go-widgetsync/internal/core/model"
	"github.com/dep2p/go-widgetsync/pkg/lib/statetree"
	"github.com/dep2p/go-widgetsync/pkg/types"
)

// ============================================================================
//                              保存状态格式
// ============================================================================

// StateMimeType 保存状态文档的 MIME 类型
const StateMimeType = "application/vnd.jupyter.widget-state+json"

// 当前写出的格式版本
const (
	StateVersionMajor = 2
	StateVersionMinor = 0
)

// SavedState 一个会话全部模型的快照
type SavedState struct {
	VersionMajor int                           `json:"version_major"`
	VersionMinor int                           `json:"version_minor"`
	State        map[types.ModelID]*SavedModel `json:"state"`
}

// SavedModel 单个模型的快照
type SavedModel struct {
	ModelName          string            `json:"model_name"`
	ModelModule        string            `json:"model_module"`
	ModelModuleVersion string            `json:"model_module_version"`
	State              statetree.Mapping `json:"state"`
	Buffers            []SavedBuffer     `json:"buffers,omitempty"`
}

// SavedBuffer 抽出的缓冲区；Data 按 Encoding 编码
type SavedBuffer struct {
	Path     statetree.Path `json:"path"`
	Encoding string         `json:"encoding"`
	Data     string         `json:"data"`
}

// Descriptor 模型的类描述符
func (sm *SavedModel) Descriptor() types.ClassDescriptor {
	return types.ClassDescriptor{Module: sm.ModelModule, Version: sm.ModelModuleVersion, Class: sm.ModelName}
}

// ModelIDs 按标识排序
func (s *SavedState) ModelIDs() []types.ModelID {
	ids := make([]types.ModelID, 0, len(s.State))
	for id := range s.State {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// snapshotModel 抽出缓冲区并编码
func snapshotModel(mdl *model.Model) *SavedModel {
	desc := mdl.Class()
	state, paths, buffers := statetree.ExtractMapping(mdl.State())
	sm := &SavedModel{
		ModelName:          desc.Class,
		ModelModule:        desc.Module,
		ModelModuleVersion: desc.Version,
		State:              state,
	}
	for i, p := range paths {
		sm.Buffers = append(sm.Buffers, SavedBuffer{
			Path:     p,
			Encoding: "base64",
			Data:     base64.StdEncoding.EncodeToString(buffers[i].Data),
		})
	}
	return sm
}

// restoredState 解码缓冲区并注入状态副本
func (sm *SavedModel) restoredState() (statetree.Mapping, error) {
	state := statetree.CloneMapping(sm.State)
	if len(sm.Buffers) == 0 {
		return state, nil
	}
	paths := make([]statetree.Path, len(sm.Buffers))
	bufs := make([]statetree.Buffer, len(sm.Buffers))
	for i, b := range sm.Buffers {
		var data []byte
		switch b.Encoding {
		case "base64", "":
			decoded, err := base64.StdEncoding.DecodeString(b.Data)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrBadBuffer, b.Path, err)
			}
			data = decoded
		default:
			return nil, fmt.Errorf("%w: %s: unknown encoding %q", ErrBadBuffer, b.Path, b.Encoding)
		}
		paths[i] = b.Path
		bufs[i] = statetree.Bytes(data)
	}
	if err := statetree.Inject(state, paths, bufs); err != nil {
		return nil, err
	}
	return state, nil
}

// ============================================================================
//                              Manager 方法
// ============================================================================

// State 生成当前全部模型的快照
func (m *Manager) State(ctx context.Context) (*SavedState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &SavedState{
		VersionMajor: StateVersionMajor,
		VersionMinor: StateVersionMinor,
		State:        make(map[types.ModelID]*SavedModel),
	}
	for _, mdl := range m.Models() {
		out.State[mdl.ID()] = snapshotModel(mdl)
	}
	return out, nil
}

// RestoreState 从快照重建未连接的模型
//
// 已存在的模型标识被跳过；返回新建的模型（按标识排序）。
func (m *Manager) RestoreState(ctx context.Context, saved *SavedState) ([]*model.Model, error) {
	if saved == nil {
		return nil, nil
	}
	if saved.VersionMajor != StateVersionMajor {
		return nil, fmt.Errorf("%w: %d.%d", ErrUnsupportedVersion, saved.VersionMajor, saved.VersionMinor)
	}

	var restored []*model.Model
	for _, id := range saved.ModelIDs() {
		sm := saved.State[id]
		if sm == nil {
			continue
		}
		if _, ok := m.lookup(id); ok {
			logger.Debug("跳过已存在的模型", "model", id.ShortString())
			continue
		}
		state, err := sm.restoredState()
		if err != nil {
			return restored, fmt.Errorf("restore model %s: %w", id, err)
		}
		cls, err := m.deps.Resolver.Resolve(ctx, sm.Descriptor())
		if err != nil {
			return restored, fmt.Errorf("restore model %s: %w", id, err)
		}
		mdl := m.newModel(id, cls, state)
		if err := m.register(mdl); err != nil {
			_ = mdl.Close(ctx)
			return restored, err
		}
		restored = append(restored, mdl)
	}
	logger.Info("已恢复保存的状态", "session", m.Key().ShortString(), "models", len(restored))
	return restored, nil
}

// Save 把快照写入快照存储
func (m *Manager) Save(ctx context.Context) error {
	if m.deps.Snapshots == nil {
		return ErrNoSnapshotStore
	}
	st, err := m.State(ctx)
	if err != nil {
		return err
	}
	return m.deps.Snapshots.Put(ctx, m.Key(), st)
}

// Load 从快照存储恢复；没有快照时返回 ErrNoSnapshot
func (m *Manager) Load(ctx context.Context) ([]*model.Model, error) {
	if m.deps.Snapshots == nil {
		return nil, ErrNoSnapshotStore
	}
	st, err := m.deps.Snapshots.Get(ctx, m.Key())
	if err != nil {
		return nil, err
	}
	return m.RestoreState(ctx, st)
}

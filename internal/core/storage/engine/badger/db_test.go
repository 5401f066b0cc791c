package badger

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/dep2p/go-widgetsync/internal/core/storage/engine"
)

// testEngine 在临时目录创建引擎
func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := engine.DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(); err != nil {
			t.Errorf("failed to close engine: %v", err)
		}
	})
	return e
}

// ============= 基础读写 =============

func TestEngine_PutGet(t *testing.T) {
	e := testEngine(t)

	if err := e.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := e.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get returned %q, want %q", got, "v")
	}
}

func TestEngine_GetNotFound(t *testing.T) {
	e := testEngine(t)

	_, err := e.Get([]byte("missing"))
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Get returned %v, want ErrNotFound", err)
	}
}

func TestEngine_DeleteAndHas(t *testing.T) {
	e := testEngine(t)
	key := []byte("k")

	if err := e.Put(key, []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ok, err := e.Has(key); err != nil || !ok {
		t.Fatalf("Has = %v, %v; want true", ok, err)
	}
	if err := e.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, err := e.Has(key); err != nil || ok {
		t.Fatalf("Has after delete = %v, %v; want false", ok, err)
	}
	if err := e.Delete([]byte("never-written")); err != nil {
		t.Errorf("Delete of missing key returned %v", err)
	}
}

func TestEngine_EmptyKey(t *testing.T) {
	e := testEngine(t)

	if err := e.Put(nil, []byte("v")); !errors.Is(err, engine.ErrEmptyKey) {
		t.Errorf("Put returned %v, want ErrEmptyKey", err)
	}
	if _, err := e.Get(nil); !errors.Is(err, engine.ErrEmptyKey) {
		t.Errorf("Get returned %v, want ErrEmptyKey", err)
	}
}

func TestEngine_Closed(t *testing.T) {
	cfg := engine.DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
	if err := e.Put([]byte("k"), nil); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Put after close returned %v, want ErrClosed", err)
	}
	if err := e.Start(); !errors.Is(err, engine.ErrClosed) {
		t.Errorf("Start after close returned %v, want ErrClosed", err)
	}
	it := e.NewPrefixIterator(nil)
	if it.Next() || !errors.Is(it.Error(), engine.ErrClosed) {
		t.Errorf("iterator after close should fail with ErrClosed")
	}
	it.Close()
}

func TestEngine_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	e, err := New(engine.DefaultConfig(path))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := e.Put([]byte("persist"), []byte("yes")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	e2, err := New(engine.DefaultConfig(path))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer e2.Close()
	got, err := e2.Get([]byte("persist"))
	if err != nil || string(got) != "yes" {
		t.Errorf("Get after reopen = %q, %v", got, err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Errorf("New(nil) returned %v", err)
	}
	if _, err := New(engine.DefaultConfig("")); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Errorf("New with empty path returned %v", err)
	}
}

// ============= 批量与迭代 =============

func TestEngine_Batch(t *testing.T) {
	e := testEngine(t)
	if err := e.Put([]byte("gone"), []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	b := e.NewBatch()
	defer b.Close()
	for i := 0; i < 10; i++ {
		b.Put([]byte(fmt.Sprintf("b/%02d", i)), []byte{byte(i)})
	}
	b.Delete([]byte("gone"))
	b.Put(nil, []byte("ignored"))
	if b.Size() != 11 {
		t.Errorf("Size = %d, want 11", b.Size())
	}
	if err := b.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if b.Size() != 0 {
		t.Errorf("Size after Write = %d, want 0", b.Size())
	}

	got, err := e.Get([]byte("b/07"))
	if err != nil || !bytes.Equal(got, []byte{7}) {
		t.Errorf("Get b/07 = %v, %v", got, err)
	}
	if ok, _ := e.Has([]byte("gone")); ok {
		t.Errorf("batched delete not applied")
	}

	// 复用
	b.Put([]byte("b/again"), []byte("1"))
	if err := b.Write(); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	if ok, _ := e.Has([]byte("b/again")); !ok {
		t.Errorf("reused batch not applied")
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Write(); !errors.Is(err, engine.ErrBatchClosed) {
		t.Errorf("Write after close returned %v", err)
	}
}

func TestEngine_PrefixIterator(t *testing.T) {
	e := testEngine(t)
	for _, k := range []string{"a/2", "a/1", "b/1", "a/3", "ab"} {
		if err := e.Put([]byte(k), []byte("v-"+k)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	it := e.NewPrefixIterator([]byte("a/"))
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		if want := "v-" + string(it.Key()); string(it.Value()) != want {
			t.Errorf("Value = %q, want %q", it.Value(), want)
		}
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	want := []string{"a/1", "a/2", "a/3"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if it.Next() {
		t.Errorf("Next after exhaustion returned true")
	}
}

func TestEngine_StartAndStats(t *testing.T) {
	e := testEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	_ = e.Put([]byte("k"), []byte("v"))
	_, _ = e.Get([]byte("k"))
	_ = e.Delete([]byte("k"))
	if err := e.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	s := e.Stats()
	if s.NumWrites != 1 || s.NumReads != 1 || s.NumDeletes != 1 {
		t.Errorf("Stats = %+v", s)
	}
	if s.DiskSize() < 0 {
		t.Errorf("DiskSize = %d", s.DiskSize())
	}
}

package model

import (
	"sync"

	pkgif "github.com/dep2p/go-widgetsync/pkg/interfaces"
)

// listeners 回调集合，按注册顺序调用
type listeners[F any] struct {
	mu    sync.Mutex
	next  uint64
	order []uint64
	fns   map[uint64]F
}

func (l *listeners[F]) add(fn F) pkgif.Handle {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[uint64]F)
	}
	l.next++
	id := l.next
	l.fns[id] = fn
	l.order = append(l.order, id)
	l.mu.Unlock()

	return pkgif.HandleFunc(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
		for i, v := range l.order {
			if v == id {
				l.order = append(l.order[:i], l.order[i+1:]...)
				break
			}
		}
	})
}

func (l *listeners[F]) snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]F, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.fns[id])
	}
	return out
}

func (l *listeners[F]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// Package eventbus delivers typed in-process events. The server, the HTTP
// backend and the executor publish; telemetry subscribes.
package eventbus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
)

type Handler[T any] func(context.Context, T)

type subscription struct {
	id uint64
	fn func(context.Context, any)
}

// Bus routes each event to the handlers subscribed to its exact type.
// Handlers run synchronously on the publishing goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[reflect.Type][]subscription
}

func New() *Bus { return &Bus{subs: make(map[reflect.Type][]subscription)} }

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

func (b *Bus) remove(t reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[t]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subs, t)
		return
	}
	b.subs[t] = subs
}

func (b *Bus) dispatch(ctx context.Context, t reflect.Type, e any) {
	b.mu.RLock()
	subs := b.subs[t]
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ctx, e)
	}
}

var global atomic.Pointer[Bus]

// Use installs b as the process-wide bus. nil turns publishing off.
func Use(b *Bus) { global.Store(b) }

// Subscribe adds h to the current bus. Without a bus it does nothing and the
// returned func is a no-op.
func Subscribe[T any](h Handler[T]) (unsubscribe func()) {
	b := global.Load()
	if b == nil {
		return func() {}
	}
	return b.add(reflect.TypeFor[T](), func(ctx context.Context, v any) { h(ctx, v.(T)) })
}

func Publish[T any](ctx context.Context, e T) {
	if b := global.Load(); b != nil {
		b.dispatch(ctx, reflect.TypeFor[T](), e)
	}
}

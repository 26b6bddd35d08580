package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{}

func TestPublishReachesTypedSubscribers(t *testing.T) {
	Use(New())
	defer Use(nil)

	var a, b []int
	unsubA := Subscribe(func(_ context.Context, p ping) { a = append(a, p.n) })
	Subscribe(func(_ context.Context, p ping) { b = append(b, p.n) })
	var pongs int
	Subscribe(func(context.Context, pong) { pongs++ })

	ctx := context.Background()
	Publish(ctx, ping{1})
	unsubA()
	unsubA()
	Publish(ctx, ping{2})
	Publish(ctx, pong{})

	assert.Equal(t, []int{1}, a)
	assert.Equal(t, []int{1, 2}, b)
	assert.Equal(t, 1, pongs)
}

func TestNoBusIsSilent(t *testing.T) {
	Use(nil)
	called := false
	unsub := Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	unsub()
	assert.False(t, called)
}

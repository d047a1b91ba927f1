package rbac

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroadcastPair(t *testing.T) (*PermissionCache, *PermissionCache, *memoryLoader) {
	t.Helper()
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	loader := newMemoryLoader(map[int64][]string{1: {"ROLES"}, 2: {"NOTAS", "ASISTENCIAS"}})
	var caches []*PermissionCache
	for i := 0; i < 2; i++ {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		broadcaster := NewRedisBroadcaster(client, nil)
		cache := NewPermissionCache(loader, WithPublisher(broadcaster))
		require.NoError(t, broadcaster.Listen(ctx, cache))
		caches = append(caches, cache)
	}
	return caches[0], caches[1], loader
}

func TestBroadcastInvalidatesOtherInstances(t *testing.T) {
	local, remote, loader := newBroadcastPair(t)
	ctx := context.Background()

	_, err := remote.Get(ctx, 2)
	require.NoError(t, err)
	_, err = remote.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, remote.Len())

	loader.set(2, "NOTAS")
	local.Invalidate(ctx, 2)

	require.Eventually(t, func() bool { return remote.Len() == 1 }, time.Second, 10*time.Millisecond)
	set, err := remote.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"NOTAS"}, set.Sorted())
}

func TestBroadcastClearEmptiesOtherInstances(t *testing.T) {
	local, remote, _ := newBroadcastPair(t)
	ctx := context.Background()

	_, err := remote.Get(ctx, 1)
	require.NoError(t, err)
	_, err = local.Get(ctx, 1)
	require.NoError(t, err)

	local.Clear(ctx)
	assert.Zero(t, local.Len())
	require.Eventually(t, func() bool { return remote.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastIgnoresOwnMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	broadcaster := NewRedisBroadcaster(client, nil)
	target := &recordingInvalidator{}
	require.NoError(t, broadcaster.Listen(ctx, target))

	require.NoError(t, broadcaster.PublishInvalidation(ctx, []int64{4}, false))
	other := NewRedisBroadcaster(client, nil)
	require.NoError(t, other.PublishInvalidation(ctx, []int64{5}, false))

	require.Eventually(t, func() bool { return len(target.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{5}, target.snapshot())
}

func TestBroadcastUndecodablePayloadClears(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	target := &recordingInvalidator{}
	require.NoError(t, NewRedisBroadcaster(client, nil).Listen(ctx, target))
	require.NoError(t, client.Publish(ctx, InvalidationChannel, "garbage").Err())

	require.Eventually(t, func() bool { return target.clears() == 1 }, time.Second, 10*time.Millisecond)
}

type recordingInvalidator struct {
	mu      sync.Mutex
	dropped []int64
	cleared int
}

func (r *recordingInvalidator) DropLocal(roleIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, roleIDs...)
}

func (r *recordingInvalidator) ClearLocal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

func (r *recordingInvalidator) snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.dropped...)
}

func (r *recordingInvalidator) clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleared
}

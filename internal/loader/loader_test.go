package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
}

func (r *recorder) fetch(_ context.Context, keys []int) (map[int]string, error) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]int(nil), keys...))
	r.mu.Unlock()
	out := make(map[int]string, len(keys))
	for _, k := range keys {
		if k < 100 {
			out[k] = "user-" + string(rune('a'+k))
		}
	}
	return out, nil
}

func (r *recorder) calls() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

func TestLoad_ConcurrentSameKeyFetchesOnce(t *testing.T) {
	rec := &recorder{}
	l := New[int, string](rec.fetch)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, ok, err := l.Load(ctx, 5)
			assert.NoError(t, err)
			assert.True(t, ok)
			results[i] = v
		}(i)
	}
	wg.Wait()

	require.Len(t, rec.calls(), 1)
	assert.Equal(t, []int{5}, rec.calls()[0])
	for _, v := range results {
		assert.Equal(t, "user-f", v)
	}
}

func TestLoad_LateCallerReusesResolvedSlot(t *testing.T) {
	rec := &recorder{}
	l := New[int, string](rec.fetch)
	ctx := context.Background()

	_, _, err := l.Load(ctx, 1)
	require.NoError(t, err)
	_, _, err = l.Load(ctx, 1)
	require.NoError(t, err)

	assert.Len(t, rec.calls(), 1)
}

func TestLoad_DistinctKeysShareBatch(t *testing.T) {
	rec := &recorder{}
	l := New[int, string](rec.fetch, WithWait(time.Hour), WithMaxBatch(3))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, k := range []int{1, 2, 3, 2, 1} {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, _, err := l.Load(ctx, k)
			assert.NoError(t, err)
		}(k)
	}
	wg.Wait()

	calls := rec.calls()
	require.Len(t, calls, 1)
	keys := calls[0]
	sort.Ints(keys)
	assert.Equal(t, []int{1, 2, 3}, keys)
}

func TestLoad_MissingKeyIsNotFound(t *testing.T) {
	rec := &recorder{}
	l := New[int, string](rec.fetch)

	v, ok, err := l.Load(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestLoadMany_SingleBatch(t *testing.T) {
	rec := &recorder{}
	l := New[int, string](rec.fetch)

	got, err := l.LoadMany(context.Background(), []int{1, 2, 404, 1})
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "user-b", 2: "user-c"}, got)
	assert.Len(t, rec.calls(), 1)
}

func TestLoad_ErrorReachesEveryWaiter(t *testing.T) {
	boom := errors.New("db down")
	l := New[int, string](func(context.Context, []int) (map[int]string, error) {
		return nil, boom
	}, WithWait(time.Hour), WithMaxBatch(2))
	ctx := context.Background()

	errs := make(chan error, 2)
	for _, k := range []int{1, 2} {
		go func(k int) {
			_, _, err := l.Load(ctx, k)
			errs <- err
		}(k)
	}
	assert.ErrorIs(t, <-errs, boom)
	assert.ErrorIs(t, <-errs, boom)
}

func TestLoad_PanicBecomesError(t *testing.T) {
	l := New[int, string](func(context.Context, []int) (map[int]string, error) {
		panic("kaboom")
	})

	_, _, err := l.Load(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestLoad_CallerContextCancelled(t *testing.T) {
	release := make(chan struct{})
	var fetched atomic.Int32
	l := New[int, string](func(context.Context, []int) (map[int]string, error) {
		fetched.Add(1)
		<-release
		return map[int]string{1: "x"}, nil
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := l.Load(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPrimeAndClear(t *testing.T) {
	rec := &recorder{}
	l := New[int, string](rec.fetch)
	ctx := context.Background()

	l.Prime(7, "primed")
	v, ok, err := l.Load(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "primed", v)
	assert.Empty(t, rec.calls())

	l.Clear(7)
	v, _, err = l.Load(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "user-h", v)
	assert.Len(t, rec.calls(), 1)
}

func TestLoaders_AreIndependent(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()

	_, _, err := New[int, string](rec.fetch).Load(ctx, 3)
	require.NoError(t, err)
	_, _, err = New[int, string](rec.fetch).Load(ctx, 3)
	require.NoError(t, err)

	assert.Len(t, rec.calls(), 2)
}

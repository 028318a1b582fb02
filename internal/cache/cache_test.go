package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

func TestGetSetRemove(t *testing.T) {
	c := New[string]()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", "v1", 0)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	c.Set("k", "v2", time.Minute)
	v, _ = c.Get("k")
	assert.Equal(t, "v2", v)

	c.Remove("k")
	c.Remove("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestExpiredEntryIsAbsentWithoutSweep(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestSweep(t *testing.T) {
	c := New[int]()
	c.Set("short", 1, time.Millisecond)
	c.Set("long", 2, time.Hour)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestRemovePrefix(t *testing.T) {
	c := New[int]()
	c.Set(UserPageKey(1, 20), 1, 0)
	c.Set(UserPageKey(2, 20), 2, 0)
	c.Set("user:abc", 3, 0)

	assert.Equal(t, 2, c.RemovePrefix(UserPagesPrefix))
	_, ok := c.Get("user:abc")
	assert.True(t, ok)
}

func TestGetOrSetSingleFlight(t *testing.T) {
	c := New[string]()
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 50
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrSet(context.Background(), "customer:1", 0, func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "loaded", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "loaded", r)
	}
	v, ok := c.Get("customer:1")
	assert.True(t, ok)
	assert.Equal(t, "loaded", v)
}

func TestGetOrSetFailedLoadIsNotMemoised(t *testing.T) {
	c := New[string]()
	boom := errors.New("store down")
	release := make(chan struct{})
	var calls atomic.Int32

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetOrSet(context.Background(), "k", 0, func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "", boom
			})
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, boom)
	}
	_, ok := c.Get("k")
	assert.False(t, ok)

	v, err := c.GetOrSet(context.Background(), "k", 0, func(context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", v)
}

func TestGetOrSetLoaderPanic(t *testing.T) {
	c := New[int]()
	_, err := c.GetOrSet(context.Background(), "k", 0, func(context.Context) (int, error) {
		panic("bad loader")
	})
	assert.ErrorIs(t, err, apperr.ErrCache)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestRemoveDuringLoadDiscardsResult(t *testing.T) {
	c := New[string]()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _ := c.GetOrSet(context.Background(), "k", 0, func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- v
	}()
	<-started
	c.Remove("k")
	close(release)

	assert.Equal(t, "stale", <-done)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestGetOrSetWaiterCancellation(t *testing.T) {
	c := New[string]()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = c.GetOrSet(context.Background(), "k", 0, func(context.Context) (string, error) {
			<-release
			return "v", nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetOrSet(ctx, "k", 0, func(context.Context) (string, error) { return "other", nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadTypeMismatch(t *testing.T) {
	c := New[any]()
	c.Set("k", 42, 0)

	_, err := Load(context.Background(), c, "k", 0, func(context.Context) (string, error) { return "x", nil })
	var cerr *apperr.CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "k", cerr.Key)

	n, err := Load(context.Background(), c, "k", 0, func(context.Context) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, ok := Lookup[string](c, "k")
	assert.False(t, ok)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics("test", reg)
	require.NoError(t, err)
	again, err := NewMetrics("test", reg)
	require.NoError(t, err)
	assert.NotNil(t, again)

	c := New[int](WithMetrics(m))
	c.Get("k")
	_, _ = c.GetOrSet(context.Background(), "k", 0, func(context.Context) (int, error) { return 1, nil })
	c.Get("k")
	c.Remove("k")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evictions.WithLabelValues("removed")))
}

type recordingInvalidator struct {
	mu   sync.Mutex
	sent []Invalidation
	err  error
}

func (r *recordingInvalidator) Publish(_ context.Context, inv Invalidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, inv)
	return r.err
}

func TestInvalidatorReceivesLocalWrites(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	c := New[int](WithInvalidator(inv))

	c.Set("a", 1, 0)
	c.Remove("b")
	c.RemovePrefix("users:page:")

	assert.Equal(t, []Invalidation{
		{Op: OpKey, Target: "a"},
		{Op: OpKey, Target: "b"},
		{Op: OpPrefix, Target: "users:page:"},
	}, inv.sent)
	v, ok := c.Get("a")
	assert.True(t, ok, "publish failure must not undo the local write")
	assert.Equal(t, 1, v)
}

func TestRedisInvalidatorApply(t *testing.T) {
	r := NewRedisInvalidator(nil, "cache-invalidation", nil)
	c := New[int]()
	c.Set("customer:1", 1, 0)
	c.Set("users:page:1:size:10", 1, 0)
	c.Set("keep", 1, 0)

	payload := func(inv Invalidation) []byte {
		b, _ := json.Marshal(inv)
		return b
	}
	r.apply(c, payload(Invalidation{Origin: "peer", Op: OpKey, Target: "customer:1"}))
	r.apply(c, payload(Invalidation{Origin: "peer", Op: OpPrefix, Target: "users:page:"}))
	r.apply(c, payload(Invalidation{Origin: r.origin, Op: OpKey, Target: "keep"}))
	r.apply(c, []byte("not json"))

	_, ok := c.Get("customer:1")
	assert.False(t, ok)
	_, ok = c.Get("users:page:1:size:10")
	assert.False(t, ok)
	_, ok = c.Get("keep")
	assert.True(t, ok)
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	c := New[int]()
	c.Set("k", 1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, 2*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 2*time.Millisecond)
	cancel()
	<-done
}

package mapview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_RequiresBrowser(t *testing.T) {
	var calls int32
	l := NewLoader(func(context.Context) (Library, error) {
		atomic.AddInt32(&calls, 1)
		return &fakeLib{}, nil
	}, nil)

	_, _, err := l.Load(context.Background(), EnvironmentFunc(func() bool { return false }))
	assert.ErrorIs(t, err, ErrNotBrowser)

	_, _, err = l.Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotBrowser)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestLoader_FailureIsNotCached(t *testing.T) {
	resetDefaultIconPatch()
	lib := &fakeLib{}
	var calls int32
	l := NewLoader(func(context.Context) (Library, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("cdn unreachable")
		}
		return lib, nil
	}, nil)

	_, _, err := l.Load(context.Background(), browser)
	require.ErrorIs(t, err, ErrLoad)
	assert.Contains(t, err.Error(), "cdn unreachable")

	got, icon, err := l.Load(context.Background(), browser)
	require.NoError(t, err)
	assert.Same(t, lib, got)
	require.NotNil(t, icon)
	assert.Equal(t, ReportIconSpec(), icon.Spec())
}

func TestLoader_ConcurrentCallersShareOneLoad(t *testing.T) {
	resetDefaultIconPatch()
	release := make(chan struct{})
	var calls int32
	l := NewLoader(func(context.Context) (Library, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &fakeLib{}, nil
	}, nil)

	var wg sync.WaitGroup
	libs := make([]Library, 5)
	for i := range libs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lib, _, err := l.Load(context.Background(), browser)
			assert.NoError(t, err)
			libs[i] = lib
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, lib := range libs {
		assert.Same(t, libs[0], lib)
	}
}

func TestLoader_DefaultIconPatchedOncePerProcess(t *testing.T) {
	resetDefaultIconPatch()
	lib := &fakeLib{}

	for i := 0; i < 3; i++ {
		_, _, err := staticLoader(lib).Load(context.Background(), browser)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, lib.defaultIconSets)
}

func TestLoader_IconFailureFallsBackToDefault(t *testing.T) {
	resetDefaultIconPatch()
	lib := &fakeLib{iconErr: errors.New("bad svg")}

	got, icon, err := staticLoader(lib).Load(context.Background(), browser)
	require.NoError(t, err)
	assert.Same(t, lib, got)
	assert.Nil(t, icon)
}

func TestLoader_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	l := NewLoader(func(context.Context) (Library, error) {
		<-block
		return &fakeLib{}, nil
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := l.Load(ctx, browser)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

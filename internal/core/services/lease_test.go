package services

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
)

func TestRunLease_AcquireRelease(t *testing.T) {
	l := newRunLease()

	release, err := l.acquire("ep-1", 8)
	require.NoError(t, err)

	_, err = l.acquire("ep-1", 8)
	assert.ErrorIs(t, err, domain.ErrConcurrentRun)

	other, err := l.acquire("ep-2", 8)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := l.acquire("ep-1", 8)
	require.NoError(t, err)
	again()
}

func TestRunLease_Status(t *testing.T) {
	l := newRunLease()
	_, ok := l.status("ep-1")
	assert.False(t, ok)

	release, err := l.acquire("ep-1", 8)
	require.NoError(t, err)
	defer release()

	l.setState("ep-1", domain.StateValidating)
	l.sectionDone("ep-1")
	l.sectionDone("ep-1")
	l.setState("ep-unknown", domain.StateFailed)

	s, ok := l.status("ep-1")
	require.True(t, ok)
	assert.Equal(t, domain.StateValidating, s.State)
	assert.Equal(t, 2, s.Completed)
	assert.Equal(t, 8, s.Sections)

	s.Completed = 99
	fresh, _ := l.status("ep-1")
	assert.Equal(t, 2, fresh.Completed)
}

func TestRunLease_ConcurrentAcquire(t *testing.T) {
	l := newRunLease()
	var won atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.acquire("ep-1", 1); err == nil {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}

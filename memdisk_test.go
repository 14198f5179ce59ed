package memdisk

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memdisk/testutil"
)

func TestRegistry_IdempotentCreate(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close(context.Background())

	dev, err := reg.Create(context.Background(), 3, 1024)
	require.NoError(t, err)

	// Same id returns the same device; capacity of the second call is ignored.
	again, err := reg.Create(context.Background(), 3, 2048)
	require.NoError(t, err)
	assert.Same(t, dev, again)
	assert.Equal(t, uint64(1024), again.Capacity())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_CreateValidation(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close(context.Background())

	_, err = reg.Create(context.Background(), -1, 1024)
	require.Error(t, err)

	_, err = reg.Create(context.Background(), 0, 0)
	require.Error(t, err)

	// Failed creates leave the registry unchanged.
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_GetAndCapacity(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close(context.Background())

	_, err = reg.Get(5)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Capacity(5)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = reg.Create(context.Background(), 5, 4096)
	require.NoError(t, err)

	dev, err := reg.Get(5)
	require.NoError(t, err)
	assert.Equal(t, 5, dev.ID())

	capacity, err := reg.Capacity(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), capacity)
}

func TestRegistry_Probe(t *testing.T) {
	reg, err := New(WithDefaultCapacity(2048))
	require.NoError(t, err)
	defer reg.Close(context.Background())

	// First reference attaches the device at the default capacity.
	dev, err := reg.Probe(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), dev.Capacity())

	// Later references resolve the same device.
	again, err := reg.Probe(context.Background(), 9)
	require.NoError(t, err)
	assert.Same(t, dev, again)

	_, err = reg.Probe(context.Background(), -4)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Destroy(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close(context.Background())

	dev, err := reg.Create(context.Background(), 1, 1024)
	require.NoError(t, err)

	require.NoError(t, dev.WriteSectors(context.Background(), 0, testutil.NewRNG(2).Bytes(3*DefaultPageSize)))
	require.Equal(t, uint64(3), dev.Pages())
	require.Greater(t, reg.MemoryUsage(), int64(0))

	require.NoError(t, reg.Destroy(context.Background(), 1))

	// Teardown completeness: no pages, no registry entry, no held memory.
	assert.Equal(t, uint64(0), dev.Pages())
	assert.Equal(t, int64(0), reg.MemoryUsage())
	_, err = reg.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	// Destroying an unknown id fails and changes nothing.
	err = reg.Destroy(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_InitialDevices(t *testing.T) {
	reg, err := New(WithInitialDevices(4), WithDefaultCapacity(128))
	require.NoError(t, err)
	defer reg.Close(context.Background())

	assert.Equal(t, []int{0, 1, 2, 3}, reg.IDs())

	for _, id := range reg.IDs() {
		capacity, err := reg.Capacity(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(128), capacity)
	}
}

func TestRegistry_Close(t *testing.T) {
	reg, err := New(WithInitialDevices(3), WithTeardownWorkers(2))
	require.NoError(t, err)

	dev, err := reg.Get(0)
	require.NoError(t, err)
	require.NoError(t, dev.WriteSectors(context.Background(), 0, testutil.NewRNG(4).Bytes(512)))

	require.NoError(t, reg.Close(context.Background()))
	assert.Equal(t, int64(0), reg.MemoryUsage())

	// Closed registry rejects everything.
	_, err = reg.Create(context.Background(), 7, 1024)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = reg.Get(0)
	assert.ErrorIs(t, err, ErrClosed)
	err = reg.Destroy(context.Background(), 0)
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	require.NoError(t, reg.Close(context.Background()))
}

func TestRegistry_ConcurrentCreateSameID(t *testing.T) {
	const workers = 16

	reg, err := New()
	require.NoError(t, err)
	defer reg.Close(context.Background())

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		got   = make([]*Device, workers)
	)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			dev, err := reg.Create(context.Background(), 0, 1024)
			require.NoError(t, err)
			got[i] = dev
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, reg.Len())
	for i := 1; i < workers; i++ {
		assert.Same(t, got[0], got[i])
	}
}

func TestRegistry_ConcurrentTransfers(t *testing.T) {
	const workers = 8

	reg, err := New()
	require.NoError(t, err)
	defer reg.Close(context.Background())

	dev, err := reg.Create(context.Background(), 0, 1<<16)
	require.NoError(t, err)

	// Disjoint page-aligned regions written and verified concurrently.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()

			rng := testutil.NewRNG(int64(100 + i))
			sector := uint64(i) * 64
			in := rng.Bytes(2 * DefaultPageSize)

			for n := 0; n < 20; n++ {
				require.NoError(t, dev.WriteSectors(context.Background(), sector, in))

				out := make([]byte, len(in))
				require.NoError(t, dev.ReadSectors(context.Background(), sector, out))
				require.Equal(t, in, out)
			}
		}()
	}
	wg.Wait()
}

func TestRegistry_Metrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}

	reg, err := New(WithMetricsCollector(metrics))
	require.NoError(t, err)
	defer reg.Close(context.Background())

	dev, err := reg.Create(context.Background(), 0, 1024)
	require.NoError(t, err)

	buf := testutil.NewRNG(6).Bytes(512)
	require.NoError(t, dev.WriteSectors(context.Background(), 0, buf))
	require.NoError(t, dev.ReadSectors(context.Background(), 0, buf))
	require.NoError(t, reg.Destroy(context.Background(), 0))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.CreateCount)
	assert.Equal(t, int64(1), stats.WriteCount)
	assert.Equal(t, int64(512), stats.WriteBytes)
	assert.Equal(t, int64(1), stats.ReadCount)
	assert.Equal(t, int64(1), stats.DestroyCount)
	assert.Equal(t, int64(1), stats.DestroyPagesFreed)
}

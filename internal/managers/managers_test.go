package managers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrissnell/autocal/internal/controllers/restserver"
	"github.com/chrissnell/autocal/internal/engine"
	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/storage/memory"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// slowProcessor records how many events of one device overlap
type slowProcessor struct {
	mu      sync.Mutex
	active  map[string]int
	overlap atomic.Bool
	calls   atomic.Int32
	release chan struct{}
	order   []string
}

func newSlowProcessor() *slowProcessor {
	return &slowProcessor{active: make(map[string]int)}
}

func (p *slowProcessor) Process(ctx context.Context, ev engine.Event) (engine.Result, error) {
	p.mu.Lock()
	p.active[ev.DeviceID]++
	if p.active[ev.DeviceID] > 1 {
		p.overlap.Store(true)
	}
	p.mu.Unlock()

	if p.release != nil {
		<-p.release
	} else {
		time.Sleep(2 * time.Millisecond)
	}

	p.mu.Lock()
	p.active[ev.DeviceID]--
	p.order = append(p.order, "event")
	p.mu.Unlock()
	p.calls.Add(1)
	return engine.Result{EventID: ev.DeviceID}, nil
}

func (p *slowProcessor) Reset(_ context.Context, deviceID string, behavior types.ResetBehavior) (types.EventRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active[deviceID] > 0 {
		p.overlap.Store(true)
	}
	p.order = append(p.order, "reset")
	return storage.ResetMarker("rst", deviceID, time.Now(), behavior), nil
}

func TestDeviceManagerSerializesPerDevice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	proc := newSlowProcessor()
	m := NewDeviceManager(ctx, wg, proc, 0, zaptest.NewLogger(t).Sugar())

	var clients sync.WaitGroup
	for i := 0; i < 20; i++ {
		dev := []string{"veh-1", "veh-2"}[i%2]
		clients.Add(1)
		go func() {
			defer clients.Done()
			res, err := m.Submit(context.Background(), engine.Event{DeviceID: dev})
			assert.NoError(t, err)
			assert.Equal(t, dev, res.EventID)
		}()
	}
	clients.Wait()

	assert.False(t, proc.overlap.Load())
	assert.EqualValues(t, 20, proc.calls.Load())
	assert.Equal(t, []string{"veh-1", "veh-2"}, m.Devices())

	cancel()
	wg.Wait()
}

func TestDeviceManagerDropsCancelledEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}
	proc := newSlowProcessor()
	proc.release = make(chan struct{})
	m := NewDeviceManager(ctx, wg, proc, 4, zaptest.NewLogger(t).Sugar())

	// Occupy the worker
	first := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), engine.Event{DeviceID: "veh-1"})
		first <- err
	}()
	require.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return proc.active["veh-1"] == 1
	}, time.Second, time.Millisecond)

	subCtx, subCancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := m.Submit(subCtx, engine.Event{DeviceID: "veh-1"})
		second <- err
	}()
	subCancel()
	assert.ErrorIs(t, <-second, context.Canceled)

	close(proc.release)
	require.NoError(t, <-first)

	// The cancelled job never reaches the processor
	_, err := m.Submit(context.Background(), engine.Event{DeviceID: "veh-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, proc.calls.Load())

	cancel()
	wg.Wait()
}

func TestDeviceManagerResetWaitsForInFlightEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	proc := newSlowProcessor()
	proc.release = make(chan struct{})
	m := NewDeviceManager(ctx, wg, proc, 0, zaptest.NewLogger(t).Sugar())

	first := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), engine.Event{DeviceID: "veh-1"})
		first <- err
	}()
	require.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return proc.active["veh-1"] == 1
	}, time.Second, time.Millisecond)

	reset := make(chan error, 1)
	go func() {
		rec, err := m.Reset(context.Background(), "veh-1", types.ResetIgnoreHistory)
		if err == nil {
			assert.Equal(t, "veh-1", rec.DeviceID)
		}
		reset <- err
	}()

	select {
	case err := <-reset:
		t.Fatalf("reset finished while an event was in flight: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(proc.release)
	require.NoError(t, <-first)
	require.NoError(t, <-reset)

	assert.False(t, proc.overlap.Load())
	proc.mu.Lock()
	assert.Equal(t, []string{"event", "reset"}, proc.order)
	proc.mu.Unlock()

	_, err := m.Reset(context.Background(), "", types.ResetIgnoreHistory)
	assert.ErrorIs(t, err, engine.ErrMissingDevice)

	cancel()
	wg.Wait()
}

func TestDeviceManagerStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	m := NewDeviceManager(ctx, wg, newSlowProcessor(), 0, zaptest.NewLogger(t).Sugar())
	cancel()
	wg.Wait()

	_, err := m.Submit(context.Background(), engine.Event{DeviceID: "veh-1"})
	assert.ErrorIs(t, err, engine.ErrStopped)

	_, err = m.Submit(context.Background(), engine.Event{})
	assert.ErrorIs(t, err, engine.ErrMissingDevice)
}

func TestOpenStore(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	ctx := context.Background()

	tests := []struct {
		name        string
		sc          config.StorageData
		wantBackend string
		wantErr     bool
	}{
		{"default", config.StorageData{}, config.StorageMemory, false},
		{"memory", config.StorageData{Backend: config.StorageMemory}, config.StorageMemory, false},
		{"sqlite", config.StorageData{Backend: config.StorageSQLite, SQLite: &config.SQLiteData{Path: ":memory:"}}, config.StorageSQLite, false},
		{"sqlite without path", config.StorageData{Backend: config.StorageSQLite}, "", true},
		{"postgres without dsn", config.StorageData{Backend: config.StoragePostgres}, "", true},
		{"unknown", config.StorageData{Backend: "influxdb"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend, err := OpenStore(ctx, tt.sc, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.Equal(t, tt.wantBackend, backend)
		})
	}
}

func TestNewControllerManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deps := restserver.Deps{
		Submitter: NewDeviceManager(ctx, &sync.WaitGroup{}, newSlowProcessor(), 0, zaptest.NewLogger(t).Sugar()),
		Store:     memory.New(),
	}

	_, err := NewControllerManager(ctx, &sync.WaitGroup{}, []config.ControllerData{{Type: "rest"}}, deps, zaptest.NewLogger(t).Sugar())
	assert.NoError(t, err)

	_, err = NewControllerManager(ctx, &sync.WaitGroup{}, []config.ControllerData{{Type: "aprs"}}, deps, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}

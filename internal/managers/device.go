// Package managers owns the long-running parts of the service: per-device
// event queues, the history store backend and the controllers.
package managers

import (
	"context"
	"sort"
	"sync"

	"github.com/chrissnell/autocal/internal/engine"
	"github.com/chrissnell/autocal/internal/types"
	"go.uber.org/zap"
)

// DefaultQueueSize is the per-device buffered queue depth
const DefaultQueueSize = 16

// Processor computes and stores one event, or appends a reset marker
type Processor interface {
	Process(ctx context.Context, ev engine.Event) (engine.Result, error)
	Reset(ctx context.Context, deviceID string, behavior types.ResetBehavior) (types.EventRecord, error)
}

type job struct {
	ctx   context.Context
	kind  string
	run   func(ctx context.Context) error
	reply chan error
}

// DeviceManager serializes events and resets per device. Each device gets one worker
// goroutine, started on its first event, so events of one device never
// overlap while different devices run in parallel.
type DeviceManager struct {
	ctx       context.Context
	wg        *sync.WaitGroup
	proc      Processor
	logger    *zap.SugaredLogger
	queueSize int

	mu      sync.Mutex
	devices map[string]chan job
}

// NewDeviceManager creates a manager whose workers stop when ctx is done
func NewDeviceManager(ctx context.Context, wg *sync.WaitGroup, proc Processor, queueSize int, logger *zap.SugaredLogger) *DeviceManager {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &DeviceManager{
		ctx:       ctx,
		wg:        wg,
		proc:      proc,
		logger:    logger,
		queueSize: queueSize,
		devices:   make(map[string]chan job),
	}
}

// Submit queues ev on its device's worker and waits for the result. A
// submission whose ctx is cancelled before the worker reaches it is dropped.
func (m *DeviceManager) Submit(ctx context.Context, ev engine.Event) (engine.Result, error) {
	var res engine.Result
	err := m.do(ctx, ev.DeviceID, "event", func(ctx context.Context) error {
		var err error
		res, err = m.proc.Process(ctx, ev)
		return err
	})
	if err != nil {
		return engine.Result{}, err
	}
	return res, nil
}

// Reset queues a reset marker behind the device's pending events
func (m *DeviceManager) Reset(ctx context.Context, deviceID string, behavior types.ResetBehavior) (types.EventRecord, error) {
	var rec types.EventRecord
	err := m.do(ctx, deviceID, "reset", func(ctx context.Context) error {
		var err error
		rec, err = m.proc.Reset(ctx, deviceID, behavior)
		return err
	})
	if err != nil {
		return types.EventRecord{}, err
	}
	return rec, nil
}

func (m *DeviceManager) do(ctx context.Context, deviceID, kind string, run func(ctx context.Context) error) error {
	if deviceID == "" {
		return engine.ErrMissingDevice
	}

	q, err := m.queue(deviceID)
	if err != nil {
		return err
	}

	j := job{ctx: ctx, kind: kind, run: run, reply: make(chan error, 1)}
	select {
	case q <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return engine.ErrStopped
	}

	select {
	case err := <-j.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return engine.ErrStopped
	}
}

// Devices lists the devices that have a running worker
func (m *DeviceManager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.devices))
	for id := range m.devices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *DeviceManager) queue(deviceID string) (chan job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return nil, engine.ErrStopped
	}
	if q, ok := m.devices[deviceID]; ok {
		return q, nil
	}

	q := make(chan job, m.queueSize)
	m.devices[deviceID] = q
	m.wg.Add(1)
	go m.worker(deviceID, q)
	m.logger.Debugw("started device worker", "device", deviceID)
	return q, nil
}

func (m *DeviceManager) worker(deviceID string, q <-chan job) {
	defer m.wg.Done()

	for {
		select {
		case j := <-q:
			if err := j.ctx.Err(); err != nil {
				m.logger.Debugw("dropping cancelled "+j.kind, "device", deviceID)
				j.reply <- err
				continue
			}
			err := j.run(j.ctx)
			if err != nil {
				m.logger.Errorw(j.kind+" failed", "device", deviceID, "error", err)
			}
			j.reply <- err
		case <-m.ctx.Done():
			m.logger.Debugw("stopping device worker", "device", deviceID)
			return
		}
	}
}

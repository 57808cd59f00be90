// Package engine runs the per-event calibration pipeline against a device's
// stored history and appends the outcome as one event record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/autocal/internal/calibration"
	"github.com/chrissnell/autocal/internal/mounting"
	"github.com/chrissnell/autocal/internal/offset"
	"github.com/chrissnell/autocal/internal/solver"
	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/internal/window"
	"github.com/chrissnell/autocal/pkg/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrMissingDevice is returned for events without a device id
var ErrMissingDevice = errors.New("engine: event has no device id")

// ErrStopped is returned for events submitted after shutdown began
var ErrStopped = errors.New("engine: stopped")

// Event is one triggered capture from a device
type Event struct {
	DeviceID    string             `json:"device_id" msgpack:"device_id"`
	TriggeredAt time.Time          `json:"triggered_at" msgpack:"triggered_at"`
	EventType   string             `json:"event_type,omitempty" msgpack:"event_type,omitempty"`
	Samples     types.SampleWindow `json:"samples" msgpack:"samples"`
	Button      []bool             `json:"button,omitempty" msgpack:"button,omitempty"`
	// OffsetBits is the offset currently programmed into the device
	OffsetBits        [3]int            `json:"offset_bits" msgpack:"offset_bits"`
	ManualOrientation types.Orientation `json:"manual_orientation,omitempty" msgpack:"manual_orientation,omitempty"`
}

// Result is the outcome of one event
type Result struct {
	EventID      string                   `json:"event_id" msgpack:"event_id"`
	OnWindshield types.OnWindshieldRecord `json:"on_windshield" msgpack:"on_windshield"`
	Calibration  types.CalibrationRecord  `json:"calibration" msgpack:"calibration"`
	Offset       *types.OffsetRecord      `json:"offset,omitempty" msgpack:"offset,omitempty"`
	Rotation     types.RotationMatrix     `json:"rotation" msgpack:"rotation"`
}

// Record is the event record appended for this result
func (r Result) Record(ev Event) types.EventRecord {
	onws, cal := r.OnWindshield, r.Calibration
	return types.EventRecord{
		ID:           r.EventID,
		DeviceID:     ev.DeviceID,
		EventType:    ev.EventType,
		TriggeredAt:  ev.TriggeredAt,
		OnWindshield: &onws,
		Calibration:  &cal,
		Offset:       r.Offset,
	}
}

// Engine wires the pipeline stages to a history store
type Engine struct {
	cfg        config.CalibrationData
	store      storage.HistoryStore
	rest       window.RestParams
	offset     offset.Params
	classifier *mounting.Classifier
	aggregator *calibration.Aggregator
	logger     *zap.SugaredLogger
	newID      func() string
}

// New validates cfg and builds an engine. An invalid bundle is refused.
func New(cfg config.CalibrationData, store storage.HistoryStore, logger *zap.SugaredLogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Engine{
		cfg:        cfg,
		store:      store,
		rest:       restParams(cfg),
		offset:     offsetParams(cfg),
		classifier: mounting.NewClassifier(mountingParams(cfg), solver.New(solverParams(cfg)), logger.Named("mounting")),
		aggregator: calibration.NewAggregator(aggregatorParams(cfg), logger.Named("calibration")),
		logger:     logger,
		newID:      uuid.NewString,
	}, nil
}

// Process fetches the device's history, computes the event and appends the
// resulting record. Callers serialize events per device.
func (e *Engine) Process(ctx context.Context, ev Event) (Result, error) {
	if ev.DeviceID == "" {
		return Result{}, ErrMissingDevice
	}
	if ev.TriggeredAt.IsZero() {
		ev.TriggeredAt = time.Now().UTC()
	}

	h, err := e.store.History(ctx, ev.DeviceID, ev.TriggeredAt, e.cfg.HistoryLimit)
	if err != nil {
		e.logger.Errorw("could not read history", "device", ev.DeviceID, "error", err)
		return Result{}, fmt.Errorf("read history for %s: %w", ev.DeviceID, err)
	}

	res := e.Compute(ev, h)
	res.EventID = e.newID()

	if err := e.store.Append(ctx, res.Record(ev)); err != nil {
		e.logger.Errorw("could not append event", "device", ev.DeviceID, "event", res.EventID, "error", err)
		return Result{}, fmt.Errorf("append event for %s: %w", ev.DeviceID, err)
	}
	return res, nil
}

// Reset appends a support-tool reset marker to the device's history. Like
// Process, callers serialize it with the device's other events.
func (e *Engine) Reset(ctx context.Context, deviceID string, behavior types.ResetBehavior) (types.EventRecord, error) {
	if deviceID == "" {
		return types.EventRecord{}, ErrMissingDevice
	}

	marker := storage.ResetMarker(e.newID(), deviceID, time.Now().UTC(), behavior)
	if err := e.store.Append(ctx, marker); err != nil {
		e.logger.Errorw("could not append reset marker", "device", deviceID, "error", err)
		return types.EventRecord{}, fmt.Errorf("append reset for %s: %w", deviceID, err)
	}
	e.logger.Infow("device calibration reset", "device", deviceID, "behavior", string(behavior))
	return marker, nil
}

// Compute runs the pipeline for one event against a history snapshot. It
// does not touch the store and returns identical results for identical
// inputs.
func (e *Engine) Compute(ev Event, h types.History) Result {
	log := e.logger.With("device", ev.DeviceID, "triggered_at", ev.TriggeredAt)
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("calibration pipeline panicked", "panic", r)
			panic(r)
		}
	}()

	if len(h.Calibration) == 0 {
		h.Calibration = []types.CalibrationRecord{calibration.DefaultRecord(e.cfg.Mounting.ReferencePitch)}
	}

	samples := offset.Remove(ev.Samples, ev.OffsetBits, e.offset.Step)

	var a0 *types.Vector3
	if rest, ok := window.FindRest(samples, e.rest); ok {
		a0 = rest.Mean.Ptr()
	} else {
		log.Debugw("no rest window", "stage", "window")
	}

	onws := e.classifier.Classify(mounting.Input{
		A0:                a0,
		Button:            ev.Button,
		ManualOrientation: ev.ManualOrientation,
		History:           h,
	})

	cal := e.aggregator.Aggregate(calibration.Input{
		Samples: samples,
		Trigger: onws,
		History: h,
	})

	off := offset.Estimate(onws.A0, e.offset)

	log.Infow("event processed",
		"stage", "engine",
		"decision", string(onws.Decision),
		"reason_code", string(onws.Reason),
		"status", string(cal.Status),
		"angles", cal.OperationalAngles,
	)

	return Result{
		OnWindshield: onws,
		Calibration:  cal,
		Offset:       off,
		Rotation:     cal.OperationalMat,
	}
}

// Store returns the engine's history store
func (e *Engine) Store() storage.HistoryStore {
	return e.store
}

package restserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/autocal/internal/constants"
	"github.com/chrissnell/autocal/internal/engine"
	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	// rotationScanLimit bounds how far back the rotation lookup searches
	rotationScanLimit = 200
)

// RotationResponse is the current operational pose of a device
type RotationResponse struct {
	DeviceID    string               `json:"device_id"`
	EventID     string               `json:"event_id"`
	TriggeredAt time.Time            `json:"triggered_at"`
	Status      types.Status         `json:"status"`
	Angles      types.EulerAngles    `json:"angles"`
	Matrix      types.RotationMatrix `json:"matrix"`
}

// VersionResponse reports the running build
type VersionResponse struct {
	Version string `json:"version"`
}

func (c *Controller) submitEvent(w http.ResponseWriter, req *http.Request) {
	device := mux.Vars(req)["device"]

	var ev engine.Event
	if err := c.formatter.DecodeRequest(req, &ev); err != nil {
		c.formatter.WriteError(w, req, http.StatusBadRequest, err)
		return
	}
	if ev.DeviceID != "" && ev.DeviceID != device {
		c.formatter.WriteError(w, req, http.StatusBadRequest,
			fmt.Errorf("device id %q in body does not match %q in path", ev.DeviceID, device))
		return
	}
	ev.DeviceID = device

	res, err := c.deps.Submitter.Submit(req.Context(), ev)
	switch {
	case err == nil:
		c.formatter.WriteResponse(w, req, http.StatusOK, res)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.formatter.WriteError(w, req, http.StatusRequestTimeout, err)
	case errors.Is(err, engine.ErrStopped):
		c.formatter.WriteError(w, req, http.StatusServiceUnavailable, err)
	default:
		c.logger.Errorw("event submission failed", "device", device, "error", err)
		c.formatter.WriteError(w, req, http.StatusInternalServerError, err)
	}
}

func (c *Controller) getHistory(w http.ResponseWriter, req *http.Request) {
	device := mux.Vars(req)["device"]

	limit := defaultHistoryLimit
	if s := req.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.formatter.WriteError(w, req, http.StatusBadRequest,
				fmt.Errorf("limit must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	events, err := c.deps.Store.Events(req.Context(), device, limit)
	if err != nil {
		c.writeStoreError(w, req, device, err)
		return
	}
	c.formatter.WriteResponse(w, req, http.StatusOK, events)
}

func (c *Controller) getRotation(w http.ResponseWriter, req *http.Request) {
	device := mux.Vars(req)["device"]

	events, err := c.deps.Store.Events(req.Context(), device, rotationScanLimit)
	if err != nil {
		c.writeStoreError(w, req, device, err)
		return
	}

	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Calibration == nil {
			continue
		}
		c.formatter.WriteResponse(w, req, http.StatusOK, RotationResponse{
			DeviceID:    device,
			EventID:     ev.ID,
			TriggeredAt: ev.TriggeredAt,
			Status:      ev.Calibration.Status,
			Angles:      ev.Calibration.OperationalAngles,
			Matrix:      ev.Calibration.OperationalMat,
		})
		return
	}
	c.writeStoreError(w, req, device, storage.ErrNotFound)
}

func (c *Controller) resetDevice(w http.ResponseWriter, req *http.Request) {
	device := mux.Vars(req)["device"]

	behavior := types.ResetIgnoreHistory
	if b := req.URL.Query().Get("behavior"); b != "" {
		behavior = types.ResetBehavior(b)
	}
	if !(&types.ResetFlag{Behavior: behavior}).Valid() {
		c.formatter.WriteError(w, req, http.StatusBadRequest, fmt.Errorf("unknown reset behavior %q", behavior))
		return
	}

	marker, err := c.deps.Submitter.Reset(req.Context(), device, behavior)
	switch {
	case err == nil:
		c.formatter.WriteResponse(w, req, http.StatusCreated, marker)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.formatter.WriteError(w, req, http.StatusRequestTimeout, err)
	case errors.Is(err, engine.ErrStopped):
		c.formatter.WriteError(w, req, http.StatusServiceUnavailable, err)
	default:
		c.logger.Errorw("could not reset device", "device", device, "error", err)
		c.formatter.WriteError(w, req, http.StatusInternalServerError, err)
	}
}

func (c *Controller) getHealth(w http.ResponseWriter, req *http.Request) {
	if c.deps.Health == nil {
		c.formatter.WriteResponse(w, req, http.StatusOK, map[string]storage.Health{})
		return
	}
	c.formatter.WriteResponse(w, req, http.StatusOK, c.deps.Health.GetAllHealth())
}

func (c *Controller) getVersion(w http.ResponseWriter, req *http.Request) {
	c.formatter.WriteResponse(w, req, http.StatusOK, VersionResponse{Version: constants.Version})
}

func (c *Controller) writeStoreError(w http.ResponseWriter, req *http.Request, device string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.formatter.WriteError(w, req, http.StatusNotFound, fmt.Errorf("no events for device %q", device))
		return
	}
	c.logger.Errorw("history store error", "device", device, "error", err)
	c.formatter.WriteError(w, req, http.StatusInternalServerError, err)
}

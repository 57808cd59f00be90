package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/autocal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type staticProvider struct {
	cfg *config.ConfigData
	err error
}

func (p staticProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, p.err }
func (p staticProvider) GetCalibration() (*config.CalibrationData, error) {
	return &p.cfg.Calibration, p.err
}
func (p staticProvider) GetStorageConfig() (*config.StorageData, error) { return &p.cfg.Storage, p.err }
func (p staticProvider) GetControllers() ([]config.ControllerData, error) {
	return p.cfg.Controllers, p.err
}
func (p staticProvider) IsReadOnly() bool { return true }
func (p staticProvider) Close() error     { return nil }

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := New(staticProvider{cfg: config.DefaultConfig()}, zaptest.NewLogger(t).Sugar())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name     string
		provider staticProvider
	}{
		{"load error", staticProvider{err: errors.New("no such file")}},
		{"invalid calibration", staticProvider{cfg: func() *config.ConfigData {
			c := config.DefaultConfig()
			c.Calibration.RestWindow.WindowSize = 0
			return c
		}()}},
		{"unknown storage", staticProvider{cfg: func() *config.ConfigData {
			c := config.DefaultConfig()
			c.Storage.Backend = "influxdb"
			return c
		}()}},
		{"unknown controller", staticProvider{cfg: func() *config.ConfigData {
			c := config.DefaultConfig()
			c.Controllers = []config.ControllerData{{Type: "grpc"}}
			return c
		}()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.provider, zaptest.NewLogger(t).Sugar()).Run(context.Background())
			require.Error(t, err)
		})
	}
}

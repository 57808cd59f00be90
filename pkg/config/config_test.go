package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDefaultCalibrationIsValid(t *testing.T) {
	c := DefaultCalibration()
	require.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CalibrationData)
		wantKey Key
	}{
		{"zero window", func(c *CalibrationData) { c.RestWindow.WindowSize = 0 }, KeyRestWindowSize},
		{"negative noise tolerance", func(c *CalibrationData) { c.RestWindow.NoiseTolerance = -1 }, KeyRestNoiseTolerance},
		{"inverted x range", func(c *CalibrationData) { c.Mounting.XAngleMin = 40 }, KeyXAngleMax},
		{"inverted windshield pitch", func(c *CalibrationData) { c.Mounting.WindshieldYMax = 10 }, KeyWindshieldYMax},
		{"max lr below base", func(c *CalibrationData) { c.Solver.MaxLR = 0.0001 }, KeySolverMaxLR},
		{"momentum of one", func(c *CalibrationData) { c.Solver.Momentum = 1 }, KeySolverMomentum},
		{"unknown solver", func(c *CalibrationData) { c.Solver.Type = "adam" }, KeySolverType},
		{"zero step", func(c *CalibrationData) { c.Offset.Step = 0 }, KeyOffsetStep},
		{"no history", func(c *CalibrationData) { c.HistoryLimit = 0 }, KeyHistoryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCalibration()
			tt.mutate(&c)

			err := c.Validate()
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigurationError", err)
			}
			if cfgErr.Key != tt.wantKey.String() {
				t.Errorf("error key = %q, want %q", cfgErr.Key, tt.wantKey)
			}
		})
	}
}

func TestKeyTableRoundTrip(t *testing.T) {
	src := DefaultCalibration()
	src.Mounting.ReferencePitch = 31.5
	src.Solver.Type = SolverSGD
	src.HistoryLimit = 50

	var dst CalibrationData
	for _, k := range Keys() {
		require.NoError(t, k.Set(&dst, k.Get(&src)), k.String())
	}

	if diff := cmp.Diff(src, dst); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Keys() {
		name := k.String()
		if seen[name] {
			t.Errorf("duplicate key name %q", name)
		}
		seen[name] = true

		got, ok := KeyByName(name)
		if !ok || got != k {
			t.Errorf("KeyByName(%q) = %v, %v", name, got, ok)
		}
	}
}

func TestKeySetRejectsGarbage(t *testing.T) {
	c := DefaultCalibration()
	err := KeyRestWindowSize.Set(&c, "fifty")

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	if c.RestWindow.WindowSize != 50 {
		t.Errorf("window size changed to %d on bad input", c.RestWindow.WindowSize)
	}
}

func TestParseYAMLPartialOverride(t *testing.T) {
	doc := []byte(`
calibration:
  mounting:
    z_axis_limit: 0.8
    reference_pitch: 30
  solver:
    type: sgd
storage:
  backend: sqlite
  sqlite:
    path: /var/lib/autocal/history.db
controllers:
  - type: rest
    rest:
      listen_addr: 127.0.0.1
      port: 8080
`)

	cfg, err := ParseYAML(doc)
	require.NoError(t, err)

	want := DefaultConfig()
	want.Calibration.Mounting.ZAxisLimit = 0.8
	want.Calibration.Mounting.ReferencePitch = 30
	want.Calibration.Solver.Type = SolverSGD
	want.Storage = StorageData{Backend: StorageSQLite, SQLite: &SQLiteData{Path: "/var/lib/autocal/history.db"}}
	want.Controllers = []ControllerData{{Type: "rest", RESTServer: &RESTServerData{ListenAddr: "127.0.0.1", Port: 8080}}}

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("ParseYAML mismatch (-want +got):\n%s", diff)
	}
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autocal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calibration:\n  history_limit: 25\n"), 0o600))

	p := NewYAMLProvider(path)
	defer p.Close()

	c, err := p.GetCalibration()
	require.NoError(t, err)
	if c.HistoryLimit != 25 {
		t.Errorf("history limit = %d, want 25", c.HistoryLimit)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestSQLiteProviderSaveAndLoad(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()

	empty, err := p.LoadConfig()
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), empty); diff != "" {
		t.Errorf("empty database should load defaults (-want +got):\n%s", diff)
	}

	cfg := DefaultConfig()
	cfg.Calibration.Aggregation.MinAxEvents = 7
	cfg.Calibration.Solver.Type = SolverSGD
	cfg.Storage = StorageData{Backend: StoragePostgres, Postgres: &PostgresData{ConnectionString: "postgres://autocal@db/autocal"}}
	cfg.Controllers = []ControllerData{{Type: "rest", RESTServer: &RESTServerData{ListenAddr: "0.0.0.0", Port: 9000}}}
	require.NoError(t, p.SaveConfig(cfg))

	loaded, err := p.LoadConfig()
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("LoadConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteProviderSetCalibrationValue(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.SetCalibrationValue(KeyStabilityZ, "12.5"))

	c, err := p.GetCalibration()
	require.NoError(t, err)
	if c.Mounting.StabilityZ != 12.5 {
		t.Errorf("stability z = %v, want 12.5", c.Mounting.StabilityZ)
	}

	err = p.SetCalibrationValue(KeyOffsetStep, "0")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

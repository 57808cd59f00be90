// autocal-replay feeds recorded events through the calibration engine and
// prints each event's decision, calibration status and offset.
package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/chrissnell/autocal/internal/engine"
	"github.com/chrissnell/autocal/internal/log"
	"github.com/chrissnell/autocal/internal/storage"
	"github.com/chrissnell/autocal/internal/storage/memory"
	"github.com/chrissnell/autocal/internal/storage/sqlite"
	"github.com/chrissnell/autocal/internal/types"
	"github.com/chrissnell/autocal/pkg/config"
)

func main() {
	var (
		eventsFile  = flag.String("events", "", "JSON file of events: an array or one object per line (required)")
		configFile  = flag.String("config", "", "Optional YAML configuration for calibration thresholds")
		historyFile = flag.String("history", "", "Optional SQLite history file; in-memory when empty")
		csvOutput   = flag.String("csv", "", "Optional CSV output file path")
		debug       = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *eventsFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -events <events.json> [-config config.yaml] [-history history.db] [-csv out.csv]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug, log.FileOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	calibration := config.DefaultCalibration()
	if *configFile != "" {
		cfg, err := config.NewYAMLProvider(*configFile).LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		calibration = cfg.Calibration
	}

	events, err := readEvents(*eventsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading events: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no events in %s\n", *eventsFile)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := openHistory(ctx, *historyFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	eng, err := engine.New(calibration, store, log.Named("engine"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Replaying %d events\n\n", len(events))
	fmt.Printf("%-25s %-12s %-14s %-20s %-11s %-26s %s\n",
		"TIME", "DEVICE", "DECISION", "REASON", "STATUS", "ANGLES (R/P/Y)", "OFFSET")

	rows := make([]replayRow, 0, len(events))
	for _, ev := range events {
		res, err := eng.Process(ctx, ev)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing event at %s: %v\n", ev.TriggeredAt, err)
			os.Exit(1)
		}
		row := replayRow{event: ev, result: res}
		rows = append(rows, row)
		row.print()
	}

	printSummary(rows)

	if *csvOutput != "" {
		if err := exportCSV(*csvOutput, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CSV: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nResults exported to: %s\n", *csvOutput)
	}
}

type replayRow struct {
	event  engine.Event
	result engine.Result
}

func (r replayRow) angles() types.EulerAngles {
	return r.result.Calibration.OperationalAngles
}

func (r replayRow) offset() string {
	if r.result.Offset == nil {
		return "-"
	}
	o := r.result.Offset.Offsets
	return fmt.Sprintf("%d/%d/%d", o[0], o[1], o[2])
}

func (r replayRow) print() {
	a := r.angles()
	fmt.Printf("%-25s %-12s %-14s %-20s %-11s %7.2f/%7.2f/%7.2f    %s\n",
		r.event.TriggeredAt.Format("2006-01-02T15:04:05Z07:00"),
		r.event.DeviceID,
		r.result.OnWindshield.Decision,
		r.result.OnWindshield.Reason,
		r.result.Calibration.Status,
		a.Roll, a.Pitch, a.Yaw,
		r.offset())
}

func printSummary(rows []replayRow) {
	last := make(map[string]replayRow)
	counts := make(map[string]int)
	for _, r := range rows {
		last[r.event.DeviceID] = r
		counts[r.event.DeviceID]++
	}

	devices := make([]string, 0, len(last))
	for d := range last {
		devices = append(devices, d)
	}
	sort.Strings(devices)

	fmt.Printf("\nFinal state per device:\n")
	for _, d := range devices {
		r := last[d]
		a := r.angles()
		fmt.Printf("  %s: %d events, %s, roll %.2f pitch %.2f yaw %.2f\n",
			d, counts[d], r.result.Calibration.Status, a.Roll, a.Pitch, a.Yaw)
	}
}

// readEvents accepts a JSON array or a stream of JSON objects
func readEvents(path string) ([]engine.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	first, err := firstNonSpace(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	dec := json.NewDecoder(r)
	if first == '[' {
		var events []engine.Event
		if err := dec.Decode(&events); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return events, nil
	}

	var events []engine.Event
	for {
		var ev engine.Event
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", len(events)+1, err)
		}
		events = append(events, ev)
	}
}

func firstNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}

func openHistory(ctx context.Context, path string) (storage.HistoryStore, error) {
	if path == "" {
		return memory.New(), nil
	}
	return sqlite.New(ctx, path, log.Named("sqlite"))
}

func exportCSV(path string, rows []replayRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"triggered_at", "device_id", "event_id", "decision", "reason", "status",
		"roll", "pitch", "yaw", "offset_x", "offset_y", "offset_z",
	}); err != nil {
		return err
	}

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, r := range rows {
		a := r.angles()
		record := []string{
			r.event.TriggeredAt.Format("2006-01-02T15:04:05.000Z07:00"),
			r.event.DeviceID,
			r.result.EventID,
			string(r.result.OnWindshield.Decision),
			string(r.result.OnWindshield.Reason),
			string(r.result.Calibration.Status),
			ff(a.Roll), ff(a.Pitch), ff(a.Yaw),
		}
		if r.result.Offset != nil {
			for _, o := range r.result.Offset.Offsets {
				record = append(record, strconv.Itoa(o))
			}
		} else {
			record = append(record, "", "", "")
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

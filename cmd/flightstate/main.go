// Command flightstate replays a recorded sensor log through the state
// estimator and stores the per-millisecond estimates in a SQLite database.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sojez1/flightstate/internal/calib"
	"github.com/sojez1/flightstate/internal/config"
	"github.com/sojez1/flightstate/internal/estimator"
	"github.com/sojez1/flightstate/internal/flightdb"
	"github.com/sojez1/flightstate/internal/geom"
	"github.com/sojez1/flightstate/internal/kalman"
	"github.com/sojez1/flightstate/internal/samplelog"
	"github.com/sojez1/flightstate/internal/timeutil"
	"github.com/sojez1/flightstate/internal/version"
)

type cliConfig struct {
	SamplesPath  string
	AnchorsPath  string
	GeometryPath string
	TuningPath   string
	DBPath       string
	Label        string
	Notes        string
	Speed        float64
	Verbose      bool
	Trace        bool
	ShowVersion  bool
}

func parseFlags() cliConfig {
	var cfg cliConfig
	flag.StringVar(&cfg.SamplesPath, "samples", "", "Path to the recorded sample log (JSON lines)")
	flag.StringVar(&cfg.AnchorsPath, "anchors", "", "Path to the anchor position YAML (optional)")
	flag.StringVar(&cfg.GeometryPath, "geometry", "", "Path to the base-station geometry YAML (optional)")
	flag.StringVar(&cfg.TuningPath, "tuning", "", "Path to a tuning JSON (defaults to the bundled config)")
	flag.StringVar(&cfg.DBPath, "db", "flightstate.db", "Path to the output SQLite database")
	flag.StringVar(&cfg.Label, "label", "replay", "Run label stored with the results")
	flag.StringVar(&cfg.Notes, "notes", "", "Free-form run notes")
	flag.Float64Var(&cfg.Speed, "speed", 0, "Pace the replay at this multiple of real time (0 = flat out)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable diagnostic logging")
	flag.BoolVar(&cfg.Trace, "trace", false, "Enable per-sample trace logging (very noisy)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print version and exit")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.ShowVersion {
		fmt.Printf("flightstate %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if cfg.SamplesPath == "" {
		fmt.Fprintln(os.Stderr, "flightstate: -samples is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("flightstate: %v", err)
	}
}

func run(cfg cliConfig) error {
	var diag, trace io.Writer
	if cfg.Verbose {
		diag = os.Stderr
	}
	if cfg.Trace {
		trace = os.Stderr
	}
	estimator.SetLogWriters(os.Stderr, diag, trace)

	var tuning *config.TuningConfig
	if cfg.TuningPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(cfg.TuningPath)
		if err != nil {
			return err
		}
	} else {
		tuning = config.MustLoadDefaultConfig()
	}
	if err := tuning.Validate(); err != nil {
		return fmt.Errorf("tuning: %w", err)
	}

	ctx, err := loadCalibration(cfg)
	if err != nil {
		return err
	}

	samples, err := samplelog.ReadFile(cfg.SamplesPath)
	if err != nil {
		return err
	}
	log.Printf("loaded %d samples from %s", len(samples), cfg.SamplesPath)

	db, err := flightdb.NewFlightDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runID, err := db.StartRun(cfg.Label, cfg.Notes)
	if err != nil {
		return err
	}

	core := kalman.NewCore(kalman.ParamsFromTuning(tuning))
	loop := estimator.NewLoop(core, ctx, estimator.LoopConfigFromTuning(tuning))

	// Estimates are flushed to the database in batches; one row per tick
	// would dominate the replay time. The wall-clock flush interval only
	// matters for paced replays, where a batch can take a while to fill.
	const batchSize = 1000
	flushInterval := tuning.GetFlushInterval()
	clock := timeutil.RealClock{}
	lastFlush := clock.Now()

	var batch []estimator.ExternalizedState
	var batchStartMs int64
	var last estimator.ExternalizedState

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := db.RecordEstimates(runID, batchStartMs, batch); err != nil {
			return err
		}
		batch = batch[:0]
		lastFlush = clock.Now()
		return nil
	}

	err = samplelog.ReplayPaced(loop, samples, clock, cfg.Speed, func(tMs int64, st estimator.ExternalizedState) error {
		if len(batch) == 0 {
			batchStartMs = tMs
		}
		batch = append(batch, st)
		last = st
		if len(batch) >= batchSize || clock.Since(lastFlush) > flushInterval {
			return flush()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}
	if err := db.EndRun(runID); err != nil {
		return err
	}

	stats := loop.Stats()
	log.Printf("run %s: %d ticks, %d predictions, %d samples (%d tdoa, %d sweep, %d yaw), %d lookup failures",
		runID, stats.Ticks, stats.Predictions, stats.SamplesProcessed,
		stats.TdoaUpdates, stats.SweepUpdates, stats.YawUpdates, stats.LookupFailures)
	log.Printf("final position (%.3f, %.3f, %.3f) m, yaw %.1f°",
		last.Position.X, last.Position.Y, last.Position.Z, last.Attitude.Z)
	return nil
}

func loadCalibration(cfg cliConfig) (*calib.Context, error) {
	var anchors map[int]geom.Vec3
	var poses map[int]calib.BasestationPose
	var calibs map[int]map[int]calib.SweepCalibration

	if cfg.AnchorsPath != "" {
		var err error
		anchors, err = calib.LoadAnchorPositions(cfg.AnchorsPath)
		if err != nil {
			return nil, err
		}
		log.Printf("loaded %d anchors: %v", len(anchors), calib.AnchorIDs(anchors))
	}
	if cfg.GeometryPath != "" {
		var err error
		poses, calibs, err = calib.LoadBasestationGeometry(cfg.GeometryPath)
		if err != nil {
			return nil, err
		}
		log.Printf("loaded %d base stations", len(poses))
	}
	if anchors == nil && poses == nil {
		log.Printf("warning: no anchors or base stations loaded, positioning samples will be skipped")
	}
	return calib.NewContext(anchors, poses, calibs), nil
}

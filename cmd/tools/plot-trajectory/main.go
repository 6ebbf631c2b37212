// Command plot-trajectory renders the estimated trajectory of a stored
// run as a standalone HTML chart.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/sojez1/flightstate/internal/flightdb"
)

func main() {
	dbPath := flag.String("db", "flightstate.db", "Path to the estimates database")
	runID := flag.String("run", "", "Run id to plot (defaults to the most recent run)")
	outPath := flag.String("out", "trajectory.html", "Output HTML file")
	stride := flag.Int("stride", 10, "Plot every Nth estimate")
	flag.Parse()

	if err := run(*dbPath, *runID, *outPath, *stride); err != nil {
		log.Fatalf("plot-trajectory: %v", err)
	}
}

func run(dbPath, runID, outPath string, stride int) error {
	if stride < 1 {
		stride = 1
	}

	db, err := flightdb.NewFlightDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if runID == "" {
		runs, err := db.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs in %s", dbPath)
		}
		runID = runs[0].RunID
		log.Printf("plotting most recent run %s (%s)", runID, runs[0].Label)
	}

	rows, err := db.QueryEstimates(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("run %s has no estimates", runID)
	}

	xy := make([]opts.ScatterData, 0, len(rows)/stride+1)
	var minC, maxC float64 = 1e18, -1e18
	for i := 0; i < len(rows); i += stride {
		r := rows[i]
		tSec := float64(r.TMs) / 1000.0
		if tSec < minC {
			minC = tSec
		}
		if tSec > maxC {
			maxC = tSec
		}
		xy = append(xy, opts.ScatterData{Value: []interface{}{r.Position.X, r.Position.Y, tSec}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Estimated Trajectory", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Estimated Trajectory (XY)", Subtitle: fmt.Sprintf("run=%s points=%d stride=%d", runID, len(xy), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(minC),
			Max:        float32(maxC),
			Text:       []string{"end (s)", "start (s)"},
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("trajectory", xy, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := scatter.Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	log.Printf("wrote %s (%d points)", outPath, len(xy))
	return nil
}

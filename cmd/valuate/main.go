package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"autovaluate/internal/client"
	"autovaluate/internal/common"
	"autovaluate/internal/valuation"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	defaultURL := os.Getenv(common.EnvServerURL)
	if defaultURL == "" {
		defaultURL = common.DefaultServerURL
	}

	var (
		serverURL    = flag.String("url", defaultURL, "Dashboard base URL")
		region       = flag.String("region", "uk", "Market: uk or india")
		brand        = flag.String("brand", common.Brands[0], "Brand")
		year         = flag.Int("year", common.DefaultYear, "Model year")
		transmission = flag.String("transmission", common.Transmissions[0], "Transmission")
		fuel         = flag.String("fuel", common.FuelTypes[0], "Fuel type")
		engine       = flag.Float64("engine", common.DefaultEngine, "Engine size in litres")
		distance     = flag.Float64("distance", -1, "Distance driven in the region's unit, default per region")
		showModel    = flag.Bool("model", false, "Print model metadata instead of valuing")
		asJSON       = flag.Bool("json", false, "Print the raw JSON response")
		timeout      = flag.Duration("timeout", 10*time.Second, "Request timeout")
		logLevel     = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := client.New(*serverURL, *timeout)

	if *showModel {
		m, err := c.Model(ctx)
		if err != nil {
			fail(err)
		}
		if *asJSON {
			printJSON(os.Stdout, m)
			return
		}
		printModel(os.Stdout, m)
		return
	}

	r, err := valuation.ParseRegion(*region)
	if err != nil {
		fail(err)
	}
	q := valuation.DefaultQuery(r)
	q.Brand = *brand
	q.Year = *year
	q.Transmission = *transmission
	q.FuelType = *fuel
	q.EngineSize = *engine
	if *distance >= 0 {
		q.Distance = *distance
	}

	report, err := c.Valuate(ctx, q)
	if err != nil {
		fail(err)
	}
	if *asJSON {
		printJSON(os.Stdout, report)
		return
	}
	printReport(os.Stdout, report)
}

func fail(err error) {
	switch {
	case errors.Is(err, client.ErrOffline):
		log.Fatal().Err(err).Msg(common.ErrMsgOffline)
	case errors.Is(err, valuation.ErrInvalidQuery):
		log.Fatal().Err(err).Msg("query rejected")
	default:
		log.Fatal().Err(err).Msg("valuation failed")
	}
}

func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("encode response")
	}
}

func printReport(w io.Writer, r *valuation.Report) {
	q := r.Query
	fmt.Fprintf(w, "%s %d %s %s %.1fL, %.0f %s\n",
		q.Brand, q.Year, q.Transmission, q.FuelType, q.EngineSize, q.Distance, r.Region.DistanceUnit)
	fmt.Fprintf(w, "Estimated price: %s\n", r.Display)

	cmp := r.Comparison
	if !cmp.Available {
		fmt.Fprintf(w, "%s (%d comparable sales)\n", cmp.Note, cmp.Comparables)
		return
	}
	fmt.Fprintf(w, "Market average:  %s (%d comparable sales)\n", r.MeanDisplay, cmp.Comparables)
	fmt.Fprintf(w, "Verdict:         %s\n", cmp.Verdict)
	fmt.Fprintf(w, "Market position: %s\n", positionBar(cmp.Position, 30))
}

// positionBar draws the position in [0, 1] as a marker on a fixed-width
// bar from cheapest to most expensive.
func positionBar(pos float64, width int) string {
	i := int(pos*float64(width-1) + 0.5)
	if i < 0 {
		i = 0
	}
	if i > width-1 {
		i = width - 1
	}
	return "[" + strings.Repeat("-", i) + "|" + strings.Repeat("-", width-1-i) + fmt.Sprintf("] %.0f%%", pos*100)
}

func printModel(w io.Writer, m *client.Model) {
	if m.Meta == nil {
		fmt.Fprintln(w, "No training metadata available")
		return
	}
	meta := m.Meta
	fmt.Fprintf(w, "Trained:   %s\n", meta.TrainedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Dataset:   %s (%d rows, %d skipped)\n", meta.DatasetPath, meta.Rows, meta.Skipped)
	fmt.Fprintf(w, "Forest:    %d trees, seed %d, %d features\n", meta.Trees, meta.Seed, meta.Features)
	fmt.Fprintf(w, "Fit:       R2 %.3f, MAE %.0f, RMSE %.0f\n", meta.Fit.R2, meta.Fit.MAE, meta.Fit.RMSE)
	fmt.Fprintf(w, "Reference: %d rows\n", m.ReferenceRows)
	if len(meta.TopFeatures) > 0 {
		fmt.Fprintln(w, "Top features:")
		for _, f := range meta.TopFeatures {
			fmt.Fprintf(w, "  %-28s %.4f\n", f.Name, f.Score)
		}
	}
	if len(m.History) > 1 {
		fmt.Fprintf(w, "Training runs on record: %d\n", len(m.History))
	}
}

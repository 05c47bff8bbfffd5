package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter writes backtest results to a directory.
type Reporter struct {
	results    *Results
	outputPath string
}

func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{results: results, outputPath: outputPath}
}

// GenerateReport writes the summary, the per-sale prediction log, the JSON
// report and the per-group breakdown.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.writeFile("backtest_summary.txt", r.writeSummary); err != nil {
		return err
	}
	if err := r.writeFile("prediction_log.csv", r.writePredictionLog); err != nil {
		return err
	}
	if err := r.writeFile("backtest_results.json", r.writeJSON); err != nil {
		return err
	}
	return r.writeFile("group_report.csv", r.writeGroups)
}

func (r *Reporter) writeFile(name string, write func(io.Writer) error) error {
	path := filepath.Join(r.outputPath, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	log.Info().Str("file", path).Msg("Report generated")
	return nil
}

func (r *Reporter) writeSummary(w io.Writer) error {
	res := r.results
	fmt.Fprintf(w, "BACKTEST RESULTS SUMMARY\n")
	fmt.Fprintf(w, "========================\n\n")
	fmt.Fprintf(w, "Run: %s (%s)\n", res.StartTime.Format("2006-01-02 15:04:05"), res.EndTime.Sub(res.StartTime).Round(time.Millisecond))
	fmt.Fprintf(w, "Rows: %d train, %d held out\n", res.TrainRows, res.TestRows)
	fmt.Fprintf(w, "Forest: %d trees, seed %d\n\n", res.Trees, res.Seed)

	fmt.Fprintf(w, "FIT\n")
	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "In-sample:     R2 %.4f, MAE £%.0f, RMSE £%.0f\n", res.InSample.R2, res.InSample.MAE, res.InSample.RMSE)
	fmt.Fprintf(w, "Out-of-sample: R2 %.4f, MAE £%.0f, RMSE £%.0f\n", res.OutOfSample.R2, res.OutOfSample.MAE, res.OutOfSample.RMSE)
	fmt.Fprintf(w, "MAPE: %.2f%%, median APE: %.2f%%\n", res.MAPE*100, res.MedianAPE*100)
	fmt.Fprintf(w, "Within verdict band: %.2f%%\n\n", res.WithinBand*100)

	fmt.Fprintf(w, "VERDICTS\n")
	fmt.Fprintf(w, "--------\n")
	fmt.Fprintf(w, "Compared: %d, agreement %.2f%%\n", res.VerdictCompared, res.VerdictAgreement*100)

	if len(res.ByBrand) > 0 {
		fmt.Fprintf(w, "\nERROR BY BRAND\n")
		fmt.Fprintf(w, "--------------\n")
		for _, g := range res.ByBrand {
			fmt.Fprintf(w, "%-12s %5d sales, MAE £%.0f, MAPE %.2f%%\n", g.Group, g.Count, g.MAE, g.MAPE*100)
		}
	}
	return nil
}

func (r *Reporter) writePredictionLog(w io.Writer) error {
	writer := csv.NewWriter(w)
	header := []string{"Brand", "Model", "Year", "EngineSize", "Mileage", "Actual", "Predicted", "Error", "AbsPctError", "ActualVerdict", "PredictedVerdict"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range r.results.Samples {
		row := []string{
			s.Brand,
			s.Model,
			strconv.Itoa(s.Year),
			strconv.FormatFloat(s.EngineSize, 'f', 1, 64),
			strconv.FormatFloat(s.Mileage, 'f', 0, 64),
			strconv.FormatFloat(s.Actual, 'f', 2, 64),
			strconv.FormatFloat(s.Predicted, 'f', 2, 64),
			strconv.FormatFloat(s.Error, 'f', 2, 64),
			strconv.FormatFloat(s.AbsPctError, 'f', 4, 64),
			string(s.ActualVerdict),
			string(s.PredictedVerdict),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (r *Reporter) writeJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Results
		GeneratedAt time.Time `json:"generated_at"`
	}{r.results, time.Now()})
}

func (r *Reporter) writeGroups(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Dimension", "Group", "Count", "MAE", "MAPE"}); err != nil {
		return err
	}
	for _, dim := range []struct {
		name   string
		groups []GroupStats
	}{{"brand", r.results.ByBrand}, {"year", r.results.ByYear}} {
		for _, g := range dim.groups {
			row := []string{
				dim.name,
				g.Group,
				strconv.Itoa(g.Count),
				strconv.FormatFloat(g.MAE, 'f', 2, 64),
				strconv.FormatFloat(g.MAPE, 'f', 4, 64),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrintSummary prints a summary to console
func (r *Reporter) PrintSummary() {
	res := r.results
	fmt.Println("\n=== BACKTEST RESULTS ===")
	fmt.Printf("Rows: %d train / %d held out\n", res.TrainRows, res.TestRows)
	fmt.Printf("Out-of-sample R2: %.4f\n", res.OutOfSample.R2)
	fmt.Printf("MAE: £%.0f  RMSE: £%.0f\n", res.OutOfSample.MAE, res.OutOfSample.RMSE)
	fmt.Printf("MAPE: %.2f%%  Median APE: %.2f%%\n", res.MAPE*100, res.MedianAPE*100)
	fmt.Printf("Within band: %.2f%%\n", res.WithinBand*100)
	fmt.Printf("Verdict agreement: %.2f%% of %d\n", res.VerdictAgreement*100, res.VerdictCompared)
	fmt.Println("========================")
}

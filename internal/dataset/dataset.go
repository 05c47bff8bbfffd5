// Package dataset reads and writes the used-car sales CSV consumed by the
// trainer and the reference sample consumed by the dashboard.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"autovaluate/internal/common"

	"github.com/rs/zerolog/log"
)

var (
	ErrMissingPriceColumn = errors.New("dataset has no price column")
	ErrEmptyDataset       = errors.New("dataset contains no rows")
)

// Record is one historical sale.
type Record struct {
	Brand        string  `json:"brand"`
	Model        string  `json:"model"`
	Transmission string  `json:"transmission"`
	FuelType     string  `json:"fuelType"`
	Year         float64 `json:"year"`
	Mileage      float64 `json:"mileage"`
	Tax          float64 `json:"tax"`
	MPG          float64 `json:"mpg"`
	EngineSize   float64 `json:"engineSize"`
	Price        float64 `json:"price"`
}

// Numeric returns the value of a numeric column.
func (r Record) Numeric(col string) (float64, bool) {
	switch col {
	case common.ColYear:
		return r.Year, true
	case common.ColMileage:
		return r.Mileage, true
	case common.ColTax:
		return r.Tax, true
	case common.ColMPG:
		return r.MPG, true
	case common.ColEngineSize:
		return r.EngineSize, true
	case common.ColPrice:
		return r.Price, true
	}
	return 0, false
}

// Category returns the value of a categorical column.
func (r Record) Category(col string) (string, bool) {
	switch col {
	case common.ColBrand:
		return r.Brand, true
	case common.ColModel:
		return r.Model, true
	case common.ColTransmission:
		return r.Transmission, true
	case common.ColFuelType:
		return r.FuelType, true
	}
	return "", false
}

func (r *Record) set(col, raw string) error {
	raw = strings.TrimSpace(raw)
	switch col {
	case common.ColBrand:
		r.Brand = raw
	case common.ColModel:
		r.Model = raw
	case common.ColTransmission:
		r.Transmission = raw
	case common.ColFuelType:
		r.FuelType = raw
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("column %s: non-finite value %q", col, raw)
		}
		switch col {
		case common.ColYear:
			r.Year = v
		case common.ColMileage:
			r.Mileage = v
		case common.ColTax:
			r.Tax = v
		case common.ColMPG:
			r.MPG = v
		case common.ColEngineSize:
			r.EngineSize = v
		case common.ColPrice:
			r.Price = v
		}
	}
	return nil
}

func (r Record) field(col string) string {
	if v, ok := r.Category(col); ok {
		return v
	}
	v, _ := r.Numeric(col)
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Dataset is a parsed CSV: the known columns it carried, in header order,
// and the rows that parsed cleanly.
type Dataset struct {
	Columns []string
	Records []Record
	Skipped int
}

// Has reports whether the source file carried the column.
func (d *Dataset) Has(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Prices returns the price column.
func (d *Dataset) Prices() []float64 {
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Price
	}
	return out
}

func knownColumn(col string) bool {
	if col == common.ColPrice {
		return true
	}
	for _, c := range common.NumericColumns {
		if c == col {
			return true
		}
	}
	for _, c := range common.CategoricalColumns {
		if c == col {
			return true
		}
	}
	return false
}

// Load reads a dataset from a CSV file.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	ds, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	log.Info().
		Str("file", path).
		Int("rows", len(ds.Records)).
		Int("skipped", ds.Skipped).
		Strs("columns", ds.Columns).
		Msg("CSV data loaded successfully")

	return ds, nil
}

// Read parses CSV data. A missing price column or zero usable rows is an
// error; rows with unparsable numbers are skipped and counted.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDataset
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	ds := &Dataset{}
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if !knownColumn(col) {
			log.Warn().Str("column", col).Msg("Ignoring unknown dataset column")
			continue
		}
		if _, dup := indices[col]; dup {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		indices[col] = i
		ds.Columns = append(ds.Columns, col)
	}

	if _, ok := indices[common.ColPrice]; !ok {
		return nil, ErrMissingPriceColumn
	}

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
			}
			ds.Skipped++
			log.Debug().Err(err).Int("line", line).Msg("Skipping malformed CSV row")
			continue
		}

		var rec Record
		valid := true
		for _, col := range ds.Columns {
			idx := indices[col]
			if idx >= len(row) {
				valid = false
				break
			}
			if err := rec.set(col, row[idx]); err != nil {
				log.Debug().Err(err).Int("line", line).Msg("Skipping unparsable CSV row")
				valid = false
				break
			}
		}
		if !valid {
			ds.Skipped++
			continue
		}
		ds.Records = append(ds.Records, rec)
	}

	if len(ds.Records) == 0 {
		return nil, ErrEmptyDataset
	}

	return ds, nil
}

// Sample returns n rows drawn without replacement using the given seed.
// When n is at least the dataset size every row is returned, shuffled.
func (d *Dataset) Sample(n int, seed int64) *Dataset {
	rnd := rand.New(rand.NewSource(seed))
	perm := rnd.Perm(len(d.Records))
	if n < len(perm) {
		perm = perm[:n]
	}

	out := &Dataset{
		Columns: append([]string(nil), d.Columns...),
		Records: make([]Record, len(perm)),
	}
	for i, idx := range perm {
		out.Records[i] = d.Records[idx]
	}
	return out
}

// Write emits the dataset as CSV using its column order.
func (d *Dataset) Write(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(d.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(d.Columns))
	for _, rec := range d.Records {
		for i, col := range d.Columns {
			row[i] = rec.field(col)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// Save writes the dataset to path, creating parent directories.
func (d *Dataset) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}

	if err := d.Write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"autovaluate/internal/common"
	"autovaluate/internal/storage"
	"autovaluate/internal/valuation"

	"github.com/rs/zerolog/log"
)

type pageData struct {
	Offline  bool
	Message  string
	Options  valuation.Options
	Query    valuation.Query
	Region   valuation.RegionInfo
	Report   *valuation.Report
	Error    string
	ChartURL string
	Meta     *storage.Metadata
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"engine":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"eqf":     func(a, b float64) bool { return fmt.Sprintf("%.1f", a) == fmt.Sprintf("%.1f", b) },
	"years": func(min, max int) []int {
		out := make([]int, 0, max-min+1)
		for y := max; y >= min; y-- {
			out = append(out, y)
		}
		return out
	},
}).Parse(pageHTML))

// handleIndex renders the form and, when the form was submitted, the
// valuation report. Changing only the region resets the form to that
// region's defaults.
func (d *Dashboard) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Offline: d.Offline(),
		Options: valuation.InputOptions(),
		Meta:    d.model.Meta,
	}
	status := http.StatusOK

	values := r.URL.Query()
	q, err := parseQuery(values)
	if err != nil {
		q = valuation.DefaultQuery(valuation.RegionUK)
		data.Error = err.Error()
		status = http.StatusBadRequest
	}
	data.Query = q
	data.Region, _ = q.Region.Info()

	switch {
	case data.Offline:
		data.Message = common.ErrMsgOffline
	case err == nil && values.Has("brand"):
		report, verr := d.service.Valuate(q)
		if verr != nil {
			data.Error = verr.Error()
			status = statusFor(verr)
			break
		}
		data.Report = report
		if report.Comparison.Available {
			data.ChartURL = "/chart.png?" + queryValues(q).Encode()
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard page")
		d.errorsInc()
		http.Error(w, "page rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>AutoValuate</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1100px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #0068c9 0%, #4b2c82 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2.2em; }
        .header p { margin: 6px 0 0 0; opacity: 0.85; }
        .banner { background: #dc3545; color: white; padding: 15px; border-radius: 8px; margin-bottom: 20px; font-weight: bold; }
        .error { background: #fff3cd; color: #856404; padding: 12px; border-radius: 8px; margin-bottom: 20px; }
        .grid { display: grid; grid-template-columns: 320px 1fr; gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        label { display: block; font-weight: 500; color: #666; margin: 10px 0 4px 0; }
        select, input { width: 100%; padding: 6px; box-sizing: border-box; }
        button { margin-top: 16px; width: 100%; padding: 10px; background: #0068c9; color: white; border: none; border-radius: 6px; font-weight: bold; cursor: pointer; }
        button:disabled { background: #aaa; cursor: not-allowed; }
        .price { font-size: 2.4em; font-weight: bold; color: #0068c9; margin: 10px 0; }
        .metric { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #eee; }
        .metric:last-child { border-bottom: none; }
        .metric-label { color: #666; }
        .metric-value { font-weight: bold; color: #333; }
        .verdict { font-size: 1.2em; font-weight: bold; margin: 12px 0; }
        .bar { position: relative; height: 14px; background: linear-gradient(90deg, #28a745, #ffc107, #dc3545); border-radius: 7px; margin: 20px 0 6px 0; }
        .marker { position: absolute; top: -5px; width: 4px; height: 24px; background: #222; }
        .bar-labels { display: flex; justify-content: space-between; font-size: 0.85em; color: #666; }
        .note { color: #666; font-style: italic; }
        .footer { margin-top: 20px; color: #888; font-size: 0.85em; }
        img { max-width: 100%; margin-top: 16px; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>AutoValuate</h1>
        <p>Used-car price estimates with market comparison</p>
    </div>

    {{if .Offline}}<div class="banner">{{.Message}}</div>{{end}}
    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}

    <div class="grid">
        <form class="card" method="GET" action="/">
            <h3>Vehicle</h3>
            <label for="region">Market</label>
            <select id="region" name="region" onchange="window.location='/?region='+this.value">
                {{range .Options.Regions}}<option value="{{.Region}}"{{if eq .Region $.Query.Region}} selected{{end}}>{{.Label}}</option>{{end}}
            </select>

            <label for="brand">Brand</label>
            <select id="brand" name="brand">
                {{range .Options.Brands}}<option{{if eq . $.Query.Brand}} selected{{end}}>{{.}}</option>{{end}}
            </select>

            <label for="year">Year</label>
            <select id="year" name="year">
                {{range years .Options.MinYear .Options.MaxYear}}<option{{if eq . $.Query.Year}} selected{{end}}>{{.}}</option>{{end}}
            </select>

            <label for="transmission">Transmission</label>
            <select id="transmission" name="transmission">
                {{range .Options.Transmissions}}<option{{if eq . $.Query.Transmission}} selected{{end}}>{{.}}</option>{{end}}
            </select>

            <label for="fuelType">Fuel</label>
            <select id="fuelType" name="fuelType">
                {{range .Options.FuelTypes}}<option{{if eq . $.Query.FuelType}} selected{{end}}>{{.}}</option>{{end}}
            </select>

            <label for="engineSize">Engine size (L)</label>
            <select id="engineSize" name="engineSize">
                {{range .Options.EngineSizes}}<option value="{{engine .}}"{{if eqf . $.Query.EngineSize}} selected{{end}}>{{engine .}}</option>{{end}}
            </select>

            <label for="distance">Distance ({{.Region.DistanceUnit}})</label>
            <input id="distance" name="distance" type="number" min="0" max="{{printf "%.0f" .Region.MaxDistance}}" step="1000" value="{{printf "%.0f" .Query.Distance}}">

            <button type="submit"{{if .Offline}} disabled{{end}}>Valuate</button>
        </form>

        <div class="card">
            <h3>Valuation</h3>
            {{with .Report}}
            <div class="metric-label">Estimated price</div>
            <div class="price">{{.Display}}</div>
            {{if .Comparison.Available}}
            <div class="verdict">{{.Comparison.Verdict}}</div>
            <div class="metric"><span class="metric-label">Market average</span><span class="metric-value">{{.MeanDisplay}}</span></div>
            <div class="metric"><span class="metric-label">Comparable sales</span><span class="metric-value">{{.Comparison.Comparables}}</span></div>
            <div class="bar"><div class="marker" style="left: calc({{percent .Comparison.Position}} - 2px)"></div></div>
            <div class="bar-labels"><span>Cheapest</span><span>Market position {{percent .Comparison.Position}}</span><span>Most expensive</span></div>
            {{if $.ChartURL}}<img src="{{$.ChartURL}}" alt="Market price distribution">{{end}}
            {{else}}
            <p class="note">{{.Comparison.Note}}</p>
            {{end}}
            {{else}}
            <p class="note">{{if $.Offline}}No model loaded.{{else}}Describe the vehicle and press Valuate.{{end}}</p>
            {{end}}
        </div>
    </div>

    {{with .Meta}}
    <div class="footer">Model trained {{.TrainedAt.Format "2006-01-02 15:04 MST"}} on {{.Rows}} rows, {{.Trees}} trees, in-sample R² {{printf "%.3f" .Fit.R2}}</div>
    {{end}}
</div>
</body>
</html>
`

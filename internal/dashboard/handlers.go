package dashboard

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"autovaluate/internal/common"
	"autovaluate/internal/valuation"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status      string     `json:"status"`
	ModelLoaded bool       `json:"model_loaded"`
	TrainedAt   *time.Time `json:"trained_at,omitempty"`
}

type modelResponse struct {
	ModelInfo
	ReferenceRows int `json:"reference_rows"`
}

// wsMessage is the reply to every query received on /ws.
type wsMessage struct {
	Status int               `json:"status"`
	Report *valuation.Report `json:"report,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// handleOptions lists the closed input sets. It works offline too.
func (d *Dashboard) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, valuation.InputOptions())
}

// handleValuation prices a query given either as a JSON body (POST) or as
// URL parameters (GET).
func (d *Dashboard) handleValuation(w http.ResponseWriter, r *http.Request) {
	if d.Offline() {
		writeError(w, http.StatusServiceUnavailable, common.ErrMsgOffline)
		return
	}

	var (
		q   valuation.Query
		err error
	)
	if r.Method == http.MethodPost {
		q, err = decodeQuery(w, r)
	} else {
		q, err = parseQuery(r.URL.Query())
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := d.service.Valuate(q)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (d *Dashboard) handleModel(w http.ResponseWriter, r *http.Request) {
	if d.Offline() {
		writeError(w, http.StatusServiceUnavailable, common.ErrMsgOffline)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse{ModelInfo: d.model, ReferenceRows: d.service.ReferenceSize()})
}

// handleChart draws the comparable-price density for the query in the URL.
// Queries without enough comparables get 404, matching the report's note.
func (d *Dashboard) handleChart(w http.ResponseWriter, r *http.Request) {
	if d.Offline() {
		writeError(w, http.StatusServiceUnavailable, common.ErrMsgOffline)
		return
	}

	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := d.service.Estimate(q)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if !report.Comparison.Available {
		writeError(w, http.StatusNotFound, report.Comparison.Note)
		return
	}

	var buf bytes.Buffer
	if err := renderDensity(&buf, report); err != nil {
		log.Error().Err(err).Str("request_id", report.RequestID).Msg("Failed to render chart")
		d.errorsInc()
		writeError(w, http.StatusInternalServerError, "chart rendering failed")
		return
	}
	if d.metrics != nil {
		d.metrics.ChartRendersInc()
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (d *Dashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", ModelLoaded: !d.Offline()}
	if d.Offline() {
		resp.Status = "offline"
	} else if d.model.Meta != nil {
		resp.TrainedAt = &d.model.Meta.TrainedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWebSocket answers each query message with a report message until
// the client disconnects.
func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if d.Offline() {
		writeError(w, http.StatusServiceUnavailable, common.ErrMsgOffline)
		return
	}

	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	d.clientsMu.Lock()
	d.clients[conn] = true
	n := len(d.clients)
	d.clientsMu.Unlock()
	d.setClientGauge(n)

	defer func() {
		d.clientsMu.Lock()
		delete(d.clients, conn)
		n := len(d.clients)
		d.clientsMu.Unlock()
		d.setClientGauge(n)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("WebSocket client dropped")
			}
			return
		}

		msg := d.answer(data)
		if err := conn.WriteJSON(msg); err != nil {
			log.Error().Err(err).Msg("Failed to send message to WebSocket client")
			return
		}
	}
}

func (d *Dashboard) answer(data []byte) wsMessage {
	q, err := unmarshalQuery(data)
	if err != nil {
		return wsMessage{Status: http.StatusBadRequest, Error: err.Error()}
	}
	report, err := d.service.Valuate(q)
	if err != nil {
		return wsMessage{Status: statusFor(err), Error: err.Error()}
	}
	return wsMessage{Status: http.StatusOK, Report: report}
}

// parseQuery reads a query from URL parameters. Absent parameters take the
// region's form defaults.
func parseQuery(v url.Values) (valuation.Query, error) {
	region := valuation.RegionUK
	if s := v.Get("region"); s != "" {
		var err error
		if region, err = valuation.ParseRegion(s); err != nil {
			return valuation.Query{}, err
		}
	}

	q := valuation.DefaultQuery(region)
	if s := v.Get("brand"); s != "" {
		q.Brand = s
	}
	if s := v.Get("transmission"); s != "" {
		q.Transmission = s
	}
	if s := v.Get("fuelType"); s != "" {
		q.FuelType = s
	}
	if s := v.Get("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			return valuation.Query{}, fmt.Errorf("%w: year %q is not a number", valuation.ErrInvalidQuery, s)
		}
		q.Year = year
	}
	if s := v.Get("engineSize"); s != "" {
		engine, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return valuation.Query{}, fmt.Errorf("%w: engine size %q is not a number", valuation.ErrInvalidQuery, s)
		}
		q.EngineSize = engine
	}
	if s := v.Get("distance"); s != "" {
		distance, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return valuation.Query{}, fmt.Errorf("%w: distance %q is not a number", valuation.ErrInvalidQuery, s)
		}
		q.Distance = distance
	}
	return q, nil
}

// queryValues is the inverse of parseQuery, used for chart links.
func queryValues(q valuation.Query) url.Values {
	v := url.Values{}
	v.Set("region", string(q.Region))
	v.Set("brand", q.Brand)
	v.Set("year", strconv.Itoa(q.Year))
	v.Set("transmission", q.Transmission)
	v.Set("fuelType", q.FuelType)
	v.Set("engineSize", strconv.FormatFloat(q.EngineSize, 'f', -1, 64))
	v.Set("distance", strconv.FormatFloat(q.Distance, 'f', -1, 64))
	return v
}

func decodeQuery(w http.ResponseWriter, r *http.Request) (valuation.Query, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(http.MaxBytesReader(w, r.Body, 1<<16)); err != nil {
		return valuation.Query{}, fmt.Errorf("%w: %v", valuation.ErrInvalidQuery, err)
	}
	return unmarshalQuery(buf.Bytes())
}

// unmarshalQuery decodes a JSON query. The region may be given by name or
// currency code and defaults to the UK. Omitted fields take the region's
// defaults, as parseQuery does for form values.
func unmarshalQuery(data []byte) (valuation.Query, error) {
	var head struct {
		Region string `json:"region"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return valuation.Query{}, fmt.Errorf("%w: %v", valuation.ErrInvalidQuery, err)
	}
	region := valuation.RegionUK
	if head.Region != "" {
		var err error
		if region, err = valuation.ParseRegion(head.Region); err != nil {
			return valuation.Query{}, err
		}
	}

	q := valuation.DefaultQuery(region)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return valuation.Query{}, fmt.Errorf("%w: %v", valuation.ErrInvalidQuery, err)
	}
	q.Region = region
	return q, nil
}

func statusFor(err error) int {
	if errors.Is(err, valuation.ErrInvalidQuery) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// instrument counts requests per route template and status code.
func (d *Dashboard) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if d.metrics == nil {
			return
		}
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if rec.hijacked {
			rec.status = http.StatusSwitchingProtocols
		}
		d.metrics.HTTPRequestInc(route, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.hijacked = true
	return h.Hijack()
}

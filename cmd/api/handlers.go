package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/WessleyAI/homeprice/engine/domain"
	"github.com/WessleyAI/homeprice/engine/encoder"
	"github.com/WessleyAI/homeprice/engine/inference"
	"github.com/WessleyAI/homeprice/pkg/mid"
	"github.com/WessleyAI/homeprice/pkg/resilience"
)

//go:embed templates/index.html
var templateFS embed.FS

const maxBodyBytes = 64 << 10

// fieldLabels are the human labels shown next to each form input.
var fieldLabels = map[string]string{
	domain.FieldPrice:       "Price (in rupees)",
	domain.FieldCarpetArea:  "Carpet area (sqft)",
	domain.FieldSuperArea:   "Super area (sqft)",
	domain.FieldBathroom:    "Bathrooms",
	domain.FieldBalcony:     "Balconies",
	domain.FieldBHK:         "BHK",
	domain.FieldStatus:      "Status",
	domain.FieldTransaction: "Transaction",
	domain.FieldFurnishing:  "Furnishing",
	domain.FieldFacing:      "Facing",
	domain.FieldOwnership:   "Ownership",
	domain.FieldLocation:    "Location",
}

type serverOptions struct {
	Metrics http.Handler
	// Breaker is the remote collaborator's breaker; nil for local inference.
	Breaker *resilience.Breaker
	Printer *message.Printer
	Logger  *slog.Logger
}

type server struct {
	svc     *inference.Service
	page    *template.Template
	metrics http.Handler
	breaker *resilience.Breaker
	printer *message.Printer
	logger  *slog.Logger
}

func newServer(svc *inference.Service, opts serverOptions) (*server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if opts.Printer == nil {
		opts.Printer = message.NewPrinter(language.English)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = http.NotFoundHandler()
	}
	return &server{
		svc:     svc,
		page:    page,
		metrics: opts.Metrics,
		breaker: opts.Breaker,
		printer: opts.Printer,
		logger:  opts.Logger,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleForm)
	mux.HandleFunc("POST /api/predict", s.handlePredict)
	mux.HandleFunc("GET /api/schema", s.handleSchema)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics)
	return mux
}

// --- HTML form ---

type numericInput struct {
	Name    string
	Label   string
	Value   string
	Default float64
	Step    string
}

type selectInput struct {
	Name    string
	Label   string
	Options []selectOption
}

type selectOption struct {
	Label    string
	Selected bool
}

type pageData struct {
	Numeric    []numericInput
	Categories []selectInput
	Location   string
	// Prediction is the display-formatted price; Value is the plain rounded number.
	Prediction string
	Value      string
	Fallbacks  []encoder.Fallback
	Errors     []fieldError
	Failure    string
}

func (s *server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusOK, newPageData(domain.RawInput{}))
}

func (s *server) handleForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		data := newPageData(domain.RawInput{})
		data.Failure = "could not read the submitted form"
		s.render(w, http.StatusBadRequest, data)
		return
	}
	raw := domain.FromValues(r.PostForm)
	data := newPageData(raw)

	p, err := s.svc.Predict(r.Context(), raw)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusBadRequest {
			data.Errors = fieldErrors(err)
		} else {
			s.logger.Error("prediction failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
			data.Failure = failureMessage(code)
		}
		s.render(w, code, data)
		return
	}

	data.Prediction = s.printer.Sprintf("%.2f", p.Rounded)
	data.Value = fmt.Sprintf("%.2f", p.Rounded)
	data.Fallbacks = p.Report.Fallbacks
	s.render(w, http.StatusOK, data)
}

func (s *server) render(w http.ResponseWriter, code int, data pageData) {
	var b strings.Builder
	if err := s.page.Execute(&b, data); err != nil {
		s.logger.Error("render template failed", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(b.String()))
}

func newPageData(raw domain.RawInput) pageData {
	var data pageData
	for _, f := range domain.NumericFields {
		v, _ := raw.Lookup(f.Field)
		step := "any"
		if f.Integer {
			step = "1"
		}
		data.Numeric = append(data.Numeric, numericInput{
			Name: f.Field, Label: fieldLabels[f.Field], Value: v, Default: f.Default, Step: step,
		})
	}
	for _, m := range domain.CategoryMaps {
		selected, _ := raw.Lookup(m.Field())
		in := selectInput{Name: m.Field(), Label: fieldLabels[m.Field()]}
		for _, label := range m.Labels() {
			in.Options = append(in.Options, selectOption{Label: label, Selected: label == selected})
		}
		data.Categories = append(data.Categories, in)
	}
	data.Location, _ = raw.Lookup(domain.FieldLocation)
	return data
}

// --- JSON API ---

// PredictResponse is the JSON response for POST /api/predict.
type PredictResponse struct {
	ID              string             `json:"id"`
	RequestID       string             `json:"request_id,omitempty"`
	Prediction      float64            `json:"prediction"`
	RawPrediction   float64            `json:"raw_prediction"`
	Features        map[string]float64 `json:"features"`
	Fallbacks       []encoder.Fallback `json:"fallbacks"`
	LocationDropped bool               `json:"location_dropped"`
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (s *server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := readInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	p, err := s.svc.Predict(r.Context(), raw)
	if err != nil {
		code := statusFor(err)
		resp := errorResponse{Error: failureMessage(code)}
		if code == http.StatusBadRequest {
			resp.Fields = fieldErrors(err)
		} else {
			s.logger.Error("prediction failed", "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		}
		writeJSON(w, code, resp)
		return
	}

	fallbacks := p.Report.Fallbacks
	if fallbacks == nil {
		fallbacks = []encoder.Fallback{}
	}
	writeJSON(w, http.StatusOK, PredictResponse{
		ID:              p.ID,
		RequestID:       mid.RequestIDFrom(r.Context()),
		Prediction:      p.Rounded,
		RawPrediction:   p.Value,
		Features:        p.Vector.Map(),
		Fallbacks:       fallbacks,
		LocationDropped: p.Report.LocationDropped,
	})
}

// readInput accepts a JSON object of string or number fields, or a form body.
func readInput(r *http.Request) (domain.RawInput, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("invalid form body")
		}
		return domain.FromValues(r.PostForm), nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, errors.New("invalid request body")
	}
	raw := make(domain.RawInput, len(body))
	for k, v := range body {
		switch v := v.(type) {
		case nil:
		case string:
			raw[k] = v
		case json.Number:
			raw[k] = v.String()
		default:
			return nil, fmt.Errorf("field %q must be a string or number", k)
		}
	}
	return raw, nil
}

// SchemaResponse is the JSON response for GET /api/schema.
type SchemaResponse struct {
	Features   []string                     `json:"features"`
	Numeric    []numericField               `json:"numeric"`
	Categories map[string][]domain.Category `json:"categories"`
}

type numericField struct {
	Field   string  `json:"field"`
	Feature string  `json:"feature"`
	Default float64 `json:"default"`
	Integer bool    `json:"integer"`
}

func (s *server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	resp := SchemaResponse{
		Features:   s.svc.Schema().Names(),
		Categories: make(map[string][]domain.Category, len(domain.CategoryMaps)),
	}
	for _, f := range domain.NumericFields {
		resp.Numeric = append(resp.Numeric, numericField{Field: f.Field, Feature: f.Feature, Default: f.Default, Integer: f.Integer})
	}
	for _, m := range domain.CategoryMaps {
		resp.Categories[m.Field()] = m.Entries()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{"status": "ok", "inference": "local"}
	if s.breaker != nil {
		st := s.breaker.State()
		resp["inference"] = "remote"
		resp["circuit"] = st.String()
		if st == resilience.StateOpen {
			resp["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// statusFor maps a prediction error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidNumber), errors.Is(err, domain.ErrNotInteger):
		return http.StatusBadRequest
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func failureMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid input"
	case http.StatusServiceUnavailable:
		return "prediction service temporarily unavailable"
	case http.StatusGatewayTimeout:
		return "prediction timed out"
	default:
		return "prediction failed"
	}
}

func fieldErrors(err error) []fieldError {
	var out []fieldError
	for _, ve := range domain.ValidationErrors(err) {
		msg := "must be a number"
		if errors.Is(ve, domain.ErrNotInteger) {
			msg = "must be a whole number"
		}
		out = append(out, fieldError{Field: ve.Field, Value: ve.Value, Message: msg})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

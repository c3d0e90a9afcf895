// Package server exposes processing, share links and national comparison
// over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"practice-insights/config"
	"practice-insights/errors"
	"practice-insights/metrics"
	"practice-insights/models"
	"practice-insights/national"
	"practice-insights/parser"
	"practice-insights/pipeline"
	"practice-insights/share"
)

// RunRecorder persists processing runs.
type RunRecorder interface {
	SaveRun(ctx context.Context, res *pipeline.Result) error
}

// Options configure a Server. Store is required.
type Options struct {
	Store          share.Store
	History        RunRecorder
	Analysis       models.Config
	EndpointPrefix string
	MaxRequests    int
	BodyLimit      int64
}

// Server holds the API dependencies.
type Server struct {
	log  *zap.Logger
	opts Options
}

// New returns a Server. Zero limits get defaults.
func New(log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.EndpointPrefix == "" {
		opts.EndpointPrefix = "/v1"
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = 10
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 32 << 20
	}
	return &Server{log: log, opts: opts}
}

// Router builds the chi router with CORS, per-IP rate limiting and the
// Prometheus endpoint.
func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "ok", nil)
	})

	router.Route(s.opts.EndpointPrefix, func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.opts.MaxRequests, time.Second))
		r.Post("/dashboards", s.createDashboard)
		r.Route("/shares", func(r chi.Router) {
			r.Post("/", s.createShare)
			r.Get("/{id}", s.getShare)
		})
		r.Post("/comparisons", s.compare)
	})
	return router
}

// Serve runs the API until ctx is cancelled, then shuts down within
// shutdownTimeout.
func (s *Server) Serve(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type dashboardResponse struct {
	*pipeline.Result
	ShareID string `json:"shareId,omitempty"`
}

func (s *Server) createDashboard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.BodyLimit)
	if err := r.ParseMultipartForm(s.opts.BodyLimit); err != nil {
		writeError(s.log, w, badRequest(fmt.Errorf("reading multipart form: %w", err)))
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := s.analysisOptions(r.MultipartForm.Value)
	if err != nil {
		writeError(s.log, w, err)
		return
	}

	in, closeAll, err := inputs(r.MultipartForm)
	defer closeAll()
	if err != nil {
		writeError(s.log, w, err)
		return
	}

	res, err := pipeline.Process(in, cfg, s.log)
	if err != nil {
		writeError(s.log, w, err)
		return
	}

	if s.opts.History != nil {
		if err := s.opts.History.SaveRun(r.Context(), res); err != nil {
			s.log.Warn("saving run history failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}

	out := dashboardResponse{Result: res}
	if formBool(r.MultipartForm.Value, "share") {
		id, err := s.opts.Store.Save(r.Context(), share.FromResult(res))
		if err != nil {
			writeError(s.log, w, err)
			return
		}
		out.ShareID = id
	}
	writeSuccess(w, http.StatusOK, "dashboard generated", out)
}

func (s *Server) createShare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.BodyLimit)
	var p share.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(s.log, w, badRequest(fmt.Errorf("decoding share payload: %w", err)))
		return
	}
	if len(p.ProcessedData) == 0 {
		writeError(s.log, w, badRequest(fmt.Errorf("processedData is empty")))
		return
	}

	id, err := s.opts.Store.Save(r.Context(), &p)
	if err != nil {
		writeError(s.log, w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "share created", map[string]string{"id": id})
}

func (s *Server) getShare(w http.ResponseWriter, r *http.Request) {
	p, err := s.opts.Store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(s.log, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "share loaded", p)
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	var req national.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.log, w, badRequest(fmt.Errorf("decoding comparison request: %w", err)))
		return
	}
	if err := config.ValidateStruct(req); err != nil {
		writeError(s.log, w, err)
		return
	}
	if req.Threshold == 0 {
		req.Threshold = s.opts.Analysis.WithDefaults().OutlierThreshold
	}

	report, err := national.Run(r.Context(), s.opts.Store, req, s.log)
	if err != nil {
		writeError(s.log, w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "comparison complete", report)
}

// analysisOptions overlays form fields on the server's default options.
func (s *Server) analysisOptions(form map[string][]string) (models.Config, error) {
	cfg := s.opts.Analysis
	var err error
	setFloat := func(key string, dst *float64) {
		if v := formValue(form, key); v != "" && err == nil {
			var f float64
			if f, err = strconv.ParseFloat(v, 64); err != nil {
				err = badRequest(fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	setFloat("population", &cfg.Population)
	setFloat("workingDaysPerMonth", &cfg.WorkingDaysPerMonth)
	setFloat("outlierThreshold", &cfg.OutlierThreshold)
	setFloat("missedCallRepeatFactor", &cfg.MissedCallRepeatFactor)
	if v := formValue(form, "forecastPeriods"); v != "" && err == nil {
		var n int
		if n, err = strconv.Atoi(v); err != nil {
			err = badRequest(fmt.Errorf("forecastPeriods: %w", err))
		} else {
			cfg.ForecastPeriods = models.RequestedForecastPeriods(n)
		}
	}
	if err != nil {
		return cfg, err
	}

	if _, ok := form["useTelephony"]; ok {
		cfg.UseTelephony = formBool(form, "useTelephony")
	}
	if _, ok := form["useOnline"]; ok {
		cfg.UseOnline = formBool(form, "useOnline")
	}
	if v := formValue(form, "allocation"); v != "" {
		cfg.Allocation = models.AllocationPolicy(v)
	}
	if v := formValue(form, "unknownMonth"); v != "" {
		cfg.UnknownMonth = models.UnknownMonthPolicy(v)
	}

	if err := config.ValidateStruct(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// inputs opens the uploaded files. The returned func closes them all and
// is safe to call on error.
func inputs(form *multipart.Form) (pipeline.Inputs, func(), error) {
	var (
		in     pipeline.Inputs
		opened []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	open := func(h *multipart.FileHeader) (parser.Source, error) {
		f, err := h.Open()
		if err != nil {
			return parser.Source{}, fmt.Errorf("opening %s: %w", h.Filename, err)
		}
		opened = append(opened, f)
		return parser.Source{Name: h.Filename, Reader: f}, nil
	}
	single := func(field string) (*parser.Source, error) {
		hs := form.File[field]
		if len(hs) == 0 {
			return nil, nil
		}
		src, err := open(hs[0])
		if err != nil {
			return nil, err
		}
		return &src, nil
	}

	var err error
	if in.Appointments, err = single("appointments"); err != nil {
		return in, closeAll, err
	}
	if in.Appointments == nil {
		return in, closeAll, errors.ErrMissingAppointments
	}
	for field, dst := range map[string]**parser.Source{
		"dna":       &in.DNA,
		"unused":    &in.Unused,
		"online":    &in.Online,
		"workforce": &in.Workforce,
	} {
		if *dst, err = single(field); err != nil {
			return in, closeAll, err
		}
	}

	for _, h := range form.File["followup"] {
		src, err := open(h)
		if err != nil {
			return in, closeAll, err
		}
		in.FollowUp = append(in.FollowUp, src)
	}

	for _, h := range form.File["telephony"] {
		src, err := open(h)
		if err != nil {
			return in, closeAll, err
		}
		text, err := io.ReadAll(src.Reader)
		if err != nil {
			return in, closeAll, fmt.Errorf("reading %s: %w", h.Filename, err)
		}
		in.Telephony = append(in.Telephony, pipeline.TelephonyText{Name: h.Filename, Text: string(text)})
	}
	for i, text := range form.Value["telephony"] {
		in.Telephony = append(in.Telephony, pipeline.TelephonyText{Name: fmt.Sprintf("telephony[%d]", i), Text: text})
	}
	return in, closeAll, nil
}

func formValue(form map[string][]string, key string) string {
	if vs := form[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func formBool(form map[string][]string, key string) bool {
	b, _ := strconv.ParseBool(formValue(form, key))
	return b
}

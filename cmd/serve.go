package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pe-score/internal/config"
	"github.com/sells-group/pe-score/internal/dsscore"
	"github.com/sells-group/pe-score/internal/raster"
	"github.com/sells-group/pe-score/internal/ruleset"
)

const maxBodyBytes = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for model validation and point evaluation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API handler.
func newRouter(c *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h := &apiHandler{cfg: c}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/rules/validate", h.validate)
		r.Post("/evaluate", h.evaluate)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type apiHandler struct {
	cfg *config.Config
}

type validateResponse struct {
	Valid   bool     `json:"valid"`
	Name    string   `json:"name,omitempty"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// validate compiles the model document in the request body.
func (h *apiHandler) validate(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}
	compiled, problems := validateModelSource(data)
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Errors: problems})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:   true,
		Name:    compiled.Name,
		Inputs:  compiled.Inputs(),
		Outputs: compiled.OutputNames(),
	})
}

type evaluateRequest struct {
	Model  string              `json:"model"`
	Values map[string]*float64 `json:"values"`
}

type evaluateResponse struct {
	Outputs      map[string]*float64 `json:"outputs"`
	NoDataInputs int                 `json:"nodata_inputs"`
	Missing      []string            `json:"missing,omitempty"`
}

// evaluate scores one cell: the model in the request applied to a value per
// input. A null or absent value is no-data.
func (h *apiHandler) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values are required")
		return
	}

	raw, err := ruleset.Parse([]byte(req.Model))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	compiled, err := raw.Compile()
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string][]string{"errors": errorMessages(err)})
		return
	}

	noData := h.cfg.Output.NoDataValue
	names := make([]string, 0, len(req.Values))
	for name := range req.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	bands := make([]*raster.Band, 0, len(names))
	for _, name := range names {
		b := raster.NewBand(name, 1, 1, noData)
		if v := req.Values[name]; v != nil {
			b.Data[0] = *v
		}
		bands = append(bands, b)
	}
	stack, err := raster.NewStack(raster.Meta{}, bands...)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := append(engineOptions(h.cfg, raw, 0, 1, nil), dsscore.WithTally(true))
	res, err := dsscore.NewEngine(compiled, opts...).Run(r.Context(), stack)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if len(res.Failures) > 0 {
		writeError(w, http.StatusUnprocessableEntity, res.Failures[0].Err.Error())
		return
	}

	resp := evaluateResponse{Outputs: map[string]*float64{}, Missing: res.Missing}
	for _, b := range scoredBands(res) {
		resp.Outputs[b.Name] = cellValue(b)
	}
	if v := cellValue(res.Tally); v != nil {
		resp.NoDataInputs = int(*v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// cellValue returns a single-cell band's value, nil for no-data.
func cellValue(b *raster.Band) *float64 {
	v := b.Data[0]
	if b.IsNoData(v) {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

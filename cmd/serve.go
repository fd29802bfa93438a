package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/serialscan/internal/imaging"
	"github.com/sells-group/serialscan/internal/model"
	"github.com/sells-group/serialscan/internal/monitoring"
	"github.com/sells-group/serialscan/internal/session"
	"github.com/sells-group/serialscan/internal/store"
)

var servePort int

// pendingTTL bounds how long an unreviewed case is kept.
const pendingTTL = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScanEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newServer(env, cfg.Server.MaxUploadMB).routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		return g.Wait()
	},
}

type pendingCase struct {
	sess    *session.Session
	created time.Time
}

// server holds the cases waiting for review, keyed by case id.
type server struct {
	env       *scanEnv
	maxUpload int64

	mu      sync.Mutex
	pending map[string]pendingCase
	now     func() time.Time
}

func newServer(env *scanEnv, maxUploadMB int) *server {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &server{
		env:       env,
		maxUpload: int64(maxUploadMB) << 20,
		pending:   make(map[string]pendingCase),
		now:       time.Now,
	}
}

func (s *server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/scans", s.handleScan)
		r.Post("/scans/{id}/accept", s.handleAccept)
		r.Post("/scans/{id}/edit", s.handleEdit)
		r.Get("/results", s.handleResults)
		r.Get("/results/{id}", s.handleResult)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	img, err := imaging.Decode(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is not a supported image")
		return
	}

	sess, err := s.env.NewSession(r.FormValue("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := runCase(r.Context(), sess, s.env.Prepare(img), r.FormValue("input_type") == string(model.InputCamera), false, "")
	if err != nil {
		zap.L().Error("scan request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	if report.Record == nil {
		s.keep(report.CaseID, sess)
	}
	status := http.StatusOK
	if report.Record != nil {
		status = http.StatusCreated
	}
	writeResponse(w, status, report)
}

func (s *server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.take(id)
	if !ok {
		writeError(w, http.StatusNotFound, "case not found")
		return
	}

	rec, err := sess.Accept(r.Context())
	if err != nil {
		s.reviewFailed(w, id, sess, err)
		return
	}
	writeResponse(w, http.StatusCreated, rec)
}

func (s *server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Serial string `json:"serial_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	sess, ok := s.take(id)
	if !ok {
		writeError(w, http.StatusNotFound, "case not found")
		return
	}

	if err := sess.Edit(); err != nil {
		s.reviewFailed(w, id, sess, err)
		return
	}
	rec, err := sess.SaveEdited(r.Context(), req.Serial)
	if err != nil {
		s.reviewFailed(w, id, sess, err)
		return
	}
	writeResponse(w, http.StatusCreated, rec)
}

func (s *server) handleResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ResultFilter{
		Source: model.Source(q.Get("source")),
		Serial: q.Get("serial_number"),
		Agent:  q.Get("agent"),
		Limit:  queryInt(q.Get("limit"), 50),
		Offset: queryInt(q.Get("offset"), 0),
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = since
	}

	recs, err := s.env.Store.ListResults(r.Context(), filter)
	if err != nil {
		zap.L().Error("list results failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list results failed")
		return
	}
	if recs == nil {
		recs = []model.CaseRecord{}
	}
	writeResponse(w, http.StatusOK, map[string]any{"results": recs})
}

func (s *server) handleResult(w http.ResponseWriter, r *http.Request) {
	rec, err := s.env.Store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		zap.L().Error("get result failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get result failed")
		return
	}
	writeResponse(w, http.StatusOK, rec)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r.URL.Query().Get("hours"), 24)
	snap, err := monitoring.NewCollector(s.env.Store).Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "collect stats failed")
		return
	}
	writeResponse(w, http.StatusOK, snap)
}

// keep parks a case for review and drops cases older than pendingTTL.
func (s *server) keep(id string, sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, p := range s.pending {
		if now.Sub(p.created) > pendingTTL {
			delete(s.pending, k)
		}
	}
	s.pending[id] = pendingCase{sess: sess, created: now}
}

// take removes a pending case so only one review action runs on it.
func (s *server) take(id string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return p.sess, ok
}

// reviewFailed puts the case back and reports err.
func (s *server) reviewFailed(w http.ResponseWriter, id string, sess *session.Session, err error) {
	if sess.Active() != nil {
		s.keep(id, sess)
	}
	switch {
	case errors.Is(err, session.ErrInvalidSerial):
		writeError(w, http.StatusUnprocessableEntity, "serial number may only contain letters, digits, space and - _ / . (1-64 characters)")
	case errors.Is(err, session.ErrNoSerial), errors.Is(err, session.ErrNotScanned):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zap.L().Error("review action failed", zap.String("case_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
	}
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

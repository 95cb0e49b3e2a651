package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hps-internal/dealdesk/internal/config"
	"github.com/hps-internal/dealdesk/internal/model"
	"github.com/hps-internal/dealdesk/internal/store"
	"github.com/hps-internal/dealdesk/internal/underwrite"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evaluation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		policyPath, _ := cmd.Flags().GetString("policy")
		pol, err := config.LoadPolicies(policyPath)
		if err != nil {
			return err
		}

		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSecond), cfg.Server.RateBurst)
		router := newRouter(st, pol, limiter)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
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
	serveCmd.Flags().String("policy", "", "policy override YAML file")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the evaluation API. Separated from the command for
// httptest coverage.
func newRouter(st store.Store, pol underwrite.PolicySet, limiter *rate.Limiter) http.Handler {
	h := &apiHandler{st: st, pol: pol}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(limiter))

	r.Get("/health", h.health)
	r.Route("/v1/evaluations", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	return r
}

// rateLimit rejects requests beyond the configured rate with 429.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type apiHandler struct {
	st  store.Store
	pol underwrite.PolicySet
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string               `json:"name"`
		Address string               `json:"address"`
		Deal    underwrite.DealInput `json:"deal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	result, err := underwrite.Evaluate(r.Context(), req.Deal, h.pol)
	if err != nil {
		zap.L().Error("evaluation failed", zap.String("deal", req.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "evaluation failed"})
		return
	}

	saved, err := h.st.SaveEvaluation(r.Context(), model.Evaluation{
		DealName: req.Name,
		Address:  req.Address,
		Input:    req.Deal,
		Result:   &result,
	})
	if err != nil {
		zap.L().Error("save evaluation failed", zap.String("deal", req.Name), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "save failed"})
		return
	}

	zap.L().Info("evaluation created",
		zap.String("id", saved.ID),
		zap.String("deal", saved.DealName),
		zap.String("recommendation", string(saved.Recommendation)),
	)
	writeJSON(w, http.StatusCreated, saved)
}

func (h *apiHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := h.st.GetEvaluation(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "evaluation not found"})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *apiHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.EvaluationFilter{
		Recommendation: q.Get("recommendation"),
		DealName:       q.Get("deal"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	evals, err := h.st.ListEvaluations(r.Context(), filter)
	if err != nil {
		zap.L().Error("list evaluations failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vkpulse/vkpulse/internal/analysis"
)

// NewRouter builds the HTTP surface over the analysis service: health and
// metrics probes, the run trigger, and the session endpoints.
func NewRouter(service *analysis.Service) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(service)).Methods("GET")
	router.HandleFunc("/analyze", analyzeHandler(service)).Methods("POST")
	router.HandleFunc("/summary", summaryHandler(service)).Methods("GET")
	router.HandleFunc("/merge", mergeHandler(service)).Methods("POST")
	router.HandleFunc("/reset", resetHandler(service)).Methods("POST")
	router.HandleFunc("/mentions", mentionsHandler(service)).Methods("GET")

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func metricsHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, service.Metrics())
	}
}

type analyzeRequest struct {
	Groups    string `json:"groups"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Async     bool   `json:"async"`
}

func analyzeHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if req.Async {
			// The request context dies with this handler, so the
			// background run gets its own deadline.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
				defer cancel()
				if _, err := service.RunFullAnalysis(ctx, req.Groups, req.StartDate, req.EndDate); err != nil {
					logrus.Errorf("Background analysis run failed: %v", err)
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"message": "analysis started"})
			return
		}

		result, err := service.RunFullAnalysis(r.Context(), req.Groups, req.StartDate, req.EndDate)
		if err != nil {
			status := http.StatusBadRequest
			if err.Error() == "analysis run already in progress" {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func summaryHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topN := 0
		if raw := r.URL.Query().Get("top"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "top must be a non-negative integer"})
				return
			}
			topN = parsed
		}

		summary, standings, err := service.Summary(topN)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"summary":   summary,
			"standings": standings,
		})
	}
}

type mergeRequest struct {
	Aliases   []string `json:"aliases"`
	Canonical string   `json:"canonical"`
}

func mergeHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := service.Merge(req.Aliases, req.Canonical); err != nil {
			status := http.StatusBadRequest
			if err.Error() == "no analysis results in session" {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "entities merged"})
	}
}

func resetHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.Reset(); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "session restored to baseline"})
	}
}

func mentionsHandler(service *analysis.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentions, err := service.Mentions(r.URL.Query().Get("entity"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"count":    len(mentions),
			"mentions": mentions,
		})
	}
}

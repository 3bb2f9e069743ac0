package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// A stand-in ring hub for running the gateway locally.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /rings/{slug}/fork", func(w http.ResponseWriter, r *http.Request) {
		parent := r.PathValue("slug")
		child := parent + "-" + strings.ToLower(gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz0123456789", 6))
		logger.Info("fork", "parent", parent, "child", child, "actor_id", r.Header.Get("X-Actor-ID"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"slug":       child,
			"parent":     parent,
			"created_at": time.Now().UTC(),
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logger.Info("request", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Hello from the dummy ring hub",
			"path":    r.URL.Path,
		})
	})

	logger.Info("dummy hub starting", "addr", ":3001")
	if err := http.ListenAndServe(":3001", mux); err != nil {
		logger.Error("dummy hub stopped", "error", err)
		os.Exit(1)
	}
}

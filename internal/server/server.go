// Package server assembles the router and starts the HTTP server.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formflow/internal/handler"
)

// Config holds server configuration.
type Config struct {
	Port   int
	Runner *handler.Runner
}

// Run starts the HTTP server with all routes registered. It shuts down
// gracefully when ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	r := chi.NewRouter()
	r.Use(handler.Logging)
	r.Use(handler.Recovery)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	rn := cfg.Runner
	r.Route("/forms/{slug}", func(r chi.Router) {
		r.Get("/{page}", rn.GetPage)
		r.Post("/{page}", rn.PostPage)

		// Repeating lists
		r.Post("/{page}/items", rn.AddItem)
		r.Put("/{page}/items/{itemID}", rn.UpdateItem)
		r.Delete("/{page}/items/{itemID}", rn.DeleteItem)

		// File uploads
		r.Post("/{page}/upload", rn.InitiateUpload)
		r.Get("/{page}/upload/{uploadID}/status", rn.UploadStatus)
		r.Get("/{page}/upload/{uploadID}/stream", rn.StreamUploadStatus)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("starting server on %s", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

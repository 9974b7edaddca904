package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/matthewbaird/formflow/internal/definition"
	"github.com/matthewbaird/formflow/internal/eventbus"
	"github.com/matthewbaird/formflow/internal/handler"
	"github.com/matthewbaird/formflow/internal/server"
	"github.com/matthewbaird/formflow/internal/statestore"
	"github.com/matthewbaird/formflow/internal/submission"
	"github.com/matthewbaird/formflow/internal/upload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	formsDir := os.Getenv("FORMS_DIR")
	if formsDir == "" {
		formsDir = "forms"
	}
	registry, err := definition.LoadDir(formsDir)
	if err != nil {
		log.Fatalf("loading form definitions: %v", err)
	}
	log.Printf("loaded %d form(s) from %s", len(registry.Slugs()), formsDir)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "file:formflow.db?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	// Session state: Redis when configured, in-memory otherwise.
	var store statestore.Store
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatalf("parsing REDIS_URL: %v", err)
		}
		ttl := 30 * 24 * time.Hour
		if raw := os.Getenv("SESSION_TTL"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				log.Fatalf("parsing SESSION_TTL: %v", err)
			}
			ttl = parsed
		}
		store = statestore.NewRedisStore(redis.NewClient(opts), ttl)
		log.Printf("session state in redis (ttl %s)", ttl)
	} else {
		store = statestore.NewMemoryStore()
		log.Println("session state in memory — sessions will not survive a restart")
	}

	bus := eventbus.New(256)
	bus.Subscribe("log", eventbus.LogConsumer{})
	bus.Start(ctx)
	defer bus.Stop()

	recorder, err := submission.NewRecorder(db, bus)
	if err != nil {
		log.Fatalf("preparing submission recorder: %v", err)
	}

	var uploads upload.Service
	if base := os.Getenv("UPLOAD_SERVICE_URL"); base != "" {
		uploads = upload.NewHTTPService(base, nil)
	}

	runner, err := handler.NewRunner(registry, store, recorder, uploads, bus)
	if err != nil {
		log.Fatalf("building form runner: %v", err)
	}

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	if err := server.Run(ctx, server.Config{Port: port, Runner: runner}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

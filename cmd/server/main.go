package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"telemetryd/internal/config"
	"telemetryd/internal/database"
	"telemetryd/internal/handlers"
	"telemetryd/internal/mqttbridge"
	"telemetryd/internal/services"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.json", "Path to config file")
	dbPath := flag.String("db", "", "Path to SQLite database file (overrides config)")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfigWithDefaults(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Override with command line flags if provided
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database initialized at: %s", cfg.Database.Path)

	// Optional redis live-value cache
	var cache *redis.Client
	if cfg.Cache.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		if err := cache.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without cache", "addr", cfg.Cache.RedisAddr, "error", err)
			cache = nil
		} else {
			defer cache.Close()
			log.Printf("Live-value cache enabled at: %s", cfg.Cache.RedisAddr)
		}
	}

	// Initialize services
	store := services.NewTelemetryStore(db, cache, logger)
	intervalEngine := services.NewIntervalEngine()

	// Initialize handlers
	formatter, err := handlers.NewFormatter(cfg.Display.Timezone)
	if err != nil {
		log.Fatalf("Failed to initialize formatter: %v", err)
	}
	telemetryHandler := handlers.NewTelemetryHandler(store, services.BuildReading, formatter, logger)
	intervalHandler := handlers.NewIntervalHandler(intervalEngine, formatter)

	// Optional MQTT ingestion bridge
	if cfg.MQTT.BrokerURL != "" {
		bridge := mqttbridge.New(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.Topic, store, logger)
		if err := bridge.Start(); err != nil {
			log.Fatalf("Failed to start MQTT bridge: %v", err)
		}
		defer bridge.Stop()
	}

	// Setup router
	router := mux.NewRouter()

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/telemetry", telemetryHandler.Create).Methods("POST")
	api.HandleFunc("/telemetry", telemetryHandler.List).Methods("GET")
	api.HandleFunc("/telemetry/count", telemetryHandler.Count).Methods("GET")
	api.HandleFunc("/telemetry/last", telemetryHandler.Latest).Methods("GET")
	api.HandleFunc("/telemetry/last/{n}", telemetryHandler.Latest).Methods("GET")
	api.HandleFunc("/update-interval", intervalHandler.Handle).Methods("GET")

	// Human-readable status page
	router.HandleFunc("/", handlers.Status).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}).Methods("GET")

	// Devices post from anywhere, so CORS stays wide open
	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{"*"}),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type"}),
	)
	handler := gorillahandlers.LoggingHandler(os.Stdout, cors(router))

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Printf("API endpoints:")
	log.Printf("  POST /api/telemetry")
	log.Printf("  GET  /api/telemetry")
	log.Printf("  GET  /api/telemetry/last/{n}")
	log.Printf("  GET  /api/telemetry/count")
	log.Printf("  GET  /api/update-interval?device=<hint>")
	log.Printf("  GET  /health")

	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

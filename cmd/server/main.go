package main

import (
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/pairpad/backend/api/handlers"
	"github.com/pairpad/backend/internal/db"
	"github.com/pairpad/backend/internal/registry"
	"github.com/pairpad/backend/internal/repository"
	"github.com/pairpad/backend/internal/runner"
	"github.com/pairpad/backend/internal/ws"
)

func main() {
	// Get configuration from environment
	port := getEnv("PORT", "3000")
	dbPath := getEnv("DB_PATH", "")

	// Select the session store: in-memory by default, SQLite when DB_PATH
	// is set.
	store, closeStore, err := newStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	defer closeStore()

	// Initialize the realtime relay
	relay := ws.NewHandler(store)
	defer relay.Close()

	// Register runners for interpreters available on this host
	runners := runner.NewRegistry()
	registerRunners(runners)

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(store, runners)
	wsHandler := handlers.NewWebSocketHandler(relay)

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		sessionHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		relay.Close()
		closeStore()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting server on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newStore builds the session store. An empty dbPath selects the in-memory
// registry; otherwise a SQLite store is opened at dbPath.
func newStore(dbPath string) (registry.Store, func(), error) {
	if dbPath == "" {
		return registry.New(), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, err
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Using SQLite session store at %s", dbPath)
	return repository.NewSessionStore(database), func() { database.Close() }, nil
}

// registerRunners binds language tags to interpreters found on PATH.
// Languages without an interpreter stay unregistered and report an
// unsupported outcome on the run endpoint.
func registerRunners(runners *runner.Registry) {
	candidates := map[string][]string{
		"javascript": {"node", "-"},
		"python":     {"python3", "-"},
	}

	for language, argv := range candidates {
		if _, err := exec.LookPath(argv[0]); err != nil {
			log.Printf("Runner for %s disabled: %s not found", language, argv[0])
			continue
		}
		runners.Register(language, runner.NewExecRunner(argv...))
	}
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

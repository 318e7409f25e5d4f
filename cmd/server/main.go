package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/device-diag-shell/backend/api/handlers"
	"github.com/device-diag-shell/backend/internal/command"
	"github.com/device-diag-shell/backend/internal/db"
	"github.com/device-diag-shell/backend/internal/logger"
	"github.com/device-diag-shell/backend/internal/model"
	"github.com/device-diag-shell/backend/internal/repository"
	"github.com/device-diag-shell/backend/internal/server"
	"github.com/device-diag-shell/backend/internal/ws"
)

func main() {
	// Get configuration from environment
	telnetPort := getEnv("TELNET_PORT", "2500")
	httpPort := getEnv("HTTP_PORT", "8080")
	username := getEnv("AUTH_USERNAME", "admin")
	password := getEnv("AUTH_PASSWORD", "1234")
	dbPath := getEnv("DB_PATH", "data/sessions.db")
	logDir := getEnv("LOG_DIR", "data/transcripts")
	maxSessions := getEnvInt("MAX_SESSIONS", server.DefaultMaxSessions)

	// Ensure data directories exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Fatalf("Failed to create transcript directory: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	sessionRepo := repository.NewSessionRepository(database)
	ctx := context.Background()

	// Build the command registry
	registry := command.NewRegistry()
	startedAt := time.Now()
	registerBuiltins(registry, startedAt)

	// WebSocket observer plumbing
	hubManager := ws.NewHubManager()
	defer hubManager.Close()
	wsService := ws.NewHandler(hubManager)

	// Per-session transcripts, keyed by session ID
	var transcriptsMu sync.Mutex
	transcripts := make(map[string]*logger.Transcript)

	srv := server.New(registry, server.Config{
		Addr:        ":" + telnetPort,
		Username:    username,
		Password:    password,
		MaxSessions: maxSessions,
	}, server.Hooks{
		SessionOpened: func(sess model.Session) {
			sess.TranscriptPath = transcriptPath(logDir, sess.ID)
			if err := sessionRepo.Create(ctx, &sess); err != nil {
				log.Printf("Failed to record session %s: %v", sess.ID, err)
			}
		},
		SessionClosed: func(sessionID string, status model.SessionStatus) {
			now := time.Now()
			if err := sessionRepo.UpdateStatus(ctx, sessionID, status, &now); err != nil {
				log.Printf("Failed to close session record %s: %v", sessionID, err)
			}

			transcriptsMu.Lock()
			if t, ok := transcripts[sessionID]; ok {
				t.Close()
				delete(transcripts, sessionID)
			}
			transcriptsMu.Unlock()

			wsService.BroadcastStatus(sessionID, string(status))
			hubManager.Remove(sessionID)
		},
		Authenticated: func(sessionID, username string) {
			if username == "" {
				return
			}
			if err := sessionRepo.UpdateUsername(ctx, sessionID, username); err != nil {
				log.Printf("Failed to record login for session %s: %v", sessionID, err)
			}
		},
		CommandExecuted: func(sessionID, line string, code int) {
			transcriptsMu.Lock()
			if t, ok := transcripts[sessionID]; ok {
				t.WriteInput([]byte(line + "\r"))
			}
			transcriptsMu.Unlock()

			rec := &model.CommandRecord{
				SessionID:  sessionID,
				Line:       line,
				ResultCode: code,
				ExecutedAt: time.Now(),
			}
			if err := sessionRepo.LogCommand(ctx, rec); err != nil {
				log.Printf("Failed to log command for session %s: %v", sessionID, err)
			}
		},
		Tap: func(sess model.Session) func([]byte) {
			t, err := logger.NewTranscript(transcriptPath(logDir, sess.ID))
			if err != nil {
				log.Printf("Failed to open transcript for session %s: %v", sess.ID, err)
				return func(out []byte) {
					wsService.BroadcastOutput(sess.ID, out)
				}
			}
			if err := t.WriteHeader(80, 24, nil); err != nil {
				log.Printf("Failed to write transcript header for session %s: %v", sess.ID, err)
			}

			transcriptsMu.Lock()
			transcripts[sess.ID] = t
			transcriptsMu.Unlock()

			return func(out []byte) {
				t.WriteOutput(out)
				wsService.BroadcastOutput(sess.ID, out)
			}
		},
	})

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start telnet server: %v", err)
	}
	defer srv.Stop()

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(srv, sessionRepo)
	commandHandler := handlers.NewCommandHandler(registry)
	wsHandler := handlers.NewWebSocketHandler(srv, sessionRepo, wsService)

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":         "ok",
			"activeSessions": srv.ActiveCount(),
		})
	})

	// API routes
	api := r.Group("/api")
	{
		sessionHandler.RegisterRoutes(api)
		commandHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		srv.Stop()
		hubManager.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Start HTTP server
	log.Printf("Starting admin API on port %s", httpPort)
	if err := r.Run(":" + httpPort); err != nil {
		log.Fatalf("Failed to start HTTP server: %v", err)
	}
}

// registerBuiltins installs the example diagnostic commands.
func registerBuiltins(registry *command.Registry, startedAt time.Time) {
	mustRegister(registry, "hello", "Print a greeting",
		func(out io.Writer, args []string, ctx any) int {
			if len(args) > 1 {
				fmt.Fprintf(out, "Hello, %s!\r\n", args[1])
			} else {
				fmt.Fprint(out, "Hello, world!\r\n")
			}
			return 0
		}, nil)

	mustRegister(registry, "echo", "Echo arguments back",
		func(out io.Writer, args []string, ctx any) int {
			for i := 1; i < len(args); i++ {
				sep := " "
				if i == len(args)-1 {
					sep = ""
				}
				fmt.Fprintf(out, "%s%s", args[i], sep)
			}
			fmt.Fprint(out, "\r\n")
			return 0
		}, nil)

	mustRegister(registry, "add", "Add two integers: add <a> <b>",
		func(out io.Writer, args []string, ctx any) int {
			if len(args) != 3 {
				fmt.Fprint(out, "Usage: add <a> <b>\r\n")
				return -1
			}
			a, errA := strconv.Atoi(args[1])
			b, errB := strconv.Atoi(args[2])
			if errA != nil || errB != nil {
				fmt.Fprint(out, "Usage: add <a> <b>\r\n")
				return -1
			}
			fmt.Fprintf(out, "%d + %d = %d\r\n", a, b, a+b)
			return 0
		}, nil)

	mustRegister(registry, "uptime", "Show server uptime",
		func(out io.Writer, args []string, ctx any) int {
			fmt.Fprintf(out, "up %s\r\n", time.Since(startedAt).Round(time.Second))
			return 0
		}, nil)

	// Context pointer example: the counter is shared by all sessions.
	counter := &sessionCounter{}
	mustRegister(registry, "count", "Increment and show counter",
		func(out io.Writer, args []string, ctx any) int {
			c := ctx.(*sessionCounter)
			c.mu.Lock()
			c.value++
			v := c.value
			c.mu.Unlock()
			fmt.Fprintf(out, "Counter: %d\r\n", v)
			return 0
		}, counter)
}

type sessionCounter struct {
	mu    sync.Mutex
	value int32
}

func mustRegister(registry *command.Registry, name, desc string, fn command.HandlerFunc, ctx any) {
	if err := registry.Register(name, desc, fn, ctx); err != nil {
		log.Fatalf("Failed to register command %s: %v", name, err)
	}
}

func transcriptPath(logDir, sessionID string) string {
	return filepath.Join(logDir, sessionID+".cast")
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
	}
	return defaultValue
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

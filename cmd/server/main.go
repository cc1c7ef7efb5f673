package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"devportal/internal/config"
	"devportal/internal/domain/repositories"
	"devportal/internal/handler"
	"devportal/internal/middleware"
	"devportal/internal/mimetypes"
	"devportal/internal/repository/memory"
	"devportal/internal/repository/postgres"
	"devportal/internal/service"
	"devportal/internal/storage"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx := context.Background()

	// Wire repositories: Postgres when DATABASE_URL is set, otherwise the
	// in-memory backend (demo mode, nothing survives a restart)
	var nodeRepo repositories.NodeRepository
	var branchRepo repositories.BranchRepository
	var txManager repositories.TransactionManager

	if cfg.DatabaseURL != "" {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		logger.Info("database connected",
			"max_conns", 25,
			"min_conns", 5,
		)

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		}
		nodeRepo = postgres.NewNodeRepository(repoConfig)
		branchRepo = postgres.NewBranchRepository(repoConfig)
		txManager = postgres.NewTransactionManager(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using the in-memory backend")
		store := memory.NewStore()
		nodeRepo = memory.NewNodeRepository(store)
		branchRepo = memory.NewBranchRepository(store)
		txManager = memory.NewTransactionManager(store)
	}

	// Blob store: on-disk in both modes
	blobs := storage.NewOsStore(cfg.BlobDir)

	// MIME type registry (embedded YAML)
	mimeRegistry, err := mimetypes.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize MIME type registry: %v", err)
	}

	// Create services
	nodeService := service.NewNodeService(nodeRepo, blobs, mimeRegistry, txManager, logger)
	pathResolver := service.NewPathResolver(nodeRepo)
	branchService := service.NewBranchService(branchRepo, txManager, logger)
	clipboard := service.NewClipboard(nodeRepo, blobs, txManager, cfg.ClipboardTTL, logger)
	transcoder := service.NewArchiveTranscoder(nodeRepo, blobs, mimeRegistry, txManager, logger)

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	nodeHandler := handler.NewNodeHandler(nodeService, branchService, logger)
	treeHandler := handler.NewTreeHandler(nodeService, pathResolver, branchService, logger)
	containerHandler := handler.NewContainerHandler(nodeService, branchService, logger)
	clipboardHandler := handler.NewClipboardHandler(clipboard, logger)
	archiveHandler := handler.NewArchiveHandler(transcoder, nodeService, branchService, logger)
	branchHandler := handler.NewBranchHandler(branchService, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.Check)

	// Node routes
	mux.HandleFunc("POST /api/nodes/folder", nodeHandler.CreateFolder)
	mux.HandleFunc("POST /api/nodes/file", nodeHandler.UploadFile)
	mux.HandleFunc("GET /api/nodes/{id}", nodeHandler.GetNode)
	mux.HandleFunc("PATCH /api/nodes/{id}", nodeHandler.UpdateNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", nodeHandler.DeleteNode)
	mux.HandleFunc("POST /api/nodes/{id}/restore", nodeHandler.RestoreNode)
	mux.HandleFunc("GET /api/nodes/{id}/download", nodeHandler.DownloadNode)
	mux.HandleFunc("GET /api/nodes/{id}/compress", archiveHandler.Compress)

	// Path-addressed read surface
	mux.HandleFunc("GET /api/repositories/{id}/tree/{branch}", treeHandler.RepositoryTree)
	mux.HandleFunc("GET /api/repositories/{id}/tree/{branch}/{path...}", treeHandler.RepositoryTree)
	mux.HandleFunc("GET /api/repositories/{id}/blob/{branch}/{path...}", treeHandler.RepositoryBlob)
	mux.HandleFunc("GET /api/projects/{id}/tree", treeHandler.ProjectTree)
	mux.HandleFunc("GET /api/projects/{id}/tree/{path...}", treeHandler.ProjectTree)
	mux.HandleFunc("GET /api/projects/{id}/blob/{path...}", treeHandler.ProjectBlob)

	// Container-wide queries
	mux.HandleFunc("GET /api/containers/{type}/{id}/stats", containerHandler.Stats)
	mux.HandleFunc("GET /api/containers/{type}/{id}/search", containerHandler.Search)
	mux.HandleFunc("GET /api/containers/{type}/{id}/trash", containerHandler.Trash)
	mux.HandleFunc("POST /api/containers/{type}/{id}/decompress", archiveHandler.Decompress)

	// Clipboard routes
	mux.HandleFunc("POST /api/clipboard/copy", clipboardHandler.Copy)
	mux.HandleFunc("POST /api/clipboard/cut", clipboardHandler.Cut)
	mux.HandleFunc("POST /api/clipboard/paste", clipboardHandler.Paste)
	mux.HandleFunc("GET /api/clipboard", clipboardHandler.Status)
	mux.HandleFunc("DELETE /api/clipboard", clipboardHandler.Cancel)

	// Branch routes
	mux.HandleFunc("GET /api/repositories/{id}/branches", branchHandler.ListBranches)
	mux.HandleFunc("POST /api/repositories/{id}/branches", branchHandler.CreateBranch)
	mux.HandleFunc("GET /api/repositories/{id}/branches/{name}", branchHandler.GetBranch)
	mux.HandleFunc("PUT /api/repositories/{id}/branches/{name}/default", branchHandler.SetDefaultBranch)
	mux.HandleFunc("DELETE /api/repositories/{id}/branches/{name}", branchHandler.DeleteBranch)

	// Build middleware chain
	var root http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Identity → Routes
	root = middleware.Identity()(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // archive streams can be large
		IdleTimeout:  60 * time.Second,
	}

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

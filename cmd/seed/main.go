package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"devportal/internal/config"
	"devportal/internal/domain/models"
	"devportal/internal/domain/services"
	"devportal/internal/mimetypes"
	"devportal/internal/repository/postgres"
	"devportal/internal/service"
	"devportal/internal/storage"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed demo data")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: cannot run --drop-tables in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log.Printf("Preparing database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	log.Println("Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("Schema ready")

	if *schemaOnly {
		return
	}

	if err := seedDemoData(ctx, pool, tables, cfg, logger); err != nil {
		log.Fatalf("Failed to seed demo data: %v", err)
	}
	log.Println("Seeding complete")
}

func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	createBranches := `
		CREATE TABLE IF NOT EXISTS ` + tables.Branches + ` (
			id            TEXT PRIMARY KEY,
			repository_id TEXT NOT NULL,
			name          TEXT NOT NULL,
			description   TEXT,
			is_default    BOOLEAN NOT NULL DEFAULT FALSE,
			is_protected  BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (repository_id, name)
		)
	`
	if _, err := pool.Exec(ctx, createBranches); err != nil {
		return err
	}

	createNodes := `
		CREATE TABLE IF NOT EXISTS ` + tables.Nodes + ` (
			id             TEXT PRIMARY KEY,
			container_type TEXT NOT NULL CHECK (container_type IN ('project', 'repository')),
			container_id   TEXT NOT NULL,
			branch_id      TEXT REFERENCES ` + tables.Branches + `(id) ON DELETE CASCADE,
			parent_id      TEXT REFERENCES ` + tables.Nodes + `(id) ON DELETE CASCADE,
			name           TEXT NOT NULL,
			kind           TEXT NOT NULL CHECK (kind IN ('file', 'folder')),
			storage_ref    TEXT,
			mime_type      TEXT,
			byte_size      BIGINT NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at     TIMESTAMPTZ
		)
	`
	if _, err := pool.Exec(ctx, createNodes); err != nil {
		return err
	}

	indexes := []string{
		// One default branch per repository
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `branches_default ON ` +
			tables.Branches + `(repository_id) WHERE is_default`,
		// Sibling-name uniqueness among live nodes; NULL branch/parent
		// coalesce to a sentinel so root-level siblings collide too
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_sibling_name ON ` +
			tables.Nodes + `(container_type, container_id, COALESCE(branch_id, ''), COALESCE(parent_id, ''), name) WHERE deleted_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_scope_parent ON ` +
			tables.Nodes + `(container_type, container_id, branch_id, parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tablePrefix + `nodes_parent ON ` +
			tables.Nodes + `(parent_id)`,
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	for _, table := range []string{tables.Nodes, tables.Branches} {
		if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS `+table+` CASCADE`); err != nil {
			return err
		}
	}
	return nil
}

// seedDemoData creates a demo repository with a main branch and a small tree,
// going through the service layer so seeded rows obey the same rules as live
// traffic.
func seedDemoData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, cfg *config.Config, logger *slog.Logger) error {
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	nodeRepo := postgres.NewNodeRepository(repoConfig)
	branchRepo := postgres.NewBranchRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	mimeRegistry, err := mimetypes.NewRegistry()
	if err != nil {
		return err
	}
	blobs := storage.NewOsStore(cfg.BlobDir)

	branchService := service.NewBranchService(branchRepo, txManager, logger)
	nodeService := service.NewNodeService(nodeRepo, blobs, mimeRegistry, txManager, logger)

	repositoryID := getenvDefault("SEED_REPOSITORY_ID", "demo-repository")

	branch, err := branchService.GetBranch(ctx, repositoryID, "main")
	if err != nil {
		branch, err = branchService.CreateBranch(ctx, &services.CreateBranchRequest{
			RepositoryID: repositoryID,
			Name:         "main",
		})
		if err != nil {
			return err
		}
		log.Printf("Created branch 'main' for %s", repositoryID)
	}

	scope := nodeScope(repositoryID, branch.ID)

	docs, err := nodeService.CreateFolder(ctx, &services.CreateFolderRequest{
		Scope: scope,
		Name:  "docs",
	})
	if err != nil {
		log.Printf("Skipping folder 'docs': %v", err)
		return nil // already seeded
	}

	readme := "# Demo repository\n\nSeeded content for local development.\n"
	if _, err := nodeService.CreateFile(ctx, &services.CreateFileRequest{
		Scope:   scope,
		Name:    "README.md",
		Content: strings.NewReader(readme),
	}); err != nil {
		return err
	}
	if _, err := nodeService.CreateFile(ctx, &services.CreateFileRequest{
		Scope:    scope,
		ParentID: &docs.ID,
		Name:     "getting-started.md",
		Content:  strings.NewReader("# Getting started\n"),
	}); err != nil {
		return err
	}

	log.Printf("Seeded repository %s (branch main)", repositoryID)
	return nil
}

func nodeScope(repositoryID, branchID string) models.Scope {
	return models.Scope{
		ContainerType: models.ContainerRepository,
		ContainerID:   repositoryID,
		BranchID:      &branchID,
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

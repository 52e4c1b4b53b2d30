// Package main is the Kioku CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/ai"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/export"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/server"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/watcher"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kioku server" from the project dir uses the project's
// config (including debug). A .env file in the current directory is loaded
// first so OPENAI_API_KEY can live there during development.
func loadConfig(path string) (*config.Config, string, error) {
	_ = godotenv.Load()
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "export":
		runExport()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (requests, generation, watcher events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchOpts := []watcher.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	ing := components.Ingestor
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		func(path string) {
			if !extract.SupportedExt(filepath.Ext(path)) {
				logger.Debug("skipping unsupported drop-folder file", zap.String("path", path))
				return
			}
			if _, err := ing.IngestFile(context.Background(), cfg.Watch.DefaultUser, path); err != nil {
				logger.Warn("drop-folder ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 {
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Storage,
		components.Generator,
		components.Extractor,
		components.Ingestor,
		components.KeywordIndex,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	userID := fs.String("user", "", "owning user id (default: watch default user)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kioku ingest [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	owner := *userID
	if owner == "" {
		owner = cfg.Watch.DefaultUser
	}
	note, err := components.Ingestor.IngestFile(context.Background(), owner, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Note created: %s (%s)\n", note.ID, note.Title)
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: kioku export [flags] <note-id> <markdown|anki>")
		os.Exit(1)
	}
	noteID := fs.Arg(0)
	format := fs.Arg(1)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	note, err := store.GetNote(ctx, noteID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	cards, err := store.GetFlashcardsByNote(ctx, noteID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}

	var content, ext string
	switch format {
	case "markdown", "md":
		content = export.Markdown(note, cards)
		ext = "md"
	case "anki", "csv":
		content, err = export.AnkiCSV(note, cards)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
			os.Exit(1)
		}
		ext = "csv"
	default:
		fmt.Printf("Unknown export format %q; use markdown or anki\n", format)
		os.Exit(1)
	}
	filename, err := export.Write(cfg.Storage.ExportDir, note.Title, ext, content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported to %s\n", filepath.Join(cfg.Storage.ExportDir, filename))
}

// statusResponse is the shape of GET /api/status response.
type statusResponse struct {
	Notes          int64                  `json:"notes"`
	Flashcards     int64                  `json:"flashcards"`
	IndexedNotes   uint64                 `json:"indexed_notes,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		ctx := context.Background()
		noteCount, err := store.CountNotes(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count notes failed: %v\n", err)
			os.Exit(1)
		}
		cardCount, err := store.CountFlashcards(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count flashcards failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Notes:      noteCount,
			Flashcards: cardCount,
			Config: map[string]interface{}{
				"database_path": cfg.Storage.DatabasePath,
				"upload_dir":    cfg.Storage.UploadDir,
				"export_dir":    cfg.Storage.ExportDir,
			},
		}
		diskBytes, err := storage.DiskUsageBytes(
			cfg.Storage.DatabasePath,
			cfg.Storage.BleveIndexPath,
			cfg.Storage.UploadDir,
			cfg.Storage.ExportDir,
		)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("notes:             %d\n", status.Notes)
		fmt.Printf("flashcards:        %d\n", status.Flashcards)
		if status.IndexedNotes > 0 {
			fmt.Printf("indexed_notes:     %d\n", status.IndexedNotes)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:  %d\n", *status.DiskUsageBytes)
		}
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"database_path", "bleve_index_path", "upload_dir", "export_dir", "model"} {
				if val, ok := status.Config[key]; ok {
					fmt.Printf("%-18s %v\n", key+":", val)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Generator    ai.Generator
	Extractor    *extract.Extractor
	KeywordIndex keyword.Index
	Ingestor     *ingest.Ingestor
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	clientOpts := []ai.ClientOption{}
	if debug {
		clientOpts = append(clientOpts, ai.WithLogger(logger))
	}
	generator, err := ai.NewClient(&cfg.OpenAI, clientOpts...)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize generation client: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	extractor := extract.NewExtractor()
	ingestor := ingest.NewIngestor(extractor, generator, store, keywordIndex, logger)

	return &Components{
		Storage:      store,
		Generator:    generator,
		Extractor:    extractor,
		KeywordIndex: keywordIndex,
		Ingestor:     ingestor,
	}, nil
}

func printUsage() {
	fmt.Println(`kioku - PDF study notes and flashcards server

Usage:
  kioku server [flags]                       Start the HTTP API server
  kioku ingest [flags] <file>                Ingest a document into a note
  kioku export [flags] <note-id> <format>    Export a note (markdown or anki)
  kioku status [flags]                       Show storage/index status
  kioku version                              Show version
  kioku help                                 Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kioku/config.yaml)
  --debug            Enable debug logging (requests, generation, watcher events)

Ingest Flags:
  --config string    Config file path
  --user string      Owning user id (default: watch default user)

Export Flags:
  --config string    Config file path

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

The OpenAI API key is read from the OPENAI_API_KEY environment variable;
a .env file in the working directory is loaded if present.

Examples:
  kioku server
  kioku ingest --user alice lecture.pdf
  kioku export 9f1b3c1e-... markdown
  kioku status --output json`)
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MaxBatchSize caps the number of chunks handed to the document store in one call.
const MaxBatchSize = 50

// Store backends.
const (
	StoreQdrant = "qdrant"
	StoreSQLite = "sqlite"
)

// Embedding backends.
const (
	EmbeddingOllama = "ollama"
	EmbeddingOpenAI = "openai"
	EmbeddingLocal  = "local"
)

var (
	defaultExtensions = []string{
		".go", ".js", ".jsx", ".ts", ".tsx", ".sql", ".yml", ".yaml", ".json", ".toml",
		".env", ".conf", ".md", ".txt", ".sh", ".bash", ".html", ".css", ".scss",
		".py", ".rb", ".php", ".java", ".rs", ".cpp", ".c", ".h", ".hpp", ".cs",
		".swift", ".kt", ".jl",
	}
	defaultExcludeDirs = []string{
		".git", "__pycache__", "venv", "env", ".env", "dist", "build", ".next", "out",
		"coverage", ".vscode", ".idea", "node_modules", ".chroma_db", ".pytest_cache",
		".mypy_cache", ".ruff_cache", "target", "bin", "obj", "vendor",
	}
	defaultExcludeFiles = []string{
		"*.pyc", "*.pyo", "*.pyd", ".DS_Store", "Thumbs.db", "*.log", "*.lock",
		"*.bak", "*.swp", "*.swo", "*.tmp", "*.cache",
	}
)

// Config holds all configuration for the application.
type Config struct {
	ProjectRoot  string
	ChunkSize    int
	ChunkOverlap int
	Extensions   []string
	ExcludeDirs  []string
	ExcludeFiles []string
	IgnoreHidden bool
	Recursive    bool
	BatchSize    int

	StoreBackend   string
	QdrantURL      string
	CollectionName string
	DBPath         string

	EmbeddingBackend   string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingDimension int
	EmbeddingTimeout   time.Duration
	EmbeddingCacheSize int

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or one of its parents, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is like Load but reads envFile instead of searching for a .env file.
// An empty envFile falls back to the search.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		loadDotEnv()
	}

	cfg := &Config{
		ProjectRoot:        getEnv("PROJECT_ROOT", "."),
		Extensions:         normalizeExtensions(getEnvList("FILE_EXTENSIONS", defaultExtensions)),
		ExcludeDirs:        getEnvList("EXCLUDE_DIRS", defaultExcludeDirs),
		ExcludeFiles:       getEnvList("EXCLUDE_FILES", defaultExcludeFiles),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", StoreQdrant)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		CollectionName:     getEnv("COLLECTION_NAME", "code_rag"),
		DBPath:             getEnv("DB_PATH", "./data/coderag.db"),
		EmbeddingBackend:   strings.ToLower(getEnv("EMBEDDING_BACKEND", EmbeddingOllama)),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL", "mxbai-embed-large:335m"),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 100); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = getEnvInt("BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDimension, err = getEnvInt("EMBEDDING_DIMENSION", 1024); err != nil {
		return nil, err
	}
	if cfg.EmbeddingCacheSize, err = getEnvInt("EMBEDDING_CACHE_SIZE", 10000); err != nil {
		return nil, err
	}
	if cfg.IgnoreHidden, err = getEnvBool("IGNORE_HIDDEN", true); err != nil {
		return nil, err
	}
	if cfg.Recursive, err = getEnvBool("RECURSIVE", true); err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(getEnv("EMBEDDING_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_TIMEOUT must be a valid duration: %w", err)
	}
	cfg.EmbeddingTimeout = timeout

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.StoreBackend == StoreSQLite {
		dataDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be greater than 0")
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be greater than 0")
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("FILE_EXTENSIONS is required")
	}

	switch c.StoreBackend {
	case StoreQdrant, StoreSQLite:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreQdrant, StoreSQLite, c.StoreBackend)
	}
	switch c.EmbeddingBackend {
	case EmbeddingOllama, EmbeddingOpenAI, EmbeddingLocal:
	default:
		return fmt.Errorf("EMBEDDING_BACKEND must be one of ollama, openai, local, got %q", c.EmbeddingBackend)
	}

	root, err := filepath.Abs(c.ProjectRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve PROJECT_ROOT: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("PROJECT_ROOT %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("PROJECT_ROOT %s is not a directory", root)
	}
	c.ProjectRoot = root

	return nil
}

// loadDotEnv loads the nearest .env walking up from the working directory.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "VID2NEWS_CONFIG"
	envFilesEnv     = "VID2NEWS_ENV_FILES"
	logLevelEnv     = "LOG_LEVEL"
	openAIKeyEnv    = "OPENAI_API_KEY"
	openAIBaseEnv   = "OPENAI_BASE_URL"
	gristKeyEnv     = "GRIST_API_KEY"
	gristBaseEnv    = "GRIST_BASE_URL"
	databaseDSNEnv  = "DATABASE_DSN"
	storeBackendEnv = "VID2NEWS_STORE"
	redisAddrEnv    = "REDIS_ADDR"
	redisPassEnv    = "REDIS_PASSWORD"
	jwtSecretEnv    = "VID2NEWS_JWT_SECRET"
	serverAddrEnv   = "VID2NEWS_ADDR"
	artifactsDirEnv = "VID2NEWS_ARTIFACTS_DIR"
	workersEnv      = "VID2NEWS_WORKERS"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Server     ServerConfig     `yaml:"server"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Desks      []DeskConfig     `yaml:"desks"`
}

// LoggingConfig sets the slog level and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OpenAIConfig defines how to contact the OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL         string        `yaml:"baseUrl"`
	APIKey          string        `yaml:"apiKey"`
	ExtractionModel string        `yaml:"extractionModel"`
	SynthesisModel  string        `yaml:"synthesisModel"`
	AnalysisModel   string        `yaml:"analysisModel"`
	EmbeddingModel  string        `yaml:"embeddingModel"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"maxRetries"`
}

// FetchConfig bounds transcript collection per source.
type FetchConfig struct {
	Videos            int           `yaml:"videos"`
	ScanLimit         int           `yaml:"scanLimit"`
	Window            time.Duration `yaml:"window"`
	Languages         []string      `yaml:"languages"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Timeout           time.Duration `yaml:"timeout"`
	UserAgent         string        `yaml:"userAgent"`
}

// ExtractionConfig sizes the extraction worker pool.
type ExtractionConfig struct {
	Workers     int     `yaml:"workers"`
	Temperature float64 `yaml:"temperature"`
}

// ClusteringConfig carries projection and density parameters. OutlierDistance
// is the raw cosine distance past which an item with no closer neighbour is
// noise; a negative value disables that guard.
type ClusteringConfig struct {
	Neighbors       int     `yaml:"neighbors"`
	Components      int     `yaml:"components"`
	MinDist         float64 `yaml:"minDist"`
	Epochs          int     `yaml:"epochs"`
	Seed            int64   `yaml:"seed"`
	MinClusterSize  int     `yaml:"minClusterSize"`
	MinSamples      int     `yaml:"minSamples"`
	Metric          string  `yaml:"metric"`
	Selection       string  `yaml:"selection"`
	OutlierDistance float64 `yaml:"outlierDistance"`
}

// SynthesisConfig controls post writing.
type SynthesisConfig struct {
	Language    string  `yaml:"language"`
	Temperature float64 `yaml:"temperature"`
}

// AnalysisConfig controls automatic post review.
type AnalysisConfig struct {
	Temperature float64 `yaml:"temperature"`
}

// StoreConfig selects the review store backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Grist    GristConfig    `yaml:"grist"`
	Postgres PostgresConfig `yaml:"postgres"`
	Status   StatusConfig   `yaml:"status"`
}

// GristConfig describes the Grist REST endpoint.
type GristConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
}

// PostgresConfig describes the Postgres review store.
type PostgresConfig struct {
	DSN        string `yaml:"dsn"`
	Migrations string `yaml:"migrations"`
}

// StatusConfig overrides the literal status strings stored in rows.
type StatusConfig struct {
	PendingReview string `yaml:"pendingReview"`
	Approved      string `yaml:"approved"`
	Rejected      string `yaml:"rejected"`
	Published     string `yaml:"published"`
}

// CacheConfig wires the optional embedding cache.
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection details; empty Addr disables the cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// SchedulerConfig defines when each job runs.
type SchedulerConfig struct {
	Timezone string         `yaml:"timezone"`
	Generate string         `yaml:"generate"`
	Analyze  string         `yaml:"analyze"`
	Publish  string         `yaml:"publish"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ServerConfig describes the ops HTTP endpoint.
type ServerConfig struct {
	Address   string `yaml:"address"`
	JWTSecret string `yaml:"jwtSecret"`
}

// ArtifactsConfig sets where diagnostic cluster dumps go; empty disables them.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// DeskConfig is one editorial desk: its sources, review table and sink.
type DeskConfig struct {
	Name    string         `yaml:"name"`
	Videos  int            `yaml:"videos"`
	Sources []SourceConfig `yaml:"sources"`
	Table   TableConfig    `yaml:"table"`
	Sink    SinkConfig     `yaml:"sink"`
}

// SourceConfig describes a single channel with its scanner strategy.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Options map[string]string `yaml:"options"`
}

// TableConfig locates the desk's review table.
type TableConfig struct {
	Document string `yaml:"document"`
	Name     string `yaml:"name"`
}

// SinkConfig names the publisher and the env vars holding its credentials.
type SinkConfig struct {
	Type      string `yaml:"type"`
	TokenEnv  string `yaml:"tokenEnv"`
	TargetEnv string `yaml:"targetEnv"`
	BaseURL   string `yaml:"baseUrl"`
}

// Desk returns the desk with the given name.
func (c Config) Desk(name string) (DeskConfig, bool) {
	for _, d := range c.Desks {
		if d.Name == name {
			return d, true
		}
	}
	return DeskConfig{}, false
}

// Load reads .env files, YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit YAML path; empty falls back to VID2NEWS_CONFIG.
func LoadFrom(path string) Config {
	loadEnvFiles()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate reports settings a generation run cannot work without.
func (c Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s is not set", openAIKeyEnv))
	}
	switch c.Store.Backend {
	case "grist":
		if c.Store.Grist.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s is not set", gristKeyEnv))
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("%s is not set", databaseDSNEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if len(c.Desks) == 0 {
		errs = append(errs, errors.New("no desks configured"))
	}
	seen := map[string]bool{}
	for _, d := range c.Desks {
		if d.Name == "" {
			errs = append(errs, errors.New("desk without a name"))
			continue
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("desk %s is defined twice", d.Name))
		}
		seen[d.Name] = true
		if len(d.Sources) == 0 {
			errs = append(errs, fmt.Errorf("desk %s has no sources", d.Name))
		}
		if c.Store.Backend == "grist" && (d.Table.Document == "" || d.Table.Name == "") {
			errs = append(errs, fmt.Errorf("desk %s has no grist table", d.Name))
		}
	}
	return errors.Join(errs...)
}

func loadEnvFiles() {
	files := []string{".env"}
	if v := os.Getenv(envFilesEnv); v != "" {
		files = strings.Split(v, ",")
	}
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("config: cannot load %s: %v", f, err)
		}
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIBaseEnv); v != "" {
		c.OpenAI.BaseURL = v
	}

	if v := os.Getenv(storeBackendEnv); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv(gristKeyEnv); v != "" {
		c.Store.Grist.APIKey = v
	}
	if v := os.Getenv(gristBaseEnv); v != "" {
		c.Store.Grist.BaseURL = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Store.Postgres.DSN = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv(redisPassEnv); v != "" {
		c.Cache.Redis.Password = v
	}

	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv(serverAddrEnv); v != "" {
		c.Server.Address = v
	}
	if v := os.Getenv(artifactsDirEnv); v != "" {
		c.Artifacts.Dir = v
	}
	if v := os.Getenv(workersEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Extraction.Workers = n
		} else {
			log.Printf("config: ignoring invalid %s=%q", workersEnv, v)
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	mergeString(&base.OpenAI.BaseURL, override.OpenAI.BaseURL)
	mergeString(&base.OpenAI.APIKey, override.OpenAI.APIKey)
	mergeString(&base.OpenAI.ExtractionModel, override.OpenAI.ExtractionModel)
	mergeString(&base.OpenAI.SynthesisModel, override.OpenAI.SynthesisModel)
	mergeString(&base.OpenAI.AnalysisModel, override.OpenAI.AnalysisModel)
	mergeString(&base.OpenAI.EmbeddingModel, override.OpenAI.EmbeddingModel)
	if override.OpenAI.Timeout > 0 {
		base.OpenAI.Timeout = override.OpenAI.Timeout
	}
	if override.OpenAI.MaxRetries > 0 {
		base.OpenAI.MaxRetries = override.OpenAI.MaxRetries
	}

	if override.Fetch.Videos > 0 {
		base.Fetch.Videos = override.Fetch.Videos
	}
	if override.Fetch.ScanLimit > 0 {
		base.Fetch.ScanLimit = override.Fetch.ScanLimit
	}
	if override.Fetch.Window > 0 {
		base.Fetch.Window = override.Fetch.Window
	}
	if len(override.Fetch.Languages) > 0 {
		base.Fetch.Languages = override.Fetch.Languages
	}
	if override.Fetch.RequestsPerSecond > 0 {
		base.Fetch.RequestsPerSecond = override.Fetch.RequestsPerSecond
	}
	if override.Fetch.Timeout > 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	mergeString(&base.Fetch.UserAgent, override.Fetch.UserAgent)

	if override.Extraction.Workers > 0 {
		base.Extraction.Workers = override.Extraction.Workers
	}
	if override.Extraction.Temperature > 0 {
		base.Extraction.Temperature = override.Extraction.Temperature
	}

	if override.Clustering.Neighbors > 0 {
		base.Clustering.Neighbors = override.Clustering.Neighbors
	}
	if override.Clustering.Components > 0 {
		base.Clustering.Components = override.Clustering.Components
	}
	if override.Clustering.MinDist > 0 {
		base.Clustering.MinDist = override.Clustering.MinDist
	}
	if override.Clustering.Epochs > 0 {
		base.Clustering.Epochs = override.Clustering.Epochs
	}
	if override.Clustering.Seed != 0 {
		base.Clustering.Seed = override.Clustering.Seed
	}
	if override.Clustering.MinClusterSize > 0 {
		base.Clustering.MinClusterSize = override.Clustering.MinClusterSize
	}
	if override.Clustering.MinSamples > 0 {
		base.Clustering.MinSamples = override.Clustering.MinSamples
	}
	mergeString(&base.Clustering.Metric, override.Clustering.Metric)
	mergeString(&base.Clustering.Selection, override.Clustering.Selection)
	if override.Clustering.OutlierDistance != 0 {
		base.Clustering.OutlierDistance = override.Clustering.OutlierDistance
	}

	mergeString(&base.Synthesis.Language, override.Synthesis.Language)
	if override.Synthesis.Temperature > 0 {
		base.Synthesis.Temperature = override.Synthesis.Temperature
	}
	if override.Analysis.Temperature > 0 {
		base.Analysis.Temperature = override.Analysis.Temperature
	}

	mergeString(&base.Store.Backend, override.Store.Backend)
	mergeString(&base.Store.Grist.BaseURL, override.Store.Grist.BaseURL)
	mergeString(&base.Store.Grist.APIKey, override.Store.Grist.APIKey)
	mergeString(&base.Store.Postgres.DSN, override.Store.Postgres.DSN)
	mergeString(&base.Store.Postgres.Migrations, override.Store.Postgres.Migrations)
	mergeString(&base.Store.Status.PendingReview, override.Store.Status.PendingReview)
	mergeString(&base.Store.Status.Approved, override.Store.Status.Approved)
	mergeString(&base.Store.Status.Rejected, override.Store.Status.Rejected)
	mergeString(&base.Store.Status.Published, override.Store.Status.Published)

	mergeString(&base.Cache.Redis.Addr, override.Cache.Redis.Addr)
	mergeString(&base.Cache.Redis.Password, override.Cache.Redis.Password)
	mergeString(&base.Cache.Redis.Prefix, override.Cache.Redis.Prefix)
	if override.Cache.Redis.DB > 0 {
		base.Cache.Redis.DB = override.Cache.Redis.DB
	}
	if override.Cache.Redis.TTL > 0 {
		base.Cache.Redis.TTL = override.Cache.Redis.TTL
	}

	mergeString(&base.Scheduler.Timezone, override.Scheduler.Timezone)
	mergeString(&base.Scheduler.Generate, override.Scheduler.Generate)
	mergeString(&base.Scheduler.Analyze, override.Scheduler.Analyze)
	mergeString(&base.Scheduler.Publish, override.Scheduler.Publish)

	mergeString(&base.Server.Address, override.Server.Address)
	mergeString(&base.Server.JWTSecret, override.Server.JWTSecret)
	mergeString(&base.Artifacts.Dir, override.Artifacts.Dir)

	if len(override.Desks) > 0 {
		base.Desks = override.Desks
	}

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		OpenAI: OpenAIConfig{
			BaseURL:         "https://api.openai.com/v1",
			ExtractionModel: "gpt-4o",
			SynthesisModel:  "gpt-4o-mini",
			AnalysisModel:   "gpt-4o-mini",
			EmbeddingModel:  "text-embedding-3-small",
			Timeout:         90 * time.Second,
			MaxRetries:      3,
		},
		Fetch: FetchConfig{
			Videos:            5,
			ScanLimit:         100,
			Window:            24 * time.Hour,
			Languages:         []string{"en"},
			RequestsPerSecond: 2,
			Timeout:           20 * time.Second,
			UserAgent:         "Mozilla/5.0 (compatible; Vid2News/1.0)",
		},
		Extraction: ExtractionConfig{Workers: 8},
		Clustering: ClusteringConfig{
			Neighbors:       5,
			Components:      10,
			Seed:            42,
			MinClusterSize:  2,
			MinSamples:      1,
			Metric:          "euclidean",
			Selection:       "eom",
			OutlierDistance: 0.6,
		},
		Synthesis: SynthesisConfig{Language: "Polish", Temperature: 0.5},
		Store: StoreConfig{
			Backend: "grist",
			Grist: GristConfig{
				BaseURL: "https://docs.getgrist.com/api",
			},
			Postgres: PostgresConfig{Migrations: "file://migrations"},
			Status: StatusConfig{
				PendingReview: "pending-review",
				Approved:      "approved",
				Rejected:      "rejected",
				Published:     "published",
			},
		},
		Cache: CacheConfig{Redis: RedisConfig{TTL: 7 * 24 * time.Hour, Prefix: "vid2news:emb"}},
		Scheduler: SchedulerConfig{
			Timezone: defaultTimezone,
			Generate: "0 6 * * *",
			Analyze:  "30 6 * * *",
			Publish:  "0 9-21/3 * * *",
			location: tz,
		},
		Server: ServerConfig{Address: ":8080"},
		Desks: []DeskConfig{
			{
				Name: "geopolitics",
				Sources: []SourceConfig{
					{Name: "CaspianReport", Scanner: "youtube", URL: "https://www.youtube.com/@CaspianReport"},
					{Name: "ZeihanonGeopolitics", Scanner: "youtube", URL: "https://www.youtube.com/@ZeihanonGeopolitics"},
					{Name: "PBoyle", Scanner: "youtube", URL: "https://www.youtube.com/@PBoyle"},
				},
				Table: TableConfig{Name: "Geopolitics"},
				Sink:  SinkConfig{Type: "facebook", TokenEnv: "FB_PAGE_TOKEN", TargetEnv: "FB_PAGE_ID"},
			},
		},
	}
}

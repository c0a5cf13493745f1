package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"gitlab.ozon.dev/pupkingeorgij/parceltrack/internal/db"
)

const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Storage StorageConfig `toml:"storage"`
	Uploads UploadsConfig `toml:"uploads"`
	Kafka   KafkaConfig   `toml:"kafka"`
	Audit   AuditConfig   `toml:"audit"`
	Logging LoggingConfig `toml:"logging"`
}

type HTTPConfig struct {
	Port      string
	PublicDir string
}

type StorageConfig struct {
	Backend  string
	File     string
	Postgres db.ConnConfig
}

type UploadsConfig struct {
	Dir       string
	URLPrefix string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type AuditConfig struct {
	Workers      int
	BatchSize    int
	FlushTimeout time.Duration
}

type LoggingConfig struct {
	Level     string
	File      string
	MaxSizeMB int
	MaxFiles  int
}

type LoadOptions struct {
	ConfigPath string
	EnvFile    string
	// Env replaces the process environment when non-nil.
	Env   map[string]string
	Flags FlagOverrides
}

type FlagOverrides struct {
	Port     *string
	Backend  *string
	DataFile *string
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:      "3000",
			PublicDir: "public",
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			File:    "packages.json",
			Postgres: db.ConnConfig{
				Host: "localhost",
				Port: 5432,
				User: "postgres",
				Name: "parceltrack",
			},
		},
		Uploads: UploadsConfig{
			Dir:       "public/uploads",
			URLPrefix: "/uploads",
		},
		Kafka: KafkaConfig{
			Topic:   "package_events",
			GroupID: "package-events-consumer-group",
		},
		Audit: AuditConfig{
			Workers:      2,
			BatchSize:    5,
			FlushTimeout: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load layers defaults, the TOML file, the .env file, the environment and
// finally command line flags, later sources winning.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if err := loadFile(opts.ConfigPath, &cfg); err != nil {
		return Config{}, err
	}

	dotenv, err := readDotenv(opts.EnvFile)
	if err != nil {
		return Config{}, err
	}
	lookup := func(key string) (string, bool) {
		if opts.Env != nil {
			if v, ok := opts.Env[key]; ok {
				return v, true
			}
		} else if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	applyFlags(&cfg, opts.Flags)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type rawConfig struct {
	HTTP *struct {
		Port      *string `toml:"port"`
		PublicDir *string `toml:"public_dir"`
	} `toml:"http"`
	Storage *struct {
		Backend  *string `toml:"backend"`
		File     *string `toml:"file"`
		Postgres *struct {
			Host     *string `toml:"host"`
			Port     *int    `toml:"port"`
			User     *string `toml:"user"`
			Password *string `toml:"password"`
			Name     *string `toml:"name"`
		} `toml:"postgres"`
	} `toml:"storage"`
	Uploads *struct {
		Dir       *string `toml:"dir"`
		URLPrefix *string `toml:"url_prefix"`
	} `toml:"uploads"`
	Kafka *struct {
		Brokers []string `toml:"brokers"`
		Topic   *string  `toml:"topic"`
		GroupID *string  `toml:"group_id"`
	} `toml:"kafka"`
	Audit *struct {
		Workers      *int    `toml:"workers"`
		BatchSize    *int    `toml:"batch_size"`
		FlushTimeout *string `toml:"flush_timeout"`
	} `toml:"audit"`
	Logging *struct {
		Level     *string `toml:"level"`
		File      *string `toml:"file"`
		MaxSizeMB *int    `toml:"max_size_mb"`
		MaxFiles  *int    `toml:"max_files"`
	} `toml:"logging"`
}

func loadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parse TOML file %q: %v", ErrInvalidConfig, path, err)
	}

	if r := raw.HTTP; r != nil {
		setString(r.Port, &cfg.HTTP.Port)
		setString(r.PublicDir, &cfg.HTTP.PublicDir)
	}
	if r := raw.Storage; r != nil {
		setString(r.Backend, &cfg.Storage.Backend)
		setString(r.File, &cfg.Storage.File)
		if pg := r.Postgres; pg != nil {
			setString(pg.Host, &cfg.Storage.Postgres.Host)
			setInt(pg.Port, &cfg.Storage.Postgres.Port)
			setString(pg.User, &cfg.Storage.Postgres.User)
			setString(pg.Password, &cfg.Storage.Postgres.Password)
			setString(pg.Name, &cfg.Storage.Postgres.Name)
		}
	}
	if r := raw.Uploads; r != nil {
		setString(r.Dir, &cfg.Uploads.Dir)
		setString(r.URLPrefix, &cfg.Uploads.URLPrefix)
	}
	if r := raw.Kafka; r != nil {
		if r.Brokers != nil {
			cfg.Kafka.Brokers = r.Brokers
		}
		setString(r.Topic, &cfg.Kafka.Topic)
		setString(r.GroupID, &cfg.Kafka.GroupID)
	}
	if r := raw.Audit; r != nil {
		setInt(r.Workers, &cfg.Audit.Workers)
		setInt(r.BatchSize, &cfg.Audit.BatchSize)
		if r.FlushTimeout != nil {
			d, err := time.ParseDuration(*r.FlushTimeout)
			if err != nil {
				return fmt.Errorf("%w: parse audit.flush_timeout: %v", ErrInvalidConfig, err)
			}
			cfg.Audit.FlushTimeout = d
		}
	}
	if r := raw.Logging; r != nil {
		setString(r.Level, &cfg.Logging.Level)
		setString(r.File, &cfg.Logging.File)
		setInt(r.MaxSizeMB, &cfg.Logging.MaxSizeMB)
		setInt(r.MaxFiles, &cfg.Logging.MaxFiles)
	}
	return nil
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: read env file %q: %v", ErrInvalidConfig, path, err)
	}
	return values, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":              &cfg.HTTP.Port,
		"PUBLIC_DIR":        &cfg.HTTP.PublicDir,
		"STORAGE_BACKEND":   &cfg.Storage.Backend,
		"DATA_FILE":         &cfg.Storage.File,
		"DB_HOST":           &cfg.Storage.Postgres.Host,
		"POSTGRES_USER":     &cfg.Storage.Postgres.User,
		"POSTGRES_PASSWORD": &cfg.Storage.Postgres.Password,
		"POSTGRES_DB":       &cfg.Storage.Postgres.Name,
		"UPLOAD_DIR":        &cfg.Uploads.Dir,
		"UPLOAD_URL_PREFIX": &cfg.Uploads.URLPrefix,
		"KAFKA_TOPIC":       &cfg.Kafka.Topic,
		"KAFKA_GROUP_ID":    &cfg.Kafka.GroupID,
		"LOG_LEVEL":         &cfg.Logging.Level,
		"LOG_FILE":          &cfg.Logging.File,
	}
	for key, target := range strs {
		if v, ok := lookup(key); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"DB_PORT":          &cfg.Storage.Postgres.Port,
		"AUDIT_WORKERS":    &cfg.Audit.Workers,
		"AUDIT_BATCH_SIZE": &cfg.Audit.BatchSize,
		"LOG_MAX_SIZE_MB":  &cfg.Logging.MaxSizeMB,
		"LOG_MAX_FILES":    &cfg.Logging.MaxFiles,
	}
	for key, target := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
		}
		*target = parsed
	}

	if v, ok := lookup("AUDIT_FLUSH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: parse AUDIT_FLUSH_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		cfg.Audit.FlushTimeout = d
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	return nil
}

func applyFlags(cfg *Config, flags FlagOverrides) {
	setString(flags.Port, &cfg.HTTP.Port)
	setString(flags.Backend, &cfg.Storage.Backend)
	setString(flags.DataFile, &cfg.Storage.File)
}

func validate(cfg Config) error {
	switch cfg.Storage.Backend {
	case BackendFile:
		if cfg.Storage.File == "" {
			return fmt.Errorf("%w: storage.file must be set for the file backend", ErrInvalidConfig)
		}
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, cfg.Storage.Backend)
	}
	if cfg.HTTP.Port == "" {
		return fmt.Errorf("%w: http.port must be set", ErrInvalidConfig)
	}
	if cfg.Audit.Workers <= 0 || cfg.Audit.BatchSize <= 0 || cfg.Audit.FlushTimeout <= 0 {
		return fmt.Errorf("%w: audit workers, batch size and flush timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(raw *string, target *string) {
	if raw != nil {
		*target = *raw
	}
}

func setInt(raw *int, target *int) {
	if raw != nil {
		*target = *raw
	}
}

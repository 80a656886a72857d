// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the local estado clave,
// blob storage buckets, and the outbound retry policy.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "exhorto-interchange")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig defines the Google Cloud Storage buckets used per document
// category. Archivos of exhortos, respuestas and promociones each land in
// their own bucket so retention policies can differ.
type StorageConfig struct {
	CredentialsFile   string // GCS_CREDENTIALS_FILE (empty uses ADC)
	BucketExhortos    string // GCS_BUCKET_EXHORTOS
	BucketRespuestas  string // GCS_BUCKET_RESPUESTAS
	BucketPromociones string // GCS_BUCKET_PROMOCIONES
}

// InterchangeConfig holds the knobs of the peer-to-peer protocol: the clave
// INEGI of the estado this peer serves, HTTP timeouts and the retry policy
// applied by the task runner to outbound sends.
type InterchangeConfig struct {
	EstadoClave       string        // ESTADO_CLAVE, e.g. "05" for Coahuila
	RequestTimeout    time.Duration // EXH_REQUEST_TIMEOUT per remote HTTP call
	MaxSendAttempts   int           // EXH_MAX_SEND_ATTEMPTS before INTENTOS AGOTADOS
	RetryDelay        time.Duration // EXH_RETRY_DELAY between attempts
	FileUploadPause   time.Duration // EXH_FILE_UPLOAD_PAUSE between exhorto/respuesta archivos
	PromocionPause    time.Duration // EXH_PROMOCION_PAUSE between promocion archivos
	ResendCronSpec    string        // EXH_RESEND_CRON for the periodic POR ENVIAR scan
	LocalTimezone     string        // EXH_TIMEZONE, IANA name for wire timestamps
	TaskWorkers       int           // EXH_TASK_WORKERS bounded worker pool size
	TaskQueueCapacity int           // EXH_TASK_QUEUE_CAPACITY pending job slots
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 90s (file uploads)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for the operator API routes

	// App
	DBPath string // SQLite path

	// Rate limiting (operator API only; peer endpoints are not limited)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Domain
	Interchange InterchangeConfig
	Storage     StorageConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "eie.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Domain
		Interchange: InterchangeConfig{
			EstadoClave:       getenv("ESTADO_CLAVE", ""),
			RequestTimeout:    getdur("EXH_REQUEST_TIMEOUT", 60*time.Second),
			MaxSendAttempts:   getint("EXH_MAX_SEND_ATTEMPTS", 3),
			RetryDelay:        getdur("EXH_RETRY_DELAY", 60*time.Second),
			FileUploadPause:   getdur("EXH_FILE_UPLOAD_PAUSE", 2*time.Second),
			PromocionPause:    getdur("EXH_PROMOCION_PAUSE", time.Second),
			ResendCronSpec:    getenv("EXH_RESEND_CRON", "@every 5m"),
			LocalTimezone:     getenv("EXH_TIMEZONE", "America/Mexico_City"),
			TaskWorkers:       getint("EXH_TASK_WORKERS", 4),
			TaskQueueCapacity: getint("EXH_TASK_QUEUE_CAPACITY", 256),
		},
		Storage: StorageConfig{
			CredentialsFile:   getenv("GCS_CREDENTIALS_FILE", ""),
			BucketExhortos:    getenv("GCS_BUCKET_EXHORTOS", ""),
			BucketRespuestas:  getenv("GCS_BUCKET_RESPUESTAS", ""),
			BucketPromociones: getenv("GCS_BUCKET_PROMOCIONES", ""),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "exhorto-interchange"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if strings.TrimSpace(cfg.Interchange.EstadoClave) == "" {
		return cfg, errors.New("ESTADO_CLAVE must not be empty")
	}
	if cfg.Interchange.RequestTimeout <= 0 {
		return cfg, errors.New("EXH_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.Interchange.MaxSendAttempts < 1 {
		return cfg, errors.New("EXH_MAX_SEND_ATTEMPTS must be >= 1")
	}
	if cfg.Interchange.RetryDelay < 0 || cfg.Interchange.FileUploadPause < 0 || cfg.Interchange.PromocionPause < 0 {
		return cfg, errors.New("retry and pause delays must be >= 0")
	}
	if cfg.Interchange.TaskWorkers < 1 {
		return cfg, errors.New("EXH_TASK_WORKERS must be >= 1")
	}
	if cfg.Interchange.TaskQueueCapacity < 1 {
		return cfg, errors.New("EXH_TASK_QUEUE_CAPACITY must be >= 1")
	}
	if _, err := time.LoadLocation(cfg.Interchange.LocalTimezone); err != nil {
		return cfg, errors.New("EXH_TIMEZONE must be a valid IANA timezone name")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

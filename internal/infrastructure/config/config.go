package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 儲存 HTTP API、CLI 及外部相依的執行設定。
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Data    DataConfig    `yaml:"data"`
	Engine  EngineConfig  `yaml:"engine"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DBConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int           `yaml:"max_idle_conns" validate:"gte=0"`
	MaxIdleTime  time.Duration `yaml:"max_idle_time"`
}

// RedisConfig 為序列快取設定；Addr 為空時不啟用快取。
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	TokenTTL time.Duration `yaml:"token_ttl"`
	Secret   string        `yaml:"secret" validate:"required,min=8"`
	// Clients 為可換取 token 的用戶端；secret_hash 為 bcrypt 雜湊
	Clients []ClientConfig `yaml:"clients" validate:"dive"`
}

type ClientConfig struct {
	ID         string `yaml:"id" validate:"required"`
	SecretHash string `yaml:"secret_hash" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"startswith=/"`
}

// DataConfig 指定序列來源；未設定 DB DSN 時由 CSVDir 載入記憶體。
type DataConfig struct {
	CSVDir string `yaml:"csv_dir"`
}

// EngineConfig 為分析引擎的參數。
type EngineConfig struct {
	Lookback     int              `yaml:"lookback" validate:"gte=252"`
	HistoryLimit int              `yaml:"history_limit" validate:"gte=0"`
	Horizons     []int            `yaml:"horizons" validate:"min=1,dive,gt=0"`
	MinSamples   int              `yaml:"min_samples" validate:"gt=0"`
	RelaxFactor  float64          `yaml:"relax_factor" validate:"gte=1"`
	Workers      int              `yaml:"workers" validate:"gt=0,lte=64"`
	Tolerances   ToleranceConfig  `yaml:"tolerances"`
	Sizing       SizingConfig     `yaml:"sizing"`
	Regime       RegimeConfig     `yaml:"regime"`
}

type ToleranceConfig struct {
	Price       float64 `yaml:"price" validate:"gte=0"`
	VolumeRatio float64 `yaml:"volume_ratio" validate:"gte=0"`
	RSI         float64 `yaml:"rsi" validate:"gte=0,lte=100"`
	High52w     float64 `yaml:"high_52w" validate:"gte=0"`
	Valuation   float64 `yaml:"valuation" validate:"gte=0,lte=1"`
}

type SizingConfig struct {
	VarianceProxy float64 `yaml:"variance_proxy" validate:"gt=0"`
	VarianceFloor float64 `yaml:"variance_floor" validate:"gt=0"`
	LowConfidence float64 `yaml:"low_confidence" validate:"gte=0,lte=1"`
}

// RegimeConfig 覆寫各標籤的倉位係數與各市場的權重表；未設定者使用內建預設。
type RegimeConfig struct {
	Factors map[string]float64            `yaml:"factors" validate:"dive,gt=0"`
	Weights map[string]map[string]float64 `yaml:"weights"`
}

// LoadFromFile 從 YAML 組態檔載入設定。
func LoadFromFile(path string) (Config, error) {
	// 嘗試載入 .env 檔案（如果存在）
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg = applyDefaults(cfg)
	cfg, err = applyEnv(cfg)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 依 struct tag 檢查設定值。
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyDefaults(cfg Config) Config {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 5
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 2
	}
	if cfg.DB.MaxIdleTime == 0 {
		cfg.DB.MaxIdleTime = 15 * time.Minute
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 10 * time.Minute
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 30 * time.Minute
	}
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = "dev-secret-change-me"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	e := &cfg.Engine
	if e.Lookback == 0 {
		e.Lookback = 260
	}
	if len(e.Horizons) == 0 {
		e.Horizons = []int{5, 10, 20, 60}
	}
	if e.MinSamples == 0 {
		e.MinSamples = 10
	}
	if e.RelaxFactor == 0 {
		e.RelaxFactor = 1.5
	}
	if e.Workers == 0 {
		e.Workers = 4
	}
	// 各容忍度獨立補預設；0 視為未設定
	t := &e.Tolerances
	if t.Price == 0 {
		t.Price = 0.05
	}
	if t.VolumeRatio == 0 {
		t.VolumeRatio = 0.30
	}
	if t.RSI == 0 {
		t.RSI = 15
	}
	if t.High52w == 0 {
		t.High52w = 0.15
	}
	if t.Valuation == 0 {
		t.Valuation = 0.20
	}
	if e.Sizing.VarianceProxy == 0 {
		e.Sizing.VarianceProxy = 0.04
	}
	if e.Sizing.VarianceFloor == 0 {
		e.Sizing.VarianceFloor = 1e-4
	}
	if e.Sizing.LowConfidence == 0 {
		e.Sizing.LowConfidence = 0.3
	}
	return cfg
}

func applyEnv(cfg Config) (Config, error) {
	if val := os.Getenv("HTTP_ADDR"); val != "" {
		cfg.HTTP.Addr = val
	}
	if val := os.Getenv("PORT"); val != "" {
		cfg.HTTP.Addr = ":" + val
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.DB.DSN = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("AUTH_SECRET"); val != "" {
		cfg.Auth.Secret = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
	if val := os.Getenv("DATA_CSV_DIR"); val != "" {
		cfg.Data.CSVDir = val
	}
	if err := envInt("ENGINE_WORKERS", &cfg.Engine.Workers); err != nil {
		return cfg, err
	}
	if err := envInt("ENGINE_MIN_SAMPLES", &cfg.Engine.MinSamples); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envInt 讀取整數環境變數；未設定時不變更 dst。
func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("invalid %s %q: must be an integer", key, val)
	}
	*dst = n
	return nil
}

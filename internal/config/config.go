package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	// DataDir 相对路径（sqlite 文件、索引、清单）的根目录
	DataDir string `toml:"dataDir"`
}

type DatabaseConfig struct {
	// Dialect sqlite | mysql | postgres
	Dialect      string `toml:"dialect"`
	Path         string `toml:"path"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
	SSLMode      string `toml:"sslMode"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
	Console    bool   `toml:"console"`
}

type CrawlConfig struct {
	MetBaseURL     string  `toml:"metBaseURL"`
	LouvreBaseURL  string  `toml:"louvreBaseURL"`
	CookiePath     string  `toml:"cookiePath"`
	UserAgent      string  `toml:"userAgent"`
	MaxInflight    int     `toml:"maxInflight"`
	RatePerSecond  float64 `toml:"ratePerSecond"`
	TimeoutSeconds int     `toml:"timeoutSeconds"`
	ProgressEvery  int     `toml:"progressEvery"`
	Cron           string  `toml:"cron"`
}

type IngestConfig struct {
	ShardGlob string `toml:"shardGlob"`
	BatchSize int    `toml:"batchSize"`
}

type EmbeddingConfig struct {
	// Provider mock | http
	Provider       string `toml:"provider"`
	Endpoint       string `toml:"endpoint"`
	APIKey         string `toml:"apiKey"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	ImageSize      int    `toml:"imageSize"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type IndexConfig struct {
	ArtifactPath    string `toml:"artifactPath"`
	NProbe          int    `toml:"nprobe"`
	TrainIterations int    `toml:"trainIterations"`
	TrainPerList    int    `toml:"trainPerList"`
	Seed            int64  `toml:"seed"`
	ScanPageSize    int    `toml:"scanPageSize"`
}

type StorageConfig struct {
	// Backend local | s3
	Backend   string `toml:"backend"`
	LocalRoot string `toml:"localRoot"`
	Bucket    string `toml:"bucket"`
	Prefix    string `toml:"prefix"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	PathStyle bool   `toml:"pathStyle"`
}

type QueryConfig struct {
	DefaultLimit int `toml:"defaultLimit"`
	MaxLimit     int `toml:"maxLimit"`
}

type CorsConfig struct {
	AllowOrigins []string `toml:"allowOrigins"`
	ForceTLS     bool     `toml:"forceTLS"`
}

type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	ClientID    string   `toml:"clientID"`
	CrawlTopic  string   `toml:"crawlTopic"`
	Partitions  int32    `toml:"partitions"`
	Replication int16    `toml:"replication"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
	TTLSeconds   int    `toml:"ttlSeconds"`
}

type MetricsConfig struct {
	// Addr 仅用于非 serve 的常驻进程（如 crawl --cron），serve 直接挂在 gin 上
	Addr string `toml:"addr"`
}

type Config struct {
	MainConfig      `toml:"mainConfig"`
	DatabaseConfig  `toml:"databaseConfig"`
	LogConfig       `toml:"logConfig"`
	CrawlConfig     `toml:"crawlConfig"`
	IngestConfig    `toml:"ingestConfig"`
	EmbeddingConfig `toml:"embeddingConfig"`
	IndexConfig     `toml:"indexConfig"`
	StorageConfig   `toml:"storageConfig"`
	QueryConfig     `toml:"queryConfig"`
	CorsConfig      `toml:"corsConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	RedisConfig     `toml:"redisConfig"`
	MetricsConfig   `toml:"metricsConfig"`
}

// Load 读取 TOML 配置并补齐默认值。path 为空时只返回默认配置
func Load(path string) (*Config, error) {
	conf := new(Config)
	if p := strings.TrimSpace(path); p != "" {
		if _, err := toml.DecodeFile(p, conf); err != nil {
			return nil, fmt.Errorf("load config %s: %w", p, err)
		}
	}
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Default 返回全默认配置（测试与本地工具使用）
func Default() *Config {
	conf := new(Config)
	conf.applyDefaults()
	return conf
}

func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "ArtSeek"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}

	if c.Dialect == "" {
		c.Dialect = "sqlite"
	}
	if c.Dialect == "sqlite" && c.DatabaseConfig.Path == "" {
		c.DatabaseConfig.Path = c.DataDir + "/collections.db"
	}

	if c.MetBaseURL == "" {
		c.MetBaseURL = "https://collectionapi.metmuseum.org"
	}
	if c.LouvreBaseURL == "" {
		c.LouvreBaseURL = "https://collections.louvre.fr"
	}
	if c.UserAgent == "" {
		c.UserAgent = "ArtSeek-crawler/1.0"
	}
	if c.MaxInflight <= 0 {
		c.MaxInflight = 50
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 80
	}
	if c.CrawlConfig.TimeoutSeconds <= 0 {
		c.CrawlConfig.TimeoutSeconds = 30
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 100
	}

	if c.ShardGlob == "" {
		c.ShardGlob = c.DataDir + "/images/*.tar"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}

	if c.Provider == "" {
		c.Provider = "mock"
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 1152
	}
	if c.ImageSize <= 0 {
		c.ImageSize = 384
	}
	if c.EmbeddingConfig.TimeoutSeconds <= 0 {
		c.EmbeddingConfig.TimeoutSeconds = 120
	}

	if c.ArtifactPath == "" {
		c.ArtifactPath = "index.ivf"
	}
	if c.NProbe <= 0 {
		c.NProbe = 16
	}
	if c.TrainIterations <= 0 {
		c.TrainIterations = 20
	}
	if c.TrainPerList <= 0 {
		c.TrainPerList = 256
	}
	if c.Seed == 0 {
		c.Seed = 1234
	}
	if c.ScanPageSize <= 0 {
		c.ScanPageSize = 2048
	}

	if c.Backend == "" {
		c.Backend = "local"
	}
	if c.LocalRoot == "" {
		c.LocalRoot = c.DataDir
	}

	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 20
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 200
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"http://localhost:3000"}
	}

	if c.ClientID == "" {
		c.ClientID = "artseek"
	}
	if c.CrawlTopic == "" {
		c.CrawlTopic = "artseek.crawl"
	}
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 600
	}
}

// Validate 校验互斥/必填项
func (c *Config) Validate() error {
	switch c.Dialect {
	case "sqlite":
	case "mysql", "postgres":
		if strings.TrimSpace(c.DatabaseConfig.Host) == "" || strings.TrimSpace(c.DatabaseName) == "" {
			return fmt.Errorf("databaseConfig: %s requires host and databaseName", c.Dialect)
		}
	default:
		return fmt.Errorf("databaseConfig: unknown dialect %q", c.Dialect)
	}
	switch c.Backend {
	case "local":
	case "s3":
		if strings.TrimSpace(c.Bucket) == "" {
			return errors.New("storageConfig: s3 backend requires bucket")
		}
	default:
		return fmt.Errorf("storageConfig: unknown backend %q", c.Backend)
	}
	switch c.Provider {
	case "mock":
	case "http":
		if strings.TrimSpace(c.EmbeddingConfig.Endpoint) == "" {
			return errors.New("embeddingConfig: http provider requires endpoint")
		}
	default:
		return fmt.Errorf("embeddingConfig: unknown provider %q", c.Provider)
	}
	if c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("queryConfig: defaultLimit %d exceeds maxLimit %d", c.DefaultLimit, c.MaxLimit)
	}
	return nil
}

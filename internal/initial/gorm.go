package initial

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ArtSeek/internal/config"
	catalogEntity "ArtSeek/internal/modules/catalog/domain/entity"
	visionEntity "ArtSeek/internal/modules/vision/domain/entity"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBOptions 打开数据库时的行为开关
type DBOptions struct {
	// Migrate 为 true 时执行 AutoMigrate（写侧命令使用）
	Migrate bool
	// MustExist 为 true 时 sqlite 文件不存在直接报错（serve 启动时使用，避免静默建空库）
	MustExist bool
}

// NewGormDB 按配置打开数据库。返回的 *gorm.DB 由调用方持有并显式传递，不做全局单例
func NewGormDB(conf *config.Config, opts DBOptions) (*gorm.DB, error) {
	if conf == nil {
		return nil, errors.New("nil config")
	}
	dialector, err := newDialector(conf, opts)
	if err != nil {
		return nil, err
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	if opts.Migrate {
		// 顺序有意义：embedding 外键引用 artwork
		if err := db.AutoMigrate(
			&catalogEntity.Artwork{},
			&visionEntity.Embedding{},
		); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func newDialector(conf *config.Config, opts DBOptions) (gorm.Dialector, error) {
	dbc := conf.DatabaseConfig
	switch strings.ToLower(strings.TrimSpace(dbc.Dialect)) {
	case "", "sqlite":
		path := strings.TrimSpace(dbc.Path)
		if path == "" {
			return nil, errors.New("sqlite path is empty")
		}
		if opts.MustExist {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("sqlite database %s: %w", path, err)
			}
		} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		// WAL 允许单写者事务期间并发读
		dsn := fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on", path)
		return sqlite.Open(dsn), nil
	case "mysql":
		port := dbc.Port
		if port == 0 {
			port = 3306
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", dbc.User, dbc.Password, dbc.Host, port, dbc.DatabaseName)
		return mysql.Open(dsn), nil
	case "postgres":
		port := dbc.Port
		if port == 0 {
			port = 5432
		}
		sslMode := strings.TrimSpace(dbc.SSLMode)
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", dbc.Host, port, dbc.User, dbc.Password, dbc.DatabaseName, sslMode)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown database dialect: %s", dbc.Dialect)
	}
}

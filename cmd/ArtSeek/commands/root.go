package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"ArtSeek/internal/config"
	"ArtSeek/internal/initial"
	"ArtSeek/pkg/zlog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	configPath string
	conf       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ArtSeek",
	Short: "Museum catalog crawler, image embedding index and similarity search service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		conf = c
		return zlog.Init(zlog.Options{
			LogPath:    c.LogPath,
			Level:      c.Level,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Console:    c.Console,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		zlog.Sync()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML config (defaults only when empty)")
	rootCmd.AddCommand(crawlCmd, extractCmd, ingestCmd, indexCmd, serveCmd)
}

// signalContext SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func openDB(opts initial.DBOptions) (*gorm.DB, func(), error) {
	db, err := initial.NewGormDB(conf, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeFn, nil
}

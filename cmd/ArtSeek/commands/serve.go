package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpServer "ArtSeek/api/http"
	"ArtSeek/internal/initial"
	"ArtSeek/internal/modules/search/application/service"
	"ArtSeek/internal/modules/search/infrastructure/artifact"
	"ArtSeek/internal/modules/search/infrastructure/cache"
	searchHandler "ArtSeek/internal/modules/search/interface/http"
	"ArtSeek/internal/modules/vision/infrastructure/persistence"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /search and /random over the index artifact and the embedding store",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	// 启动前任何依赖缺失都直接失败，不降级为空索引
	db, closeDB, err := openDB(initial.DBOptions{MustExist: true})
	if err != nil {
		return err
	}
	defer closeDB()

	store, err := artifact.NewFromConfig(ctx, conf.StorageConfig)
	if err != nil {
		return err
	}
	index, err := artifact.LoadIndex(ctx, store, conf.ArtifactPath)
	if err != nil {
		return fmt.Errorf("load index %s: %w", conf.ArtifactPath, err)
	}
	index.SetNProbe(conf.NProbe)

	repo := persistence.NewEmbeddingRepository(db)
	if err := service.CheckAlignment(ctx, index, repo); err != nil {
		return err
	}
	metrics.IndexVectors.Set(float64(index.Len()))
	zlog.Info("index loaded",
		zap.String("build_id", index.Meta.BuildID),
		zap.Int("vectors", index.Len()),
		zap.Int("nlist", index.NList()),
		zap.Int("nprobe", index.NProbe()))

	var searchCache cache.SearchCache
	if rdb := initial.NewRedisClient(conf); rdb != nil {
		defer rdb.Close()
		searchCache = cache.NewRedisSearchCache(rdb, time.Duration(conf.TTLSeconds)*time.Second)
	}

	querySvc := service.NewQueryService(index, repo, searchCache)
	queryH := searchHandler.NewQueryHandler(querySvc, searchHandler.QueryLimits{
		DefaultLimit: conf.DefaultLimit,
		MaxLimit:     conf.MaxLimit,
	})

	addr := fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.NewEngine(conf, queryH),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	zlog.Info("server stopped")
	return nil
}

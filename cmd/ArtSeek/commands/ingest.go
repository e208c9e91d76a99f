package commands

import (
	"fmt"

	"ArtSeek/internal/initial"
	"ArtSeek/internal/modules/vision/application/service"
	"ArtSeek/internal/modules/vision/infrastructure/embedder"
	"ArtSeek/internal/modules/vision/infrastructure/persistence"
	"ArtSeek/internal/modules/vision/infrastructure/shard"
	"ArtSeek/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestGlob string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed downloaded image shards into the embedding store",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestGlob, "shards", "", "shard glob (overrides ingestConfig.shardGlob)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	pattern := ingestGlob
	if pattern == "" {
		pattern = conf.ShardGlob
	}
	paths, err := shard.Glob(pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no shards match %q", pattern)
	}

	em, meta, err := embedder.NewEmbedderFromConfig(conf)
	if err != nil {
		return err
	}
	zlog.Info("embedder ready", zap.String("provider", meta.Provider), zap.String("model", meta.Model), zap.Int("dim", meta.Dim))

	db, closeDB, err := openDB(initial.DBOptions{Migrate: true})
	if err != nil {
		return err
	}
	defer closeDB()

	reader := shard.NewReader(paths)
	defer reader.Close()

	ctx, stop := signalContext()
	defer stop()

	svc := service.NewIngestService(persistence.NewEmbeddingRepository(db), em, service.IngestOptions{
		BatchSize: conf.BatchSize,
		Dim:       meta.Dim,
	})
	res, err := svc.Run(ctx, reader)
	if err != nil {
		return err
	}
	zlog.Info("ingest summary", zap.Int("shard_skipped", reader.Skipped()), zap.Int("inserted", res.Inserted))
	return nil
}

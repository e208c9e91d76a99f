package commands

import (
	"ArtSeek/internal/initial"
	"ArtSeek/internal/modules/search/application/service"
	"ArtSeek/internal/modules/search/infrastructure/artifact"
	"ArtSeek/internal/modules/search/infrastructure/ivf"
	"ArtSeek/internal/modules/vision/infrastructure/persistence"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the IVF index artifact from the embedding store",
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	db, closeDB, err := openDB(initial.DBOptions{MustExist: true})
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, stop := signalContext()
	defer stop()

	store, err := artifact.NewFromConfig(ctx, conf.StorageConfig)
	if err != nil {
		return err
	}
	svc := service.NewIndexService(persistence.NewEmbeddingRepository(db), store, service.IndexOptions{
		Dim:          conf.Dimensions,
		ArtifactPath: conf.ArtifactPath,
		NProbe:       conf.NProbe,
		ScanPageSize: conf.ScanPageSize,
		Train: ivf.TrainOptions{
			Iterations: conf.TrainIterations,
			PerList:    conf.TrainPerList,
			Seed:       conf.Seed,
		},
	})
	_, err = svc.Build(ctx)
	return err
}

package commands

import (
	"os"
	"path/filepath"

	"ArtSeek/internal/initial"
	"ArtSeek/internal/modules/catalog/application/service"
	"ArtSeek/internal/modules/catalog/infrastructure/persistence"

	"github.com/spf13/cobra"
)

var extractOut string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Write the deduplicated image URL manifest (URL,ID,THUMBNAIL) for the downloader",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "manifest path (default <dataDir>/image_urls.csv)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	out := extractOut
	if out == "" {
		out = filepath.Join(conf.DataDir, "image_urls.csv")
	}
	db, closeDB, err := openDB(initial.DBOptions{MustExist: true})
	if err != nil {
		return err
	}
	defer closeDB()

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	svc := service.NewExtractService(persistence.NewArtworkRepository(db))
	if _, err := svc.Export(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

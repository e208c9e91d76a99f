package commands

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ArtSeek/internal/initial"
	"ArtSeek/internal/modules/catalog/application/service"
	catalogRepo "ArtSeek/internal/modules/catalog/domain/repository"
	"ArtSeek/internal/modules/catalog/infrastructure/mq"
	"ArtSeek/internal/modules/catalog/infrastructure/mq/kafka"
	"ArtSeek/internal/modules/catalog/infrastructure/persistence"
	"ArtSeek/internal/modules/catalog/infrastructure/source"
	"ArtSeek/internal/modules/catalog/interface/scheduler"
	"ArtSeek/pkg/metrics"
	"ArtSeek/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	crawlCron    string
	crawlSources []string
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Fetch new records from the museum catalogs into the record store",
	RunE:  runCrawl,
}

func init() {
	crawlCmd.Flags().StringVar(&crawlCron, "cron", "", "run periodically on this 5-field cron expression (overrides crawlConfig.cron)")
	crawlCmd.Flags().StringSliceVar(&crawlSources, "source", []string{"met", "louvre"}, "catalogs to crawl")
}

func buildSources(names []string) ([]catalogRepo.CatalogSource, error) {
	cookie, err := source.LoadCookie(conf.CookiePath)
	if err != nil {
		return nil, err
	}
	client := source.NewClient(source.ClientConfig{
		UserAgent: conf.UserAgent,
		Cookie:    cookie,
		Timeout:   time.Duration(conf.CrawlConfig.TimeoutSeconds) * time.Second,
	})

	var out []catalogRepo.CatalogSource
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "met":
			out = append(out, source.NewMetSource(client, conf.MetBaseURL))
		case "louvre":
			out = append(out, source.NewLouvreSource(client, conf.LouvreBaseURL))
		default:
			return nil, errors.New("unknown source: " + name)
		}
	}
	return out, nil
}

func buildPublisher() (mq.Publisher, error) {
	kc := conf.KafkaConfig
	if len(kc.Brokers) == 0 {
		return nil, nil
	}
	if err := kafka.EnsureTopic(kc.Brokers, kc.ClientID, kafka.TopicSpec{
		Name:              kc.CrawlTopic,
		Partitions:        kc.Partitions,
		ReplicationFactor: kc.Replication,
	}); err != nil {
		return nil, err
	}
	return kafka.NewPublisher(kafka.PublisherConfig{Brokers: kc.Brokers, ClientID: kc.ClientID})
}

func runCrawl(cmd *cobra.Command, args []string) error {
	sources, err := buildSources(crawlSources)
	if err != nil {
		return err
	}
	db, closeDB, err := openDB(initial.DBOptions{Migrate: true})
	if err != nil {
		return err
	}
	defer closeDB()

	publisher, err := buildPublisher()
	if err != nil {
		// 通知是可选能力，broker 不可用时照常抓取
		zlog.Warn("kafka unavailable, crawl events disabled", zap.Error(err))
		publisher = nil
	}
	if publisher != nil {
		defer publisher.Close()
	}

	svc := service.NewCrawlService(
		sources,
		persistence.NewArtworkRepository(db),
		persistence.NewRecordWriter(db),
		publisher,
		service.CrawlOptions{
			MaxInflight:   conf.MaxInflight,
			RatePerSecond: conf.RatePerSecond,
			ProgressEvery: conf.ProgressEvery,
			Topic:         conf.CrawlTopic,
		},
	)

	ctx, stop := signalContext()
	defer stop()

	spec := crawlCron
	if spec == "" {
		spec = conf.CrawlConfig.Cron
	}
	if spec == "" {
		_, err := svc.Run(ctx)
		return err
	}

	sched, err := scheduler.NewCrawlScheduler(svc, spec)
	if err != nil {
		return err
	}
	var metricsSrv *http.Server
	if addr := strings.TrimSpace(conf.MetricsConfig.Addr); addr != "" {
		metricsSrv = &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zlog.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	sched.Start()
	<-ctx.Done()
	zlog.Info("shutting down crawl scheduler")
	sched.Stop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// Command imagesync runs C11: drains LotImagesResponse messages off the bus,
// downloads and uploads their images to the object store, and publishes
// SyncedImagesResponse back onto the bus.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/appconfig"
	"github.com/wonderooo/cars/internal/busclient"
	"github.com/wonderooo/cars/internal/domain"
	"github.com/wonderooo/cars/internal/imagesync"
	"github.com/wonderooo/cars/internal/obslog"
)

func main() {
	log := obslog.New("info", "cmd_imagesync")

	cfg, err := appconfig.LoadConfig(appconfig.PathFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	store, err := imagesync.NewObjectStore(imagesync.ObjectStoreConfig{
		Endpoint:        cfg.ObjectStore.Endpoint,
		Region:          cfg.ObjectStore.Region,
		Bucket:          cfg.ObjectStore.Bucket,
		PathStyle:       cfg.ObjectStore.PathStyle,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("new object store")
	}

	sink, err := imagesync.NewSink(store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new image sync sink")
	}

	ctx, cancel := context.WithCancel(context.Background())

	busCfg := busclient.DefaultConfig(cfg.Bus.Brokers, cfg.Bus.GroupID)
	consumer, err := busclient.NewResponseConsumer(busCfg, []string{domain.TopicRespLotImages}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus response consumer")
	}
	producer, err := busclient.NewOutboundAdapter(busCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus outbound adapter")
	}

	in := make(chan domain.Response, 256)
	out := make(chan domain.Response, 256)

	go consumer.Run(ctx, in)
	go sink.Run(ctx, in, out)
	go producer.Run(ctx, out)

	awaitShutdown(log)
	cancel()
	consumer.Close()
	producer.Close()
	log.Info().Msg("cmd/imagesync shut down cleanly")
}

func awaitShutdown(log zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
}

// Command persister runs C12: drains LotSearchResponse and
// SyncedImagesResponse messages off the bus and writes them to Postgres,
// publishing LotImages follow-up commands for newly inserted lots.
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
	"github.com/wonderooo/cars/internal/obslog"
	"github.com/wonderooo/cars/internal/persister"
)

func main() {
	log := obslog.New("info", "cmd_persister")

	cfg, err := appconfig.LoadConfig(appconfig.PathFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	store, err := persister.NewPGStore(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("new postgres store")
	}
	sink := persister.NewSink(store, log)

	busCfg := busclient.DefaultConfig(cfg.Bus.Brokers, cfg.Bus.GroupID)
	consumer, err := busclient.NewResponseConsumer(busCfg, []string{
		domain.TopicRespLotSearch, domain.TopicRespSyncedImages,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus response consumer")
	}
	producer, err := busclient.NewCommandProducer(busCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus command producer")
	}

	in := make(chan domain.Response, 256)
	cmdOut := make(chan domain.Command, 256)

	go consumer.Run(ctx, in)
	go sink.Run(ctx, in, cmdOut)
	go producer.Run(ctx, cmdOut)

	awaitShutdown(log)
	cancel()
	consumer.Close()
	producer.Close()
	store.Close()
	log.Info().Msg("cmd/persister shut down cleanly")
}

func awaitShutdown(log zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
}

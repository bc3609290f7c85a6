// Command scheduler runs C10: periodic LotSearch and LoginRefresh command
// emission onto the bus, per spec.md §4.10.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/appconfig"
	"github.com/wonderooo/cars/internal/busclient"
	"github.com/wonderooo/cars/internal/obslog"
	"github.com/wonderooo/cars/internal/scheduler"
)

func main() {
	log := obslog.New("info", "cmd_scheduler")

	cfg, err := appconfig.LoadConfig(appconfig.PathFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	busCfg := busclient.DefaultConfig(cfg.Bus.Brokers, cfg.Bus.GroupID)
	producer, err := busclient.NewCommandProducer(busCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus command producer")
	}

	sched := scheduler.NewScheduler(log)
	sched.Register(scheduler.NewCopartLotSearchTask())
	sched.Register(scheduler.NewCopartLoginRefreshTask())

	go producer.Run(ctx, sched.Commands())

	awaitShutdown(log)
	cancel()
	sched.Stop()
	producer.Close()
	log.Info().Msg("cmd/scheduler shut down cleanly")
}

func awaitShutdown(log zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
}

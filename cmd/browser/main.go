// Command browser runs C1-C9: the proxy chain, the browser worker pool, and
// the bus bridge that ties them to the rest of the pipeline. One process per
// "PC" in the original manager's terms (spec.md §2).
//
// Startup sequence:
//  1. Load configuration.
//  2. Start the CONNECT proxy chain, wait for its "started" notification.
//  3. Start the browser worker pool against the local proxy address.
//  4. Wire the bus bridge: inbound adapter feeds the pool, pool output feeds
//     the outbound adapter.
//  5. Block until SIGINT/SIGTERM, then cancel and await every component's
//     done latch.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/wonderooo/cars/internal/appconfig"
	"github.com/wonderooo/cars/internal/browser"
	"github.com/wonderooo/cars/internal/busclient"
	"github.com/wonderooo/cars/internal/obslog"
	"github.com/wonderooo/cars/internal/proxychain"
)

// browserPoolSize is the fixed worker count C8 dispatches across.
const browserPoolSize = 4

func main() {
	log := obslog.New("info", "cmd_browser")

	cfg, err := appconfig.LoadConfig(appconfig.PathFromEnv())
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	proxy := proxychain.New(cfg.Proxy.AllowList, proxychain.Upstream{
		Host:     cfg.Proxy.Upstream.Host,
		Port:     strconv.Itoa(cfg.Proxy.Upstream.Port),
		Username: cfg.Proxy.Username,
		Password: cfg.Proxy.Password,
	}, log)
	go func() {
		if err := proxy.Start(cfg.Proxy.ListenAddr, ctx.Done()); err != nil {
			log.Error().Err(err).Msg("proxy chain server stopped")
		}
	}()
	<-proxy.Started()
	log.Info().Str("addr", proxy.Addr().String()).Msg("proxy chain started")

	navCfg := browser.NavigatorConfig{
		SiteRoot:   cfg.UpstreamProvider.SiteRoot,
		SearchURL:  cfg.UpstreamProvider.SearchURL,
		ImagesURL:  cfg.UpstreamProvider.ImagesURL,
		AuctionURL: cfg.UpstreamProvider.AuctionURL,
		Creds: browser.Credentials{
			Username: cfg.UpstreamProvider.Username,
			Password: cfg.UpstreamProvider.Password,
		},
	}

	pool, err := browser.NewPool(ctx, browserPoolSize, proxy.Addr().String(), navCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("start browser pool")
	}

	busCfg := busclient.DefaultConfig(cfg.Bus.Brokers, cfg.Bus.GroupID)
	inbound, err := busclient.NewInboundAdapter(busCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus inbound adapter")
	}
	outbound, err := busclient.NewOutboundAdapter(busCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("new bus outbound adapter")
	}

	go inbound.Run(ctx, pool.Inbound())
	go outbound.Run(ctx, pool.Outbound())

	awaitShutdown(log)
	cancel()

	<-pool.Done()
	inbound.Close()
	outbound.Close()
	log.Info().Msg("cmd/browser shut down cleanly")
}

// awaitShutdown blocks until SIGINT or SIGTERM, mirroring the teacher's
// main.go signal-handling block.
func awaitShutdown(log zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
}

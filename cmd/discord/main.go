// cmd/discord/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"guild-jukebox/internal/command/music"
	"guild-jukebox/internal/config"
	"guild-jukebox/internal/discord"
	"guild-jukebox/internal/logging"
	"guild-jukebox/internal/middleware"
	"guild-jukebox/internal/music/dispatch"
	"guild-jukebox/internal/music/resolve"
	"guild-jukebox/internal/music/search"
	"guild-jukebox/internal/music/session"
	"guild-jukebox/internal/music/stream"
	"guild-jukebox/pkg/cmd"
	"guild-jukebox/pkg/retrylimit"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func main() {
	loaded, err := config.LoadDotEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Pretty: cfg.LogPretty})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	if !loaded {
		log.Info().Msg("No .env file found, falling back to system environment variables")
	}

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("Discord bot error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("Discord bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("stream_mode", cfg.StreamMode).Bool("proxy", cfg.Proxy != "").Msg("Starting bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := retrylimit.NewAdaptiveLimiter(rate.Limit(cfg.SearchRate), 0.2, rate.Limit(cfg.SearchRate*2), 0.2, 0.5)

	httpClient, err := resolve.NewHTTPClient(cfg.Proxy, cfg.ProviderTimeout)
	if err != nil {
		return err
	}
	catalog := search.New(cfg.SearchBaseURL, httpClient, limiter, log)

	resolver, err := resolve.New(resolve.Options{
		Mode:    resolve.Mode(cfg.StreamMode),
		Proxy:   cfg.Proxy,
		Timeout: cfg.ProviderTimeout,
		Limiter: limiter,
	}, log)
	if err != nil {
		return err
	}

	commands := cmd.NewRegistry()
	bot, err := discord.New(cfg.DiscordToken, commands, discord.Options{InitSlashCommands: cfg.InitSlashCommands}, log)
	if err != nil {
		return err
	}

	players := stream.NewFactory(resolver, stream.FFmpeg{Log: log}, log)
	sessions := session.NewRegistry(bot.Connector(), players, log)
	bot.OnShutdown(sessions.CloseAll)

	deps := &music.Deps{
		Dispatcher: dispatch.New(sessions, catalog, resolver, log),
		Voice:      bot,
	}
	if err := music.Register(commands, deps,
		middleware.WithGuildOnly(),
		middleware.WithCommandLogger(log),
	); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Stringer("signal", s).Msg("Received signal, shutting down...")
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// cmd/cli/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"guild-jukebox/internal/config"
	"guild-jukebox/internal/logging"
	"guild-jukebox/internal/music/dispatch"
	"guild-jukebox/internal/music/resolve"
	"guild-jukebox/internal/music/search"
	"guild-jukebox/pkg/retrylimit"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

const titleWidth = 60

func main() {
	config.LoadDotEnv()

	app := &cli.Command{
		Name:  "jukebox",
		Usage: "Check the music providers without Discord",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "proxy",
				Usage:   "http, https, socks4 or socks5 proxy URL",
				Sources: cli.EnvVars("PROXY"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Provider request timeout",
				Value:   15 * time.Second,
				Sources: cli.EnvVars("PROVIDER_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			searchCommand(),
			resolveCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the catalog by keyword",
		ArgsUsage: "<keyword>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base-url",
				Value:   "https://www.youtube.com",
				Sources: cli.EnvVars("SEARCH_BASE_URL"),
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: dispatch.MaxResults,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() == 0 {
				return cli.Exit("search needs a keyword", 2)
			}
			log, err := newLogger(c)
			if err != nil {
				return err
			}
			httpClient, err := resolve.NewHTTPClient(c.String("proxy"), c.Duration("timeout"))
			if err != nil {
				return err
			}

			lim := retrylimit.NewAdaptiveLimiter(rate.Limit(2), 0.2, 4, 0.2, 0.5)
			results, err := search.New(c.String("base-url"), httpClient, lim, log).Search(ctx, c.Args().First())
			if err != nil {
				return err
			}
			if limit := int(c.Int("limit")); limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDURATION\tTITLE")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Duration, runewidth.Truncate(r.Title, titleWidth, "…"))
			}
			return w.Flush()
		},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a video id to its title and audio stream",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mode",
				Usage:   "link or pipe",
				Value:   string(resolve.ModeLink),
				Sources: cli.EnvVars("STREAM_MODE"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() == 0 {
				return cli.Exit("resolve needs a video id", 2)
			}
			log, err := newLogger(c)
			if err != nil {
				return err
			}
			r, err := resolve.New(resolve.Options{
				Mode:    resolve.Mode(c.String("mode")),
				Proxy:   c.String("proxy"),
				Timeout: c.Duration("timeout"),
			}, log)
			if err != nil {
				return err
			}

			audio, err := r.Resolve(ctx, c.Args().First())
			if err != nil {
				return err
			}
			if audio.Body != nil {
				defer audio.Body.Close()
			}

			fmt.Printf("title:    %s\n", audio.Title)
			fmt.Printf("duration: %s\n", audio.Duration)
			fmt.Printf("page:     %s\n", audio.Metadata.URL())
			if audio.URL != "" {
				fmt.Printf("stream:   %s\n", runewidth.Truncate(audio.URL, 120, "…"))
			} else {
				fmt.Println("stream:   piped body opened")
			}
			return nil
		},
	}
}

func newLogger(c *cli.Command) (zerolog.Logger, error) {
	log, _, err := logging.New(logging.Options{Level: c.String("log-level"), Pretty: true})
	return log, err
}

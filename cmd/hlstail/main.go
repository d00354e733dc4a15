// Command hlstail follows one live playlist and prints every new segment URI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hlstaild/internal/config"
	"hlstaild/internal/fetch"
	"hlstaild/internal/logger"
	"hlstaild/internal/session"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type options struct {
	configFile string
	quality    string
	records    bool
}

func main() {
	v := config.New()
	// Logs go to stderr next to the segment list; keep them quiet by default.
	v.SetDefault("log_level", "warn")
	var opts options

	rootCmd := &cobra.Command{
		Use:   "hlstail <playlist-url>",
		Short: "Print new segments of a live HLS playlist as they appear",
		Long: `hlstail polls a master or media playlist, follows the selected variant
and prints one line per new segment until the stream goes stale or the
process is interrupted. A summary is written to stderr on exit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tail(cmd.Context(), v, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to an optional config file")
	flags.StringVarP(&opts.quality, "quality", "q", "best", `Variant to follow: "best", "source", "audio" or a label such as "720p"`)
	flags.BoolVar(&opts.records, "json", false, "Print full segment records as JSON lines instead of URIs")
	flags.StringP("log-level", "L", "warn", "Log level (error, warn, info, debug)")
	flags.Duration("stale-timeout", config.DefaultSession().StaleTimeout, "End after this long without a new segment")
	flags.Bool("finish-on-endlist", false, "End once a playlist with EXT-X-ENDLIST has been drained")
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("session.stale_timeout", flags.Lookup("stale-timeout"))
	_ = v.BindPFlag("session.finish_on_endlist", flags.Lookup("finish-on-endlist"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "hlstail:", err)
		stop()
		os.Exit(1)
	}
}

func tail(ctx context.Context, v *viper.Viper, opts options, playlistURL string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return err
	}
	log := logger.New(stderr, cfg.LogLevel, "text")

	client := fetch.NewClient(log, cfg.Fetch.UserAgent, cfg.Fetch.RequestTimeout)
	s, err := session.New(client, session.Options{
		PlaylistURL: playlistURL,
		Quality:     opts.quality,
		Config:      cfg.Session,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	s.On(session.EventQuality, func(ev session.Event) {
		fmt.Fprintf(stderr, "quality: %s\n", ev.Quality)
	})
	s.On(session.EventSegment, func(ev session.Event) {
		if opts.records {
			if err := enc.Encode(ev.Segment); err != nil {
				log.Warnf("Failed to write segment: %v", err)
			}
			return
		}
		fmt.Fprintln(stdout, ev.Segment.URI)
	})
	s.On(session.EventDebug, func(ev session.Event) {
		log.Debugf("%s", ev.Message)
	})

	summary, err := s.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "finished (%s): %d segments, %.3fs\n", summary.Reason, summary.TotalSegments, summary.TotalDuration)
	return nil
}

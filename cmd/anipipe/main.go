// Command anipipe exercises the watch-source resolution pipeline from
// the terminal: search providers, probe availability and resolve
// playable sources for an episode.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/kitsurai/anipipe/internal/config"
	"github.com/kitsurai/anipipe/internal/manager"
	"github.com/kitsurai/anipipe/internal/metadata"
	"github.com/kitsurai/anipipe/internal/models"
	"github.com/kitsurai/anipipe/internal/providers"
	"github.com/kitsurai/anipipe/internal/resolver"
	"github.com/kitsurai/anipipe/internal/skiptimes"
	"github.com/kitsurai/anipipe/internal/util"
	"github.com/kitsurai/anipipe/internal/version"
	"github.com/kitsurai/anipipe/internal/vidcdn"
)

var (
	flagTitle    string
	flagAnilist  int
	flagMal      int
	flagEpisode  int
	flagTrack    string
	flagOverride string
	flagNoAuto   bool
	flagDebug    bool
)

func buildManager() (*manager.Manager, []providers.Provider) {
	res := resolver.New()
	list := []providers.Provider{
		providers.NewHiAnime(res),
		providers.NewAnimePahe(),
		providers.NewAniCrush(),
		providers.NewAniWave(),
	}

	m := manager.New(list,
		manager.WithMetadata(metadata.New()),
		manager.WithSkipTimes(skiptimes.New()),
		manager.WithProber(manager.NewProber(vidcdn.New(), list)),
	)
	return m, list
}

func episodeContext() models.EpisodeContext {
	return models.EpisodeContext{
		Title:     flagTitle,
		AnilistID: flagAnilist,
		MalID:     flagMal,
		Episode:   flagEpisode,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rootCmd = &cobra.Command{
	Use:          "anipipe",
	Short:        "Resolve playable anime watch sources across providers",
	Version:      version.String(),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		util.SetDebugMode(flagDebug)
		util.InitLogger()
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve watch data for an episode",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _ := buildManager()
		result := m.ResolveWatchData(context.Background(), manager.Request{
			Context:    episodeContext(),
			Track:      models.AudioTrack(flagTrack),
			Override:   models.ProviderID(flagOverride),
			AutoSelect: !flagNoAuto,
		})
		if err := printJSON(result); err != nil {
			return err
		}
		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check sub/dub availability for an episode",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _ := buildManager()
		avail := m.CheckAvailability(context.Background(), episodeContext())
		return printJSON(avail)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search every provider for a title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, list := buildManager()
		out := make(map[string][]models.AnimeSummary, len(list))
		for _, p := range list {
			out[string(p.ID())] = p.SearchAnime(context.Background(), args[0])
		}
		return printJSON(out)
	},
}

var cdnCmd = &cobra.Command{
	Use:   "cdn",
	Short: "Query the supplementary stream service directly",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagAnilist <= 0 {
			return fmt.Errorf("cdn lookup requires --anilist")
		}

		client := vidcdn.New()
		records, err := client.FetchRawByAnilistID(context.Background(), flagAnilist)
		if err != nil {
			return err
		}
		if flagEpisode > 0 {
			record, ok := vidcdn.FindRecord(records, flagEpisode, models.AudioTrack(flagTrack))
			if !ok {
				return fmt.Errorf("no %s record for episode %d", flagTrack, flagEpisode)
			}
			detail, err := client.FetchFileDetail(context.Background(), record.AccessID)
			if err != nil {
				return err
			}
			return printJSON(detail)
		}
		return printJSON(records)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagTitle, "title", "", "anime title")
	rootCmd.PersistentFlags().IntVar(&flagAnilist, "anilist", 0, "AniList id")
	rootCmd.PersistentFlags().IntVar(&flagMal, "mal", 0, "MyAnimeList id")
	rootCmd.PersistentFlags().IntVar(&flagEpisode, "episode", 1, "episode number")
	rootCmd.PersistentFlags().StringVar(&flagTrack, "track", "sub", "audio track (sub|dub)")

	resolveCmd.Flags().StringVar(&flagOverride, "provider", "", "restrict resolution to one provider")
	resolveCmd.Flags().BoolVar(&flagNoAuto, "no-fallback", false, "disable fallback across providers")

	rootCmd.AddCommand(resolveCmd, probeCmd, searchCmd, cdnCmd)
}

func main() {
	lo.Must0(config.Setup())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

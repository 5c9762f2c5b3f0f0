// Package main is the entry point for the ReaVoice CLI. ReaVoice resolves
// ambiguous voice commands aimed at a DAW into concrete actions by fusing
// polled UI state, locally learned control identification, and fuzzy
// vocabulary matching. This binary runs the context pipeline and provides
// inspection commands for its learned state and vocabulary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/normanking/reavoice/internal/config"
	"github.com/normanking/reavoice/internal/logging"
	"github.com/normanking/reavoice/internal/service"
	"github.com/normanking/reavoice/internal/vocab"
	"github.com/normanking/reavoice/pkg/types"
)

var (
	version = "0.1.0"

	cfgPath  string
	verbose  bool
	cfg      *config.Config
	closeLog = func() {}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reavoice",
		Short: "ReaVoice - voice-command context pipeline for REAPER",
		Long: `ReaVoice turns loosely phrased voice commands into concrete DAW actions.
It polls the ReaScript bridge's exported state, tracks what the user is
touching, learns control identification from click behavior, and matches
utterances against an evolving vocabulary.

Run the pipeline:        reavoice
Try an utterance:        reavoice vocab match "solo channel two"
Inspect learned state:   reavoice learner stats`,
		PersistentPreRunE: initConfig,
		RunE:              runService,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.reavoice/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(vocabCmd())
	rootCmd.AddCommand(learnerCmd())

	err := rootCmd.Execute()
	closeLog()
	if err != nil {
		os.Exit(1)
	}
}

// initConfig loads configuration and sets up logging for every command.
func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	closeLog, err = logging.Setup(level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	return nil
}

// runService runs the pipeline until interrupted.
func runService(cmd *cobra.Command, args []string) error {
	svc, err := service.New(cfg)
	if err != nil {
		return err
	}

	if err := svc.Start(); err != nil {
		return err
	}

	log.Info().Str("version", version).Msg("reavoice running, ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stats := svc.SessionStats()
	log.Info().
		Dur("uptime", stats.Uptime()).
		Int("controls_touched", stats.ControlsTouched).
		Int("controls_clicked", stats.ControlsClicked).
		Int("patterns_learned", stats.PatternsLearned).
		Int("matches_resolved", stats.MatchesResolved).
		Int("errors", stats.Errors).
		Msg("session summary")

	svc.Stop()
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ReaVoice version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("reavoice %s\n", version)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	})

	return cmd
}

func vocabCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Vocabulary commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all vocabulary items",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := vocab.OpenSQLiteStore(cfg.Vocabulary.DBPath, cfg.Vocabulary.SeedOnCreate)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.GetAll(context.Background())
			if err != nil {
				return err
			}

			for _, item := range items {
				tags := ""
				if len(item.Tags) > 0 {
					tags = " [" + strings.Join(item.Tags, ", ") + "]"
				}
				fmt.Printf("%-8s %q%s\n", item.IntentType, item.Phrase, tags)
			}
			fmt.Printf("\n%d items\n", len(items))
			return nil
		},
	})

	var addTags []string
	var addIntent string
	addCmd := &cobra.Command{
		Use:   "add <phrase>",
		Short: "Add a vocabulary phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := vocab.OpenSQLiteStore(cfg.Vocabulary.DBPath, cfg.Vocabulary.SeedOnCreate)
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.Add(context.Background(), types.VocabularyItem{
				Phrase:     args[0],
				Tags:       addTags,
				IntentType: types.IntentType(addIntent),
			})
			if err != nil {
				return err
			}
			fmt.Printf("added %s (%s)\n", item.ID, item.Phrase)
			return nil
		},
	}
	addCmd.Flags().StringSliceVar(&addTags, "tags", nil, "comma-separated tags")
	addCmd.Flags().StringVar(&addIntent, "intent", "action", "intent type (action, vibe, query)")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "match <utterance>",
		Short: "Resolve an utterance against the vocabulary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := vocab.OpenSQLiteStore(cfg.Vocabulary.DBPath, cfg.Vocabulary.SeedOnCreate)
			if err != nil {
				return err
			}
			defer store.Close()

			matcher := vocab.NewMatcher(store, vocab.Config{
				FuzzyThreshold:      cfg.Matcher.FuzzyThreshold,
				PartialThreshold:    cfg.Matcher.PartialThreshold,
				TokenFuzzyThreshold: cfg.Matcher.TokenFuzzyThreshold,
				TagThreshold:        cfg.Matcher.TagThreshold,
				MinTagMatches:       cfg.Matcher.MinTagMatches,
			})

			utterance := strings.Join(args, " ")
			match := matcher.Match(context.Background(), utterance)
			if match == nil {
				fmt.Println("no match")
				return nil
			}

			fmt.Printf("best: %q (%s, %.2f)\n", match.Item.Phrase, match.MatchType, match.Score)
			for i, c := range matcher.LastCandidates() {
				fmt.Printf("  %d. %-40q %-7s %.2f\n", i+1, c.Item.Phrase, c.MatchType, c.Score)
			}
			return nil
		},
	})

	return cmd
}

func learnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learner",
		Short: "Control-identification learner commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show learned pattern statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.New(cfg)
			if err != nil {
				return err
			}
			defer svc.Stop()

			stats := svc.Learner().GetStats()
			fmt.Printf("interactions: %d\npatterns:     %d\n", stats.Interactions, stats.Patterns)
			if len(stats.TopPatterns) > 0 {
				fmt.Println("\ntop patterns:")
				for _, p := range stats.TopPatterns {
					fmt.Printf("  %-40s %-16s conf %.2f (%dx)\n", p.Key, p.ControlType, p.Confidence, p.Occurrences)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear all learned patterns and training data",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.New(cfg)
			if err != nil {
				return err
			}
			defer svc.Stop()

			if err := svc.Learner().Reset(); err != nil {
				return err
			}
			fmt.Println("learner state cleared")
			return nil
		},
	})

	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"intentcore/internal/catalog"
	"intentcore/internal/config"
	"intentcore/internal/embedding"
	"intentcore/internal/logging"
	"intentcore/internal/normalize"
	"intentcore/internal/resolver"
	"intentcore/internal/semindex"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	pilot   bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "intentctl",
	Short: "intentcore - Intent resolution and discovery engine",
	Long: `intentctl manages the intent resolution engine: a semantic index over
approved canonical intents, a normalization and fuzzy-fallback pipeline
for resolving free-text messages, and an offline discovery pipeline that
clusters historical tickets to surface intents missing from the catalog.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if pilot {
			cfg.PilotMode = true
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		debug := cfg.Logging.Debug || verbose
		return logging.Initialize(cfg.Logging.Dir, debug, cfg.Logging.Level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rebuild the semantic index from the approved catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, engine, err := openBackends()
		if err != nil {
			return err
		}
		defer cat.Close()

		ix := semindex.New(cat, engine, cfg.PilotMode)
		count, err := ix.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("index refreshed",
			zap.Int("intents", count),
			zap.Bool("ready", ix.IsReady()),
			zap.Bool("pilot", cfg.PilotMode))
		fmt.Printf("Index ready: %d intents loaded\n", count)
		return nil
	},
}

var topN int

var resolveCmd = &cobra.Command{
	Use:   "resolve [message]",
	Short: "Resolve a free-text message to a canonical intent",
	Long: `Runs one message through the full resolution flow: text normalization,
semantic matching against the approved catalog, and fuzzy rescue when the
semantic score lands in the ambiguous band.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := args[0]

		cat, engine, err := openBackends()
		if err != nil {
			return err
		}
		defer cat.Close()

		ix := semindex.New(cat, engine, cfg.PilotMode)
		if _, err := ix.Refresh(cmd.Context()); err != nil {
			return err
		}

		r := resolver.NewWithThreshold(ix, normalize.NewFuzzyMatcher(cat), cfg.Resolver.MatchThreshold)
		decision, err := r.Resolve(cmd.Context(), message)
		if err != nil {
			return err
		}

		if decision.Normalization.Changed {
			fmt.Printf("Normalized: %q\n", decision.Normalization.Normalized)
		}
		switch decision.Method {
		case resolver.MethodNone:
			fmt.Printf("No match (best candidate %s at %.3f)\n",
				decision.BestIntentID, decision.BestScore)
		case resolver.MethodFuzzy:
			fmt.Printf("Matched %s at %.3f via fuzzy rescue: %s\n",
				decision.IntentID, decision.Score, decision.FuzzyExplanation)
		default:
			fmt.Printf("Matched %s at %.3f\n", decision.IntentID, decision.Score)
		}

		if topN > 0 {
			scored, err := ix.FindTopNSemanticMatches(cmd.Context(), decision.Normalization.Normalized, topN)
			if err != nil {
				return err
			}
			fmt.Println("Top candidates:")
			for _, s := range scored {
				fmt.Printf("  %.3f  %s\n", s.Similarity, s.IntentID)
			}
		}
		return nil
	},
}

// openBackends opens the SQLite catalog and the configured embedding engine.
func openBackends() (*catalog.SQLiteCatalog, embedding.Engine, error) {
	cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		cat.Close()
		return nil, nil, err
	}
	return cat, engine, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "intentcore.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&pilot, "pilot", false, "Fail index refresh on missing embeddings")

	resolveCmd.Flags().IntVar(&topN, "top", 0, "Also print the top N semantic candidates")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(intentCmd)
	rootCmd.AddCommand(stagingCmd)
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intentcore/internal/discovery"
	"intentcore/internal/labeling"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Cluster the staging corpus to surface missing intents",
	Long: `Runs one offline discovery pass: embeds the staging corpus, clusters it
with cosine k-means, measures each cluster's overlap against the approved
catalog, and reports uncovered clusters as candidates for promotion.
Nothing is written back; promotion is a human decision.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, engine, err := openBackends()
		if err != nil {
			return err
		}
		defer cat.Close()

		p := discovery.NewPipeline(cat, cat, engine, cfg.DiscoveryConfig())
		p.SetProgress(func(message string, percent int) {
			fmt.Printf("\r[%3d%%] %-40s", percent, message)
		})

		if cfg.Labeling.Enabled {
			gen, err := labeling.NewGenAIGenerator(cfg.Embedding.GenAIAPIKey, cfg.Labeling.Model)
			if err != nil {
				logger.Warn("labeling disabled", zap.Error(err))
			} else {
				p.SetLabeler(gen)
			}
		}

		report, err := p.Run(cmd.Context())
		fmt.Println()
		if err != nil {
			return err
		}

		printReport(report)
		logger.Info("discovery run complete",
			zap.String("run_id", report.RunID),
			zap.Int("documents", report.TotalDocuments),
			zap.Int("clusters", report.TotalClusters),
			zap.Float64("coverage_percent", report.CoveragePercent),
			zap.Duration("duration", report.Duration))
		return nil
	},
}

func printReport(report *discovery.Report) {
	fmt.Printf("Run %s: %d documents, %d clusters (+%d noise), %.1f%% covered by catalog, took %s\n\n",
		report.RunID, report.TotalDocuments, report.TotalClusters,
		report.NoiseSize, report.CoveragePercent, report.Duration.Round(time.Millisecond))

	for i, c := range report.Clusters {
		fmt.Printf("%2d. [%3d docs] %s\n", i+1, c.Size, c.SuggestedLabel)
		if len(c.Keywords) > 0 {
			fmt.Printf("      keywords: %s\n", strings.Join(c.Keywords, ", "))
		}
		for _, m := range c.Matches {
			fmt.Printf("      ~ %.3f %s\n", m.Similarity, m.IntentID)
		}
	}

	if len(report.NewCandidates) > 0 {
		fmt.Printf("\nNew intent candidates:\n")
		for _, c := range report.NewCandidates {
			fmt.Printf("  - %s (%d docs)\n", strings.Join(c.Keywords, " "), c.Size)
			for i, s := range c.Samples {
				if i >= 3 {
					break
				}
				fmt.Printf("      %q\n", s)
			}
		}
	}
}

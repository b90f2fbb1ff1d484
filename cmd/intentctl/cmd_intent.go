package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"intentcore/internal/catalog"
)

var intentCmd = &cobra.Command{
	Use:   "intent",
	Short: "Manage the canonical intent catalog",
}

var (
	intentID          string
	intentCategory    string
	intentSubcategory string
	intentDescription string
	intentKeywords    string
	intentActionable  bool
	intentApproved    bool
	intentNoEmbed     bool
)

var intentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update a canonical intent",
	Long: `Upserts one canonical intent. Unless --no-embed is given, the intent's
identity text is embedded immediately so the semantic index can serve it on
the next refresh.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if intentID == "" || intentCategory == "" {
			return fmt.Errorf("--id and --category are required")
		}

		cat, engine, err := openBackends()
		if err != nil {
			return err
		}
		defer cat.Close()

		intent := catalog.CanonicalIntent{
			ID:          intentID,
			Category:    intentCategory,
			Subcategory: intentSubcategory,
			Description: intentDescription,
			Keywords:    intentKeywords,
			Actionable:  intentActionable,
			Approved:    intentApproved,
		}

		if !intentNoEmbed {
			vec, err := engine.Embed(cmd.Context(), intent.IdentityText())
			if err != nil {
				return fmt.Errorf("failed to embed intent identity: %w", err)
			}
			intent.Embedding = vec
		}

		if err := cat.UpsertIntent(cmd.Context(), intent); err != nil {
			return err
		}
		fmt.Printf("Intent %s saved (approved=%v, embedded=%v)\n",
			intent.ID, intent.Approved, intent.Embedding != nil)
		return nil
	},
}

var intentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the approved canonical intents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, err := openBackends()
		if err != nil {
			return err
		}
		defer cat.Close()

		intents, err := cat.ListApprovedIntents(cmd.Context())
		if err != nil {
			return err
		}
		for _, intent := range intents {
			embedded := "embedded"
			if intent.Embedding == nil {
				embedded = "NO EMBEDDING"
			}
			fmt.Printf("%-40s %-16s %s\n", intent.ID, intent.Category, embedded)
		}
		fmt.Printf("%d approved intents\n", len(intents))
		return nil
	},
}

var stagingCmd = &cobra.Command{
	Use:   "staging",
	Short: "Manage the discovery staging corpus",
}

var (
	stagingSubject     string
	stagingDescription string
	stagingResolution  string
)

var stagingAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a historical ticket to the staging corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		if stagingSubject == "" && stagingDescription == "" {
			return fmt.Errorf("at least one of --subject or --description is required")
		}

		cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()

		doc := catalog.StagingDocument{
			ID:          uuid.NewString(),
			Subject:     stagingSubject,
			Description: stagingDescription,
			Resolution:  stagingResolution,
		}
		if err := cat.AddStagingDocument(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Printf("Staging document %s added\n", doc.ID)
		return nil
	},
}

var stagingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the staging corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.NewSQLiteCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		defer cat.Close()

		docs, err := cat.ListStagingDocuments(cmd.Context())
		if err != nil {
			return err
		}
		for _, doc := range docs {
			fmt.Printf("%s  %s\n", doc.ID, doc.Subject)
		}
		fmt.Printf("%d staging documents\n", len(docs))
		return nil
	},
}

func init() {
	intentAddCmd.Flags().StringVar(&intentID, "id", "", "Stable intent identifier (e.g. billing_invoice_copy)")
	intentAddCmd.Flags().StringVar(&intentCategory, "category", "", "Intent category")
	intentAddCmd.Flags().StringVar(&intentSubcategory, "subcategory", "", "Optional subcategory")
	intentAddCmd.Flags().StringVar(&intentDescription, "description", "", "Human description")
	intentAddCmd.Flags().StringVar(&intentKeywords, "keywords", "", "Comma-delimited keyword list")
	intentAddCmd.Flags().BoolVar(&intentActionable, "actionable", false, "Mark the intent actionable")
	intentAddCmd.Flags().BoolVar(&intentApproved, "approved", true, "Mark the intent approved")
	intentAddCmd.Flags().BoolVar(&intentNoEmbed, "no-embed", false, "Skip embedding the identity text")
	intentCmd.AddCommand(intentAddCmd)
	intentCmd.AddCommand(intentListCmd)

	stagingAddCmd.Flags().StringVar(&stagingSubject, "subject", "", "Ticket subject")
	stagingAddCmd.Flags().StringVar(&stagingDescription, "description", "", "Ticket description")
	stagingAddCmd.Flags().StringVar(&stagingResolution, "resolution", "", "Ticket resolution notes")
	stagingCmd.AddCommand(stagingAddCmd)
	stagingCmd.AddCommand(stagingListCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/productbaker/pkg/catalog"
)

var (
	siteInput    catalog.SiteInput
	siteJSON     bool
	submitStatus string
	submitNotes  string
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage backlink sites",
}

var siteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a backlink site",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		site, err := cat.Backlinks.CreateSite(cmd.Context(), siteInput)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), site.ID)
		return nil
	},
}

var siteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backlink sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		sites, err := cat.Backlinks.ListSites(cmd.Context())
		if err != nil {
			return err
		}
		if siteJSON {
			return printJSON(cmd.OutOrStdout(), sites)
		}
		for _, s := range sites {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s (DA %d)\n", s.ID, s.Name, s.URL, s.DomainAuthority)
		}
		return nil
	},
}

var siteRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a backlink site and its submissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return cat.Backlinks.DeleteSite(cmd.Context(), args[0])
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [product-id] [site-id]",
	Short: "Record the submission status of a product on a site",
	Long:  `Record the submission status of a product on a backlink site. Statuses: pending, submitted, approved, rejected. Without arguments, list all submissions.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			subs, err := cat.Backlinks.ListSubmissions(cmd.Context(), "")
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), subs)
		}

		sub, err := cat.Backlinks.Submit(cmd.Context(), args[0], args[1], catalog.SubmissionStatus(submitStatus), submitNotes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", sub.ID, sub.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(siteCmd, submitCmd)
	siteCmd.AddCommand(siteAddCmd, siteListCmd, siteRmCmd)

	flags := siteAddCmd.Flags()
	flags.StringVar(&siteInput.Name, "name", "", "Site name")
	flags.StringVar(&siteInput.URL, "url", "", "Site URL")
	flags.StringVar(&siteInput.SubmitURL, "submit-url", "", "Submission form URL")
	flags.StringVar(&siteInput.Category, "category", "", "Category")
	flags.IntVar(&siteInput.DomainAuthority, "da", 0, "Domain authority (0-100)")
	flags.BoolVar(&siteInput.Paid, "paid", false, "Listing requires payment")
	flags.StringVar(&siteInput.Notes, "notes", "", "Notes")
	_ = siteAddCmd.MarkFlagRequired("name")
	_ = siteAddCmd.MarkFlagRequired("url")

	siteListCmd.Flags().BoolVar(&siteJSON, "json", false, "Output in JSON format")

	submitCmd.Flags().StringVar(&submitStatus, "status", string(catalog.StatusSubmitted), "Submission status")
	submitCmd.Flags().StringVar(&submitNotes, "notes", "", "Notes")
}

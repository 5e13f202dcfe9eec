package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/productbaker/pkg/catalog"
)

var (
	productInput catalog.ProductInput
	productJSON  bool
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage products",
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		product, err := cat.Products.Create(cmd.Context(), productInput)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), product.ID)
		return nil
	},
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		products, err := cat.Products.List(cmd.Context())
		if err != nil {
			return err
		}
		if productJSON {
			return printJSON(cmd.OutOrStdout(), products)
		}

		selected, _, err := cat.Products.Selected(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range products {
			marker := " "
			if p.ID == selected.ID {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s\n", marker, p.ID, p.Name, p.URL)
		}
		return nil
	},
}

var productRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a product and its backlink submissions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return cat.Products.Delete(cmd.Context(), args[0])
	},
}

var productSelectCmd = &cobra.Command{
	Use:   "select [id]",
	Short: "Mark a product as the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cat, err := openCatalog(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		return cat.Products.Select(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.AddCommand(productAddCmd, productListCmd, productRmCmd, productSelectCmd)

	flags := productAddCmd.Flags()
	flags.StringVar(&productInput.Name, "name", "", "Product name")
	flags.StringVar(&productInput.URL, "url", "", "Product website")
	flags.StringVar(&productInput.Tagline, "tagline", "", "One-line pitch")
	flags.StringVar(&productInput.Description, "description", "", "Long description")
	flags.StringVar(&productInput.Category, "category", "", "Category")
	flags.StringSliceVar(&productInput.Tags, "tag", nil, "Tag (repeatable)")
	flags.StringVar(&productInput.LogoURL, "logo", "", "Logo URL")
	_ = productAddCmd.MarkFlagRequired("name")
	_ = productAddCmd.MarkFlagRequired("url")

	productListCmd.Flags().BoolVar(&productJSON, "json", false, "Output in JSON format")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deskmate/internal/products"
)

var productsCmd = &cobra.Command{
	Use:   "products [query]",
	Short: "List or search the product allowlist",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := products.LoadCatalogue(cfg.Paths.ProductList)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			for _, slug := range cat.Slugs() {
				fmt.Println(slug)
			}
			return nil
		}

		canonical, matches, exact := cat.Candidates(args[0], 10)
		for _, m := range matches {
			marker := ""
			if exact && m == canonical {
				marker = "  <-- exact match"
			}
			fmt.Printf("%s%s\n", m, marker)
		}
		return nil
	},
}

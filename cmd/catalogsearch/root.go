package main

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/catalogsearch/internal/config"
)

// flags shared by every command
type rootFlags struct {
	env string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "catalogsearch",
		Short: "Semantic product search and recommendations over a catalog snapshot",
		Long: `catalogsearch answers free-text shopping queries against a precomputed
vector index of the product catalog: budget and category interpretation,
exact inner-product search, structured filters and keyword rerank.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.env, "env", "e", config.GetEnv(),
		"config environment (config/<env>.yaml)")

	root.AddCommand(
		newServeCmd(flags),
		newQueryCmd(flags),
		newMirrorCmd(flags),
		newVersionCmd(),
	)
	return root
}

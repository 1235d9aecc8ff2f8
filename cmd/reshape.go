package main

import (
	"github.com/spf13/cobra"

	"github.com/cohortlab/panel-cli/internal/reshape"
)

var (
	reshapeWide    string
	reshapeMapping string
	reshapeOut     string
)

var reshapeCmd = &cobra.Command{
	Use:   "reshape",
	Short: "Reshape a wide survey extract to long format",
	Long:  "Folds a one-row-per-child extract with wave-coded column names into the one-row-per-child-per-wave table the clean command consumes, using a YAML variable crosswalk.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reshape.ReshapeCSV(reshapeMapping, reshapeWide, reshapeOut)
	},
}

func init() {
	reshapeCmd.Flags().StringVar(&reshapeWide, "wide", "", "wide-format CSV extract")
	reshapeCmd.Flags().StringVar(&reshapeMapping, "mapping", "", "YAML variable crosswalk")
	reshapeCmd.Flags().StringVar(&reshapeOut, "out", "long.csv", "output long CSV path")
	_ = reshapeCmd.MarkFlagRequired("wide")
	_ = reshapeCmd.MarkFlagRequired("mapping")
	rootCmd.AddCommand(reshapeCmd)
}

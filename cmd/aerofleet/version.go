package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/aerofleet/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		common.LoadVersionFromFile()
		fmt.Printf("AeroFleet version %s\n", common.GetFullVersion())
	},
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/ramal"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ramal",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ramal version %s\n", strings.TrimSpace(ramal.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

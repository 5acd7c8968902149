// Command calctl edits, verifies and patches ECU/TCU calibration binaries
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var (
	configFlag string
	binFlag    string
	defFlag    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "calctl",
		Short: "Calibration binary toolkit for ECU/TCU firmware images",
		Long: `calctl translates symbolic parameter definitions into byte positions
inside raw ECU/TCU memory dumps, reads and writes typed calibration values,
handles ECC-interleaved flash layouts and applies BinToolz Patch containers.

Definitions are JSON catalogues produced by an external A2L conversion
pipeline; calctl only consumes them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(configFlag)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to calctl.yaml (optional)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("calctl %s (built %s)\n", version, buildDate)
		},
	}

	rootCmd.AddCommand(
		newInfoCmd(),
		newReadCmd(),
		newWriteCmd(),
		newAxisCmd(),
		newEccCmd(),
		newPatchCmd(),
		newUndoCmd(),
		newLintCmd(),
		newReportCmd(),
		newManifestCmd(),
		newVerifySignatureCmd(),
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package cmd implements CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/argus/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate an Argus configuration file without starting capture.

Useful for pre-checking configuration before deployment.

Examples:
  argus validate -c /etc/argus/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

func runValidateCommand() {
	data, err := os.ReadFile(configFile)
	if err != nil {
		exitWithError(fmt.Sprintf("failed to read file %s", configFile), err)
	}

	cfg, err := config.ParseYAML(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: interface %q — %d protocol(s), sink %s\n",
		cfg.Capture.Interface, len(cfg.Protocols), cfg.Sink.Type)
}

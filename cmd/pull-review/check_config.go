package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/pull-review/pkg/policy"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config FILE",
	Short: "Validate a .pull-review policy file and print the effective settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	st, err := policy.Load(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(st.Document()); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return enc.Close()
}

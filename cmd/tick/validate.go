package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/tick"
	"github.com/aretw0/tick/internal/logging"
)

var validateCmd = &cobra.Command{
	Use:   "validate <story>",
	Short: "Check a story for structural errors",
	Long: `Loads a story file and reports every structural error: dangling references,
undeclared contexts, missing states and actions. When a handlers file is
present, declared handlers must be listed in it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadStory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		reg, loaded, err := buildRegistry(cmd, logging.NewNop())
		if err != nil {
			return err
		}
		if !loaded {
			reg = nil
		}

		errs := tick.Validate(cfg, reg)
		out := cmd.OutOrStdout()
		if len(errs) == 0 {
			fmt.Fprintf(out, "Story %q is valid.\n", cfg.Name)
			return nil
		}
		for _, se := range errs {
			fmt.Fprintf(out, "- %s\n", se.Error())
		}
		return &tick.ValidationError{Story: cfg.Name, Errors: errs}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

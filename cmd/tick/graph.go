package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/tick/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph <story>",
	Short: "Export the story state machine",
	Long: `Outputs a Mermaid diagram (stateDiagram-v2) of the story state machine. With
--session, the states of a stored conversation are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadStory(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if id, _ := cmd.Flags().GetString("session"); id != "" {
			h, err := hostConfig(cmd)
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), h, newLogger(h))
			if err != nil {
				return err
			}
			defer b.Close()

			s, err := b.Store.Load(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to load session %q: %w", id, err)
			}
			overlay = graph.OverlayOf(s)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(cfg, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the states of a stored conversation")
}

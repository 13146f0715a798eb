package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/tick/pkg/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <story> <dataset>",
	Short: "Replay recorded conversations and print the transcript",
	Long: `Runs every conversation of a YAML dataset from a fresh session and prints the
canonical JSON transcript. With --golden, the transcript is compared with (or,
with --update, written to) a golden file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := hostConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(h)

		engine, err := loadEngine(cmd, args[0], logger)
		if err != nil {
			return err
		}
		ds, err := replay.LoadDataset(args[1])
		if err != nil {
			return err
		}
		transcript, err := replay.New(engine, replay.WithLogger(logger)).Run(cmd.Context(), ds)
		if err != nil {
			return err
		}
		out, err := transcript.Canonical()
		if err != nil {
			return err
		}
		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, out, "", "  "); err != nil {
				return err
			}
			out = buf.Bytes()
		}
		out = append(out, '\n')

		golden, _ := cmd.Flags().GetString("golden")
		update, _ := cmd.Flags().GetBool("update")
		switch {
		case golden == "":
			_, err = cmd.OutOrStdout().Write(out)
			return err
		case update:
			return os.WriteFile(golden, out, 0o644)
		}

		want, err := os.ReadFile(golden)
		if err != nil {
			return fmt.Errorf("failed to read golden file: %w", err)
		}
		if !bytes.Equal(want, out) {
			return fmt.Errorf("transcript differs from %s", golden)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Transcript matches %s.\n", golden)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("pretty", false, "Indent the transcript")
	replayCmd.Flags().String("golden", "", "Golden transcript to compare with")
	replayCmd.Flags().Bool("update", false, "Write the golden transcript instead of comparing")
}

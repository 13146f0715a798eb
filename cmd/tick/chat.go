package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aretw0/tick"
	"github.com/aretw0/tick/pkg/runner"
)

var chatCmd = &cobra.Command{
	Use:   "chat <story>",
	Short: "Talk to a story from the terminal",
	Long: `Starts a line based conversation. Each line is an intent followed by entities:

  book destination=Paris passengers=2

Values are read as YAML scalars. /session prints the stored session, /reset
starts over and /quit leaves.

With --json every line is a JSON document instead:

  {"intent":"book","entities":{"destination":"Paris"}}
  {"command":"reset"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := hostConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(h)
		b, err := openBackend(cmd.Context(), h, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		engine, err := loadEngine(cmd, args[0], logger, tick.WithStore(b.Store), tick.WithLocker(b.Locker, h.LockTTL))
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = uuid.NewString()
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return chat(ctx, engine, id, asJSON, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("id", "", "Conversation id (resumes a stored conversation)")
	chatCmd.Flags().Bool("json", false, "Read and write JSON lines")
}

func chat(ctx context.Context, engine *tick.Engine, id string, asJSON bool, in io.Reader, out io.Writer, logger *slog.Logger) error {
	opts := []runner.Option{runner.WithLogger(logger)}
	if asJSON {
		opts = append(opts, runner.WithHandler(runner.NewJSONHandler(in, out)))
	} else {
		opts = append(opts,
			runner.WithHandler(runner.NewTextHandler(in, out)),
			runner.WithBanner(fmt.Sprintf("--- %s (conversation %s) ---", engine.Name, id)),
		)
	}
	return runner.New(engine, id, opts...).Run(ctx)
}

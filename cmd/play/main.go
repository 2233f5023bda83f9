package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"emittr/fourline/internal/game"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := playOptions{Rows: 7, Cols: 7, Depth: 1, Workers: 1}
	var verbose bool

	cmd := &cobra.Command{
		Use:           "play",
		Short:         "Play four-in-a-row against the minimax bot",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			winner, err := play(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			switch winner {
			case game.PlayerA:
				fmt.Fprintln(cmd.OutOrStdout(), "bot wins")
			case game.PlayerB:
				fmt.Fprintln(cmd.OutOrStdout(), "you win")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "draw")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Rows, "rows", opts.Rows, "board rows")
	f.IntVar(&opts.Cols, "cols", opts.Cols, "board columns")
	f.IntVar(&opts.Depth, "depth", opts.Depth, "search depth in full rounds")
	f.IntVar(&opts.Workers, "workers", opts.Workers, "parallel root evaluations")
	f.BoolVar(&opts.HumanFirst, "human-first", false, "let the human open")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log search statistics")
	return cmd
}

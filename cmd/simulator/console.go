package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/infra"
	"github.com/jiri/constellation/scenario"
)

const consoleHelp = `commands:
  c <component>[:<port>] <component>[:<port>]   connect
  d <component>[:<port>] <component>[:<port>]   disconnect
  t                                             tick without changes
  ls                                            list connections
  save <path>                                   write the manual manifest
  q                                             quit`

func newConsoleCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Edit manual connections interactively",
		Long: `Console reads commands from stdin. Every command is followed by one tick
so its effect on the channels can be observed.

` + consoleHelp,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, s, err := openSession(cmd.Context(), root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close(context.Background())
			return runConsole(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runConsole(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	console := infra.NewConsole(s.world.Manual)
	now := s.cfg.Sim.StartTime()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)

		switch {
		case line == "q":
			return nil
		case line == "" || line == "t":
		case line == "ls":
			printConnections(out, s.world)
		case line == "help":
			fmt.Fprintln(out, consoleHelp)
		case len(fields) == 2 && fields[0] == "save":
			if err := s.world.Manual.SaveFile(fields[1]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintf(out, "saved %s\n", fields[1])
			}
		default:
			msg, err := console.Execute(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, msg)
			}
		}

		now = now.Add(s.cfg.Sim.Tick)
		report, err := s.world.Universe.Tick(ctx, now)
		if err != nil {
			fmt.Fprintf(out, "tick %d: %v\n", report.Tick, err)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func printConnections(out io.Writer, w *scenario.World) {
	u := w.Universe
	for _, author := range []core.Authority{core.AuthorityWiring, core.AuthorityWireless, core.AuthorityManual} {
		for _, c := range u.Registry().ByAuthor(author) {
			fmt.Fprintln(out, u.Describe(c))
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xsequence/feeprobe/taxprobe"
	"github.com/0xsequence/feeprobe/util"
	"github.com/goware/logger"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSimulateCmd(os.Stdout, os.Stderr))
}

func newSimulateCmd(stdout, stderr io.Writer) *cobra.Command {
	simulate := &simulate{stdout: stdout, stderr: stderr}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Fork the chain, seed a pool and measure the token's buy fee",
		Args:  cobra.NoArgs,
		RunE:  simulate.Run,
	}
	addRunFlags(cmd)
	cmd.Flags().Bool("progress", false, "Print every sweep step to stderr")
	return cmd
}

type simulate struct {
	stdout io.Writer
	stderr io.Writer
}

func (c *simulate) Run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := runParams(cmd)
	if err != nil {
		return err
	}
	fJSON, _ := cmd.Flags().GetBool("json")
	fProgress, _ := cmd.Flags().GetBool("progress")

	log, err := util.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}

	var opts []taxprobe.Option
	if fProgress {
		progress, done := c.progress(log)
		defer done()
		opts = append(opts, taxprobe.WithAttemptHook(progress))
	}

	sim, err := taxprobe.NewSimulation(*cfg, log, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := sim.Run(ctx, params)
	if err := printReport(c.stdout, report, fJSON); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("simulation failed: %w", runErr)
	}
	return nil
}

// progress prints attempts from a goroutine so a slow terminal never holds
// up the sweep.
func (c *simulate) progress(log logger.Logger) (func(taxprobe.Attempt), func()) {
	ch := make(chan taxprobe.Attempt)
	send := util.MakeUnboundedChan(ch, log, 500)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for a := range ch {
			line := fmt.Sprintf("%4d bp  %-8s %s", a.BasisPoint, a.Result, a.Requested)
			if a.Reason != "" {
				line += "  " + a.Reason
			}
			fmt.Fprintln(c.stderr, line)
		}
	}()

	return func(a taxprobe.Attempt) { send <- a }, func() {
		close(send)
		<-finished
	}
}

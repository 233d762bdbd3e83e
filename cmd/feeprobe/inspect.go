package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/0xsequence/feeprobe/taxprobe"
	"github.com/0xsequence/feeprobe/util"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInspectCmd(os.Stdout))
}

func newInspectCmd(stdout io.Writer) *cobra.Command {
	inspect := &inspect{stdout: stdout}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read the token profile and resolve its holder, without trading",
		Args:  cobra.NoArgs,
		RunE:  inspect.Run,
	}
	addRunFlags(cmd)
	return cmd
}

type inspect struct {
	stdout io.Writer
}

func (c *inspect) Run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, err := runParams(cmd)
	if err != nil {
		return err
	}
	fJSON, _ := cmd.Flags().GetBool("json")

	log, err := util.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	sim, err := taxprobe.NewSimulation(*cfg, log)
	if err != nil {
		return err
	}

	report, runErr := sim.Inspect(context.Background(), params)
	if err := printReport(c.stdout, report, fJSON); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("inspection failed: %w", runErr)
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goware/pp"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	VERSION       = "dev"
	GITBRANCH     = "branch"
	GITCOMMIT     = "last commit"
	GITCOMMITDATE = "last change"
)

var rootCmd = &cobra.Command{
	Use:   "feeprobe",
	Short: "feeprobe - measure ERC20 buy fees on a local fork",
	Long:  banner(),
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			pp.Green("feeprobe ").Blue("%s", version()).Println()
		},
	}

	rootCmd.AddCommand(versionCmd)
}

func main() {
	pp.UseColors = isTerminal(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// isTerminal reports whether w is a terminal. pp colors are switched off
// otherwise.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func version() string {
	if GITBRANCH == "master" {
		return fmt.Sprintf("%s (commit:%s %s)", VERSION, GITCOMMIT, GITCOMMITDATE)
	}
	return fmt.Sprintf("%s (commit:%s %s %s)", VERSION, GITCOMMIT, GITCOMMITDATE, GITBRANCH)
}

func banner() string {
	s := ""
	s += `===============================================================` + "\n"
	s += `  __                            _                  ` + "\n"
	s += ` / _| ___  ___ _ __  _ __ ___ | |__   ___          ` + "\n"
	s += `| |_ / _ \/ _ \ '_ \| '__/ _ \| '_ \ / _ \         ` + "\n"
	s += `|  _|  __/  __/ |_) | | | (_) | |_) |  __/         ` + "\n"
	s += `|_|  \___|\___| .__/|_|  \___/|_.__/ \___|         ` + "\n"
	s += `              |_|                                  ` + "\n"
	s += "\n"
	s += "=========== fork it, seed it, buy it, see what's left ==========\n"
	return s
}

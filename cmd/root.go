package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/hookrelay/cmd/worker"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:          "hookrelay",
		Short:        "GitHub webhook to chat relay",
		SilenceUsage: true,
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (optional)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newSignCmd())
	rootCmd.AddCommand(worker.NewWorkerCmd())
}

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"janus-rag/internal/config"
	"janus-rag/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "janus-rag",
	Short:         "Document store and retrieval-augmented chat API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
}

func loadConfig() (*config.Config, *logging.SlogLogger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format), nil
}

package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:   "compound",
	Short: "compound - turn recurring reports into merged code changes",
	Long: `compound is an automation pipeline that turns a recurring text report
into a merged code change with minimal human involvement.

It picks the single highest-value actionable item from the latest report,
expands it into a PRD and a task manifest, drives an external coding agent
through bounded iterations until the manifest is satisfied, and opens a
draft pull request.

Workflow:
  compound analyze               Identify the priority item from the latest report
  compound run                   Run the full pipeline
  compound loop                  Run only the execution loop against an existing manifest

Pipeline steps: analyze -> branch -> materialize -> loop -> publish.
State is saved after each step; use 'compound run --resume' to continue an
interrupted run.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(logLevelFlag)
		if err != nil {
			level = zerolog.InfoLevel
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}).Level(level)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (trace, debug, info, warn, error)")
}

// Execute runs the root command. Every fatal condition prints a one-line
// diagnostic on stderr and exits non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Msg(err.Error())
		os.Exit(1)
	}
}

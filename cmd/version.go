package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build information. Populated at build time via -ldflags; falls back to
// module build info for `go install` builds.
var (
	version = "dev"
	commit  = "HEAD"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		v, c := version, commit
		if v == "dev" {
			if info, ok := debug.ReadBuildInfo(); ok {
				if mv := info.Main.Version; mv != "" && mv != "(devel)" {
					v = mv
				}
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						c = s.Value
					}
				}
			}
		}
		if len(c) > 7 {
			c = c[:7]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "compound %s (%s)\n", v, c)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/compound-sh/compound/internal/config"
	"github.com/compound-sh/compound/internal/template"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter compound.yaml",
	Long: `Initialize the current directory for compound.

Creates:
  compound.yaml   # Configuration with the documented defaults
  reports/        # Where periodic reports are dropped

Refuses to overwrite an existing compound.yaml. After init, drop a report
into reports/ and run 'compound run'.`,
	RunE: runInitCmd,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInitCmd(cmd *cobra.Command, args []string) error {
	if err := initWorkspace("."); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", template.ConfigFile)
	fmt.Fprintln(cmd.OutOrStdout(), "created reports/")
	fmt.Fprintln(cmd.OutOrStdout(), "\nnext: drop a report into reports/ and run 'compound run'")
	return nil
}

// initWorkspace writes the starter config into dir and creates the default
// reports directory. An existing config is never overwritten.
func initWorkspace(dir string) error {
	path := filepath.Join(dir, template.ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", template.ConfigFile)
	}

	if err := os.WriteFile(path, []byte(template.DefaultConfig), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", template.ConfigFile, err)
	}
	return os.MkdirAll(filepath.Join(dir, config.Default().ReportsDir), 0755)
}

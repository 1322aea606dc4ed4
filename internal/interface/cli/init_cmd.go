package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	mpfs "github.com/alextrx818/matchpipe/internal/infra/fs"
)

const defaultSettings = `# matchpipe deployment configuration
time_zone: America/New_York
poll_interval_sec: 60

api:
  base_url: https://api.thesports.com/v1/football/
  user: ""
  secret: ""
  timeout_sec: 15
  concurrency: 30

# With no bucket, rotated logs land under <home>/var/archive.
archive:
  bucket: ""
  region: us-east-1

telegram:
  bot_token: ""
  chat_id: ""

ledger:
  selection: fifo
  dead_letter_after: 5

suppression:
  retention_hours: 0
`

// newInitCmd scaffolds the home directory and a starter settings file.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the matchpipe home directory and settings file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fsys := afero.NewOsFs()
			for _, dir := range []string{globalPaths.Logs, globalPaths.Locks, globalPaths.Rotation, globalPaths.Notified} {
				if err := fsys.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}

			exists, err := afero.Exists(fsys, globalPaths.Settings)
			if err != nil {
				return err
			}
			if exists {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, leaving it alone\n", globalPaths.Settings)
				return nil
			}
			if err := mpfs.WriteFileAtomic(fsys, globalPaths.Settings, []byte(defaultSettings)); err != nil {
				return fmt.Errorf("write settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s\n", globalPaths.Home)
			return nil
		},
	}
}

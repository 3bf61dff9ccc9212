package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Create the database if it does not exist, upgrade its schema to the
current version and report the version.

Every other command does the same on open; migrate only makes it explicit.
With --read-only the database is checked, not changed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			version, err := e.store.Version(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read schema version", err)
			}
			return rootOpts.formatter(cmd).Success(migrateResult{
				Path:    e.store.Path(),
				Driver:  e.store.Driver(),
				Version: version,
			})
		},
	}
}

type migrateResult struct {
	Path    string `json:"path"`
	Driver  string `json:"driver"`
	Version int    `json:"version"`
}

func (r migrateResult) String() string {
	return fmt.Sprintf("%s: schema version %d of %d (%s)", r.Path, r.Version, store.CurrentVersion, r.Driver)
}

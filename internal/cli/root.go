package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Driver     string
	ReadOnly   bool

	// Config is resolved from ConfigPath and the overriding flags before
	// any subcommand runs.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the keyringdb CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

// Execute runs the CLI with args, reports any error in the selected
// output format and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if !isValidFormat(opts.Format) {
		opts.Format = "text"
	}
	f := &OutputFormatter{Format: opts.Format, Writer: stdout, Verbose: opts.Verbose}
	if opts.Format == "text" {
		f.Writer = stderr
	}
	f.Error(ErrorCode(err), err.Error(), nil)
	return GetExitCode(err)
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "keyringdb",
		Short: "keyringdb - key ring database access",
		Long: `Query and edit an OpenPGP key ring database through content addresses.

Every command takes an address such as keyrings/public, keyrings/secret/3/keys
or keyrings/public/by-emails/alice@example.org, resolves it to a route and runs the
matching statement against the SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolveConfig(cmd)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "database path (overrides database.path)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "SQLite driver: sqlite3 or sqlite (overrides database.driver)")
	cmd.PersistentFlags().BoolVar(&opts.ReadOnly, "read-only", false, "open the database read-only")

	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewBlobCommand(opts))
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewConsumersCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd, opts
}

// resolveConfig loads the config file (or the defaults), applies the
// flag overrides and installs the configured logger as slog's default.
func (o *RootOptions) resolveConfig(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	if o.Driver != "" {
		cfg.Database.Driver = o.Driver
	}
	if o.ReadOnly {
		cfg.Database.ReadOnly = true
	}
	if o.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Logs go to stderr so JSON output on stdout stays parseable.
	handler, err := cfg.Logging.Handler(cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid logging configuration", err)
	}
	slog.SetDefault(slog.New(handler))

	o.Config = cfg
	return nil
}

// formatter builds the OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/provider"
	"github.com/roach88/keyringdb/internal/route"
)

// NewConsumersCommand creates the consumers command group.
func NewConsumersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consumers",
		Short: "Manage the crypto consumer allowlist",
		Long: `Manage the crypto consumer allowlist: the packages allowed to request
cryptographic operations. Each package appears at most once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List allowed packages",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConsumers(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "add <package>",
		Short:         "Allow a package",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addConsumer(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "remove <package>",
		Short:         "Revoke a package",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeConsumer(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

type consumerList struct {
	Packages []string `json:"packages"`
}

func (l consumerList) String() string {
	if len(l.Packages) == 0 {
		return "(no consumers)"
	}
	return strings.Join(l.Packages, "\n")
}

func listConsumers(opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.provider.Query(cmd.Context(), route.Consumers(), provider.QueryOptions{})
	if err != nil {
		return err
	}
	out := consumerList{Packages: make([]string, 0, len(res.Records))}
	for _, rec := range res.Records {
		if pkg, ok := rec.String(keyring.ColPackageName); ok {
			out.Packages = append(out.Packages, pkg)
		}
	}
	return opts.formatter(cmd).Success(out)
}

func addConsumer(opts *RootOptions, pkg string, cmd *cobra.Command) error {
	if pkg == "" {
		return NewExitError(ExitCommandError, "package name is empty")
	}

	e, err := openEnv(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer e.close()

	f := opts.formatter(cmd)
	values := keyring.CryptoConsumer{PackageName: pkg}.Values()
	addr, err := e.provider.Insert(cmd.Context(), route.Consumers(), values)
	if provider.IsConstraintViolation(err) {
		f.Warn("%s is already allowed", pkg)
		return f.Success(insertResult{})
	}
	if err != nil {
		return err
	}
	return f.Success(insertResult{Address: addr, Inserted: true})
}

func removeConsumer(opts *RootOptions, pkg string, cmd *cobra.Command) error {
	e, err := openEnv(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer e.close()

	n, err := e.provider.Delete(cmd.Context(), route.ConsumerByPackage(pkg), nil)
	if err != nil {
		return fmt.Errorf("remove %s: %w", pkg, err)
	}
	f := opts.formatter(cmd)
	if n == 0 {
		f.Warn("%s was not allowed", pkg)
	}
	return f.Success(rowsResult{Rows: n})
}

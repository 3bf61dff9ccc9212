package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/provider"
	"github.com/roach88/keyringdb/internal/queryir"
)

// WriteOptions holds flags for the insert, update and delete commands.
type WriteOptions struct {
	*RootOptions
	Set   []string
	JSON  string
	Where []string
}

func (o *WriteOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&o.Set, "set", nil, "column=value (repeatable); null, true, false and integers are typed")
	cmd.Flags().StringVar(&o.JSON, "json", "", "payload as a JSON object, @file to read a file, or - for stdin")
}

func (o *WriteOptions) addWhereFlag(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Where, "where", "w", nil, "only touch the row if column<op>value holds (repeatable)")
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <address>",
		Short: "Insert a row and print its address",
		Long: `Insert a row through a listing address and print the new row's address.

Examples:
  keyringdb insert keyrings/public --set master_key_id=42
  keyringdb insert keyrings/public/1/userids --set user_id='Alice <alice@example.org>' --set rank=0
  keyringdb insert consumers --json '{"package_name":"org.example.mail"}'

A write rejected by a uniqueness or foreign key constraint changes nothing;
it is reported as a warning and the command still succeeds.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <address>",
		Short: "Update the row an item address names",
		Long: `Update the columns given by --set or --json on the row an item address
names, and print the number of rows changed. --where conditions narrow the
row further; a row they exclude is left untouched.

Examples:
  keyringdb update keyrings/public/1/keys/2 --set is_revoked=true
  keyringdb update keyrings/public/1 --set master_key_id=7 --where master_key_id=6`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	opts.addWhereFlag(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <address>",
		Short: "Delete the row an item address names",
		Long: `Delete the row an item address names and print the number of rows removed.
Deleting a key ring removes its keys and user ids with it. --where
conditions narrow the row further.

Examples:
  keyringdb delete keyrings/secret/4
  keyringdb delete keyrings/public/1/keys/3 --where is_revoked=true
  keyringdb delete consumers/by-package/org.example.mail`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}
	opts.addWhereFlag(cmd)
	return cmd
}

func runInsert(opts *WriteOptions, address string, cmd *cobra.Command) error {
	values, err := opts.payload(cmd.InOrStdin())
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	f := opts.formatter(cmd)
	addr, err := e.provider.Insert(cmd.Context(), address, values)
	if provider.IsConstraintViolation(err) {
		f.Warn("no row inserted: %v", err)
		return f.Success(insertResult{})
	}
	if err != nil {
		return err
	}
	return f.Success(insertResult{Address: addr, Inserted: true})
}

func runUpdate(opts *WriteOptions, address string, cmd *cobra.Command) error {
	values, err := opts.payload(cmd.InOrStdin())
	if err != nil {
		return err
	}
	where, err := parseWhere(opts.Where)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	f := opts.formatter(cmd)
	n, err := e.provider.Update(cmd.Context(), address, values, where)
	if provider.IsConstraintViolation(err) {
		f.Warn("no row updated: %v", err)
		return f.Success(rowsResult{})
	}
	if err != nil {
		return err
	}
	return f.Success(rowsResult{Rows: n})
}

func runDelete(opts *WriteOptions, address string, cmd *cobra.Command) error {
	where, err := parseWhere(opts.Where)
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	n, err := e.provider.Delete(cmd.Context(), address, where)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(rowsResult{Rows: n})
}

// payload merges --json and --set; --set wins on a shared column.
func (o *WriteOptions) payload(stdin io.Reader) (keyring.Values, error) {
	values := keyring.Values{}

	if o.JSON != "" {
		data, err := readJSONArg(o.JSON, stdin)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("%w: --json: %v", provider.ErrInvalidPayload, err)
		}
	}

	for _, s := range o.Set {
		col, raw, ok := strings.Cut(s, "=")
		if !ok || !queryir.ValidIdentifier(col) {
			return nil, fmt.Errorf("%w: --set %q: want column=value", provider.ErrInvalidPayload, s)
		}
		values[col] = queryir.ParseValue(raw)
	}

	if len(values) == 0 {
		return nil, NewExitError(ExitCommandError, "no values given: use --set or --json")
	}
	return values, nil
}

func readJSONArg(arg string, stdin io.Reader) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read payload file", err)
		}
		return data, nil
	default:
		return []byte(arg), nil
	}
}

type insertResult struct {
	Address  string `json:"address,omitempty"`
	Inserted bool   `json:"inserted"`
}

func (r insertResult) String() string {
	if !r.Inserted {
		return "no row inserted"
	}
	return r.Address
}

type rowsResult struct {
	Rows int64 `json:"rows"`
}

func (r rowsResult) String() string {
	return fmt.Sprintf("%d row(s)", r.Rows)
}

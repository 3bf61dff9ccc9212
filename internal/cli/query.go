package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/provider"
	"github.com/roach88/keyringdb/internal/queryir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where   []string
	Sort    []string
	Columns []string
	Limit   int
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <address>",
		Short: "Read the rows an address denotes",
		Long: `Read the rows an address denotes.

Ring-level addresses (keyrings/<kind>, keyrings/<kind>/<row>,
keyrings/<kind>/by-master-key/<id>, keyrings/<kind>/by-key/<id>,
keyrings/<kind>/by-emails/<list>) return id, master_key_id and
primary_user_id. Key, user id and consumer addresses return table columns.

Examples:
  keyringdb query keyrings/public
  keyringdb query keyrings/secret/by-emails/alice@example.org,bob@example.org
  keyringdb query keyrings/public/3/keys --where is_revoked=false --sort rank:desc`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Where, "where", "w", nil, "filter as column<op>value, op one of = != < <= > >= (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Sort, "sort", "s", nil, "order as column[:asc|desc] (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "comma-separated projection")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of rows (0 for no limit)")

	return cmd
}

func runQuery(opts *QueryOptions, address string, cmd *cobra.Command) error {
	qopts, err := opts.queryOptions()
	if err != nil {
		return err
	}

	e, err := openEnv(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	res, err := e.provider.Query(cmd.Context(), address, qopts)
	if err != nil {
		return err
	}

	out := queryResult{
		Route:   res.Match.Code.String(),
		Columns: res.Columns,
		Records: res.Records,
	}
	if typ, err := e.provider.Type(address); err == nil {
		out.Type = typ
	}
	opts.formatter(cmd).VerboseLog("%s %s: %d row(s)", out.Route, address, len(out.Records))
	return opts.formatter(cmd).Success(out)
}

func (o *QueryOptions) queryOptions() (provider.QueryOptions, error) {
	var qopts provider.QueryOptions

	where, err := parseWhere(o.Where)
	if err != nil {
		return qopts, err
	}
	qopts.Where = where

	for _, s := range o.Sort {
		ord, err := queryir.ParseOrder(s)
		if err != nil {
			return qopts, fmt.Errorf("%w: %v", provider.ErrInvalidPayload, err)
		}
		qopts.OrderBy = append(qopts.OrderBy, ord)
	}

	if o.Limit < 0 {
		return qopts, fmt.Errorf("%w: limit must not be negative", provider.ErrInvalidPayload)
	}
	qopts.Columns = o.Columns
	qopts.Limit = o.Limit
	return qopts, nil
}

// parseWhere ANDs --where conditions; nil when there are none.
func parseWhere(conds []string) (queryir.Predicate, error) {
	preds := make([]queryir.Predicate, 0, len(conds))
	for _, cond := range conds {
		p, err := queryir.ParseCondition(cond)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", provider.ErrInvalidPayload, err)
		}
		preds = append(preds, p)
	}
	return queryir.AllOf(preds...), nil
}

// queryResult is the data of a successful query.
type queryResult struct {
	Route   string           `json:"route"`
	Type    string           `json:"type,omitempty"`
	Columns []string         `json:"columns"`
	Records []keyring.Record `json:"records"`
}

func (r queryResult) renderText(w io.Writer) error {
	if len(r.Records) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(r.Columns, "\t")))
	for _, rec := range r.Records {
		cells := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			cells[i] = formatValue(rec[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// formatValue renders a column value for text output.
func formatValue(v keyring.Value) string {
	switch val := v.(type) {
	case nil, keyring.Null:
		return "NULL"
	case keyring.String:
		return string(val)
	case keyring.Int:
		return strconv.FormatInt(int64(val), 10)
	case keyring.Bool:
		return strconv.FormatBool(bool(val))
	case keyring.Bytes:
		return "base64:" + base64.StdEncoding.EncodeToString(val)
	default:
		return fmt.Sprint(v)
	}
}

// NewTypeCommand creates the type command.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "type <address>",
		Short: "Print the content type of an address",
		Long: `Print the content type of an address. Listings report a dir type and
single rows an item type; blobs are application/octet-stream.

The address is only resolved, the database is not opened.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := provider.New(nil).Type(args[0])
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(typeResult{Address: args[0], Type: typ})
		},
	}
}

type typeResult struct {
	Address string `json:"address"`
	Type    string `json:"type"`
}

func (r typeResult) String() string { return r.Type }

// NewBlobCommand creates the blob command.
func NewBlobCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "blob <data/name>",
		Short: "Copy a stored blob to stdout or a file",
		Long: `Copy a file from the configured storage.blob_root to stdout or, with
--output, to a file. Only plain file names directly inside the blob root are
served.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			f, err := e.provider.OpenBlob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			if output != "" {
				out, err := os.Create(output)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to create output file", err)
				}
				defer out.Close()
				w = out
			}
			_, err = io.Copy(w, f)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

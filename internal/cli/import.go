package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/keyringdb/internal/keyring"
	"github.com/roach88/keyringdb/internal/provider"
)

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>...",
		Short: "Import key rings from YAML",
		Long: `Import key rings from YAML files ("-" reads stdin). Each document holds a
key_rings list; every ring is written with its keys and user ids in one
transaction.

A ring rejected by a database constraint is skipped with a warning. Any
other failure stops the import; rings imported before it stay imported.

Example file:
  key_rings:
    - kind: public
      keys:
        - key_id: 0x1122334455667788
          is_master_key: true
          can_certify: true
      user_ids:
        - user_id: Alice <alice@example.org>
          rank: 0`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args, cmd)
		},
	}
}

type importResult struct {
	Imported []string `json:"imported"`
	Skipped  int      `json:"skipped"`
}

func (r importResult) String() string {
	var b strings.Builder
	for _, addr := range r.Imported {
		b.WriteString(addr)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d imported, %d skipped", len(r.Imported), r.Skipped)
	return b.String()
}

func runImport(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	var rings []keyring.KeyRing
	for _, path := range paths {
		rs, err := readRings(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		rings = append(rings, rs...)
	}

	e, err := openEnv(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer e.close()

	f := opts.formatter(cmd)
	res := importResult{Imported: []string{}}
	for i, ring := range rings {
		addr, err := e.provider.ImportKeyRing(cmd.Context(), ring)
		if provider.IsConstraintViolation(err) {
			f.Warn("ring %d skipped: %v", i+1, err)
			res.Skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("ring %d: %w", i+1, err)
		}
		f.VerboseLog("imported %s", addr)
		res.Imported = append(res.Imported, addr)
	}
	return f.Success(res)
}

func readRings(path string, stdin io.Reader) ([]keyring.KeyRing, error) {
	var r io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open import file", err)
		}
		defer file.Close()
		r = file
	}

	rings, err := keyring.DecodeRings(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", provider.ErrInvalidKeyRing, path, err)
	}
	return rings, nil
}

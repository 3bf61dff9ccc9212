package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/roach88/keyringdb/internal/metrics"
	"github.com/roach88/keyringdb/internal/route"
)

// OpenBlob opens the file behind a data/<name> address read-only. The
// name is resolved beneath the blob root and cannot escape it. Any address
// that is not a blob address, and any name without a regular file behind
// it, fails with ErrNotFound (which also matches fs.ErrNotExist).
func (p *Provider) OpenBlob(ctx context.Context, address string) (*os.File, error) {
	f, err := p.openBlob(address)

	code := route.OpenBlob.String()
	switch {
	case err == nil:
		p.metrics.Request(code, opOpenBlob, metrics.OutcomeOK)
	default:
		p.metrics.Request(code, opOpenBlob, metrics.OutcomeError)
		p.log.Debug("blob not opened", "address", address, "error", err)
	}
	return f, err
}

func (p *Provider) openBlob(address string) (*os.File, error) {
	m, err := route.Resolve(address)
	if err != nil || m.Code != route.OpenBlob {
		return nil, notFound(address, err)
	}
	name, _ := m.Params.Get(route.ParamName)

	if p.blobRoot == "" {
		return nil, notFound(address, errors.New("no blob root configured"))
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, notFound(address, nil)
	}

	root, err := os.OpenRoot(p.blobRoot)
	if err != nil {
		return nil, fmt.Errorf("open blob root: %w", err)
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		return nil, notFound(address, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat blob %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, notFound(address, nil)
	}
	return f, nil
}

func notFound(address string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, address, fs.ErrNotExist)
	}
	return fmt.Errorf("%w: %s: %w: %w", ErrNotFound, address, fs.ErrNotExist, cause)
}

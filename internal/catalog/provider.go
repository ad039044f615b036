// Package catalog owns the schema the assistant is allowed to see: it seeds
// an empty store from an import source, derives the schema from the live
// store, persists it as a JSON side file and serves it to readers.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tabletalk/tabletalk/internal/connector"
	"github.com/tabletalk/tabletalk/internal/model"
)

// ErrNoTables is returned by Ensure when the store holds no tables and no
// import source is configured.
var ErrNoTables = errors.New("store has no tables")

// DefaultTable is the table created by an import when no name is given.
const DefaultTable = "accounts"

// Options configures a Provider.
type Options struct {
	// SchemaFile is the path of the persisted schema side file.
	SchemaFile string
	// ImportSource is a CSV file used to populate an empty store.
	ImportSource string
	// ImportTable is the table an import creates. Defaults to DefaultTable.
	ImportTable string
	// Descriptions maps table names to human readable descriptions.
	Descriptions map[string]string
}

// DefaultDescriptions are used for tables without a configured description.
var DefaultDescriptions = map[string]string{
	DefaultTable: "Accrual accounts data",
}

// Provider serves the schema catalog. It is safe for concurrent use; the
// catalog it returns must be treated as read-only.
type Provider struct {
	store  connector.Connector
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	cached *model.Catalog
}

// NewProvider returns a Provider reading the live schema from store.
func NewProvider(store connector.Connector, opts Options, logger *slog.Logger) *Provider {
	if opts.ImportTable == "" {
		opts.ImportTable = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{store: store, opts: opts, logger: logger}
}

// Ensure prepares the catalog on first use. An empty store is populated from
// the import source; a populated store without a side file gets one derived
// from its live schema.
func (p *Provider) Ensure(ctx context.Context) error {
	names, err := p.store.TableNames(ctx, p.store.DB())
	if err != nil {
		return fmt.Errorf("ensure catalog: %w", err)
	}

	if len(names) == 0 {
		if p.opts.ImportSource == "" {
			return ErrNoTables
		}
		n, err := p.ImportFile(ctx, p.opts.ImportSource, p.opts.ImportTable)
		if err != nil {
			return err
		}
		p.logger.Info("store populated from import source",
			"source", p.opts.ImportSource, "table", p.opts.ImportTable, "rows", n)
		return nil
	}

	if _, err := os.Stat(p.opts.SchemaFile); errors.Is(err, fs.ErrNotExist) {
		if _, err := p.Refresh(ctx); err != nil {
			return err
		}
		p.logger.Info("schema file derived from live store", "path", p.opts.SchemaFile, "tables", len(names))
	}
	return nil
}

// ImportFile loads a CSV file into a new table and regenerates the catalog.
func (p *Provider) ImportFile(ctx context.Context, path, table string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import source: %w", err)
	}
	defer f.Close()

	if table == "" {
		table = p.opts.ImportTable
	}
	n, err := NewCSVImporter(p.store, 0).Import(ctx, f, table)
	if err != nil {
		return 0, err
	}
	if _, err := p.Refresh(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// GetSchema returns the persisted catalog. A missing side file yields an
// empty catalog rather than an error.
func (p *Provider) GetSchema(ctx context.Context) (*model.Catalog, error) {
	p.mu.RLock()
	cached := p.cached
	p.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	data, err := os.ReadFile(p.opts.SchemaFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.NewCatalog(), nil
		}
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var cat model.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", p.opts.SchemaFile, err)
	}

	p.mu.Lock()
	if p.cached == nil {
		p.cached = &cat
	}
	cached = p.cached
	p.mu.Unlock()
	return cached, nil
}

// Refresh derives the catalog from the live store and rewrites the side file.
func (p *Provider) Refresh(ctx context.Context) (*model.Catalog, error) {
	cat, err := connector.IntrospectCatalog(ctx, p.store, p.describe)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(p.opts.SchemaFile, cat); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cached = cat
	p.mu.Unlock()
	return cat, nil
}

// describe returns the description of a table: configured first, then the
// built-in defaults, then whatever the current catalog carries.
func (p *Provider) describe(table string) string {
	if d, ok := p.opts.Descriptions[table]; ok {
		return d
	}
	if d, ok := DefaultDescriptions[table]; ok {
		return d
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if ts, ok := p.cached.Table(table); ok && ts.Description != "" {
		return ts.Description
	}
	return "No description"
}

func writeFileAtomic(path string, cat *model.Catalog) error {
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create schema dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write schema file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write schema file: %w", err)
	}
	return nil
}

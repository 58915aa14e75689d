package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"schemaextract/internal/logger"
	"schemaextract/internal/schema"
)

// ExtractStructure reads the catalog behind h. Tables are enumerated first;
// columns, primary keys and foreign keys are then fetched per table with at
// most the configured number of tables in flight. Any failure closes h and
// no structure is returned.
func (in *Introspector) ExtractStructure(ctx context.Context, h *Handle) (schema.DatabaseStructure, []schema.Warning, error) {
	if h == nil || h.Closed() {
		return schema.DatabaseStructure{}, nil, &ConnectionError{Msg: "connection is closed", Err: sql.ErrConnDone}
	}
	start := time.Now()
	s, warnings, err := in.extract(ctx, h)
	if err != nil {
		logger.Warn("extraction from %s failed: %v", h.desc, err)
		h.Close()
		return schema.DatabaseStructure{}, nil, err
	}
	logger.Debug("extracted %d tables and %d relationships from %s in %v", len(s.Tables), len(s.Relationships), h.desc, time.Since(start))
	return s, warnings, nil
}

func (in *Introspector) extract(ctx context.Context, h *Handle) (schema.DatabaseStructure, []schema.Warning, error) {
	names, err := h.catalog.Tables(ctx, h.db, h.scope)
	if err != nil {
		return schema.DatabaseStructure{}, nil, h.fail("tables", "", err)
	}

	tables := make([]schema.Table, len(names))
	fks := make([][]ForeignKeyInfo, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)
	for i, name := range names {
		g.Go(func() error {
			t, fk, err := in.loadTable(gctx, h, name)
			if err != nil {
				return err
			}
			tables[i], fks[i] = t, fk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return schema.DatabaseStructure{}, nil, err
	}

	explicit, warnings := explicitRelationships(tables, fks)
	rels, inferWarnings := in.relate.Infer(tables, explicit)
	s, assembleWarnings := schema.Assemble(tables, rels, schema.Metadata{
		Source:       schema.SourceDatabase,
		Dialect:      string(h.dialect),
		DatabaseName: h.desc.Database,
	})
	warnings = append(warnings, inferWarnings...)
	warnings = append(warnings, assembleWarnings...)
	return s, warnings, nil
}

func (in *Introspector) loadTable(ctx context.Context, h *Handle, name string) (schema.Table, []ForeignKeyInfo, error) {
	cols, err := h.catalog.Columns(ctx, h.db, h.scope, name)
	if err != nil {
		return schema.Table{}, nil, h.fail("columns", name, err)
	}
	pks, err := h.catalog.PrimaryKeys(ctx, h.db, h.scope, name)
	if err != nil {
		return schema.Table{}, nil, h.fail("primary keys", name, err)
	}
	fks, err := h.catalog.ForeignKeys(ctx, h.db, h.scope, name)
	if err != nil {
		return schema.Table{}, nil, h.fail("foreign keys", name, err)
	}

	isPK := make(map[string]bool, len(pks))
	for _, pk := range pks {
		isPK[pk] = true
	}
	fields := make([]schema.Field, 0, len(cols))
	for _, c := range cols {
		f := schema.Field{
			Name:          c.Name,
			Type:          in.normalizer.Normalize(c.NativeType, h.dialect),
			NativeType:    c.NativeType,
			Nullable:      c.Nullable,
			Default:       c.Default,
			AutoIncrement: c.AutoIncrement,
		}
		if isPK[c.Name] {
			f.PrimaryKey = true
			f.Nullable = false
		}
		fields = append(fields, f)
	}
	return schema.NewTable(name, fields), fks, nil
}

// explicitRelationships turns catalog foreign keys into relationships. A key
// that names no target column points at the target's single-column primary key.
func explicitRelationships(tables []schema.Table, fks [][]ForeignKeyInfo) ([]schema.Relationship, []schema.Warning) {
	var (
		rels     []schema.Relationship
		warnings []schema.Warning
	)
	idx := schema.DatabaseStructure{Tables: tables}
	for i, t := range tables {
		for _, fk := range fks[i] {
			ref := fk.RefColumn
			if ref == "" {
				target, ok := idx.Table(fk.RefTable)
				if ok {
					if pk, ok := target.SinglePrimaryKey(); ok {
						ref = pk.Name
					}
				}
			}
			if ref == "" {
				warnings = append(warnings, schema.Warning{
					Kind:    schema.WarningIntegrity,
					Message: fmt.Sprintf("foreign key %s.%s -> %s has no resolvable target column", t.Name, fk.Column, fk.RefTable),
				})
				continue
			}
			rels = append(rels, schema.Explicit(t.Name, fk.Column, fk.RefTable, ref))
		}
	}
	return rels, warnings
}

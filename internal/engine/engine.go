// Package engine wires the normalizer, inference engine, text parser and
// database introspector into one entry point per source kind.
package engine

import (
	"context"

	"schemaextract/internal/db"
	"schemaextract/internal/logger"
	"schemaextract/internal/relate"
	"schemaextract/internal/schema"
	"schemaextract/internal/textparse"
	"schemaextract/internal/typemap"
	"schemaextract/pkg/config"
)

type Engine struct {
	parser       *textparse.Parser
	introspector *db.Introspector
}

// New builds the shared components once. Dialect extractors register
// themselves, so callers that need live databases must also import
// schemaextract/internal/db/extractors.
func New(cfg config.AppConfig) *Engine {
	n := typemap.New()
	r := relate.New(cfg.Inference)
	return &Engine{
		parser:       textparse.New(n, r),
		introspector: db.NewIntrospector(n, r, cfg.Extraction),
	}
}

// FromText parses a free-form or DDL description.
func (e *Engine) FromText(raw string) (schema.DatabaseStructure, []schema.Warning, error) {
	return e.parse(raw, schema.SourceText)
}

// FromOCR parses text recognized from an image. The grammar is the same as
// FromText; only the recorded source differs.
func (e *Engine) FromOCR(raw string) (schema.DatabaseStructure, []schema.Warning, error) {
	return e.parse(raw, schema.SourceOCR)
}

func (e *Engine) parse(raw string, source schema.SourceKind) (schema.DatabaseStructure, []schema.Warning, error) {
	s, warnings, err := e.parser.Parse(raw, source)
	if err != nil {
		logger.Warn("%s parse failed: %v", source, err)
		return s, warnings, err
	}
	summarize(s, warnings)
	return s, warnings, nil
}

// FromDatabase connects, extracts and disconnects.
func (e *Engine) FromDatabase(ctx context.Context, desc config.Descriptor) (schema.DatabaseStructure, []schema.Warning, error) {
	logger.Debug("extracting %s", desc)
	s, warnings, err := e.introspector.Extract(ctx, desc)
	if err != nil {
		return s, warnings, err
	}
	summarize(s, warnings)
	return s, warnings, nil
}

func (e *Engine) TestConnection(ctx context.Context, desc config.Descriptor) db.TestResult {
	res := e.introspector.TestConnection(ctx, desc)
	if res.Success {
		logger.Info("%s", res.Message)
	} else {
		logger.Warn("connection test for %s failed: %s", desc, *res.Error)
	}
	return res
}

func summarize(s schema.DatabaseStructure, warnings []schema.Warning) {
	var explicit, inferred int
	for _, r := range s.Relationships {
		if r.Origin == schema.OriginExplicit {
			explicit++
		} else {
			inferred++
		}
	}
	logger.Info("%s: %d tables, %d explicit and %d inferred relationships, %d warnings",
		s.Metadata.Source, len(s.Tables), explicit, inferred, len(warnings))
}

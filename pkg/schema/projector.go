package schema

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlchat/pkg/adapters/datasource"
)

// Provider supplies raw table and column metadata from the business store.
type Provider interface {
	DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error)
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error)
}

// Projector builds Descriptors from a Provider.
type Projector struct {
	provider Provider
	logger   *zap.Logger
}

// NewProjector creates a Projector. If logger is nil, a no-op logger is used.
func NewProjector(provider Provider, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		provider: provider,
		logger:   logger.Named("schema-projector"),
	}
}

// Project returns the schema restricted to scope, or every base table when
// scope is empty. Provider failures produce an empty descriptor; callers
// treat that as "cannot generate SQL".
func (p *Projector) Project(ctx context.Context, scope string) Descriptor {
	tables, err := p.Tables(ctx)
	if err != nil {
		p.logger.Warn("Schema discovery failed", zap.Error(err))
		return Descriptor{}
	}

	if scope = strings.TrimSpace(scope); scope != "" {
		tables = filterScope(tables, scope)
		if len(tables) == 0 {
			p.logger.Warn("Selected table not found", zap.String("scope", scope))
			return Descriptor{}
		}
	}

	d := Descriptor{Tables: make([]Table, 0, len(tables))}
	for _, t := range tables {
		columns, err := p.provider.DiscoverColumns(ctx, t.SchemaName, t.TableName)
		if err != nil {
			p.logger.Warn("Column discovery failed",
				zap.String("table", t.DisplayName()),
				zap.Error(err))
			return Descriptor{}
		}
		d.Tables = append(d.Tables, projectTable(t, columns))
	}

	p.logger.Debug("Projected schema",
		zap.String("scope", scope),
		zap.Int("tables", len(d.Tables)))
	return d
}

// Tables lists the base tables visible to the assistant.
func (p *Projector) Tables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return p.provider.DiscoverTables(ctx)
}

// HasTable reports whether name identifies a discoverable table.
func (p *Projector) HasTable(ctx context.Context, name string) (bool, error) {
	tables, err := p.Tables(ctx)
	if err != nil {
		return false, err
	}
	return len(filterScope(tables, name)) > 0, nil
}

// filterScope matches either the display name or the bare table name,
// ignoring case and square brackets.
func filterScope(tables []datasource.TableMetadata, scope string) []datasource.TableMetadata {
	scope = strings.NewReplacer("[", "", "]", "").Replace(scope)
	var out []datasource.TableMetadata
	for _, t := range tables {
		if strings.EqualFold(t.DisplayName(), scope) ||
			strings.EqualFold(t.SchemaName+"."+t.TableName, scope) ||
			strings.EqualFold(t.TableName, scope) {
			out = append(out, t)
		}
	}
	return out
}

func projectTable(t datasource.TableMetadata, columns []datasource.ColumnMetadata) Table {
	name := t.DisplayName()
	table := Table{Name: name, Columns: make([]Column, 0, len(columns))}
	ordered := slices.Clone(columns)
	slices.SortStableFunc(ordered, func(a, b datasource.ColumnMetadata) int {
		return cmp.Compare(a.OrdinalPosition, b.OrdinalPosition)
	})
	for _, c := range ordered {
		description := strings.TrimSpace(c.Description)
		if description == "" {
			description = Describe(t.TableName, c.ColumnName)
		}
		table.Columns = append(table.Columns, Column{
			Name:        c.ColumnName,
			Type:        c.DataType,
			Nullable:    c.IsNullable,
			MaxLength:   c.MaxLength,
			Description: description,
		})
	}
	return table
}

// Package sqlbuild assembles the variable parts of user queries. Column names
// come only from the domain field catalog; every value becomes a bound
// parameter in the dialect's placeholder style.
package sqlbuild

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/repository"
)

// Placeholder selects the bind parameter syntax.
type Placeholder int

const (
	// Question is used by SQLite and MySQL.
	Question Placeholder = iota
	// Dollar is used by PostgreSQL.
	Dollar
)

// ValueFunc converts a normalized field value to the driver representation.
type ValueFunc func(spec domain.FieldSpec, v any) any

// Builder accumulates bound arguments.
type Builder struct {
	style Placeholder
	conv  ValueFunc
	args  []any
}

// New creates a Builder. conv may be nil.
func New(style Placeholder, conv ValueFunc) *Builder {
	return &Builder{style: style, conv: conv}
}

// Arg binds v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	if b.style == Dollar {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

// Args returns the bound arguments in order.
func (b *Builder) Args() []any {
	return b.args
}

func (b *Builder) field(fv domain.FieldValue) (domain.FieldSpec, any, error) {
	spec, ok := domain.LookupField(fv.Field)
	if !ok {
		return spec, nil, fmt.Errorf("%w: %q", domain.ErrUnknownField, fv.Field)
	}
	v := fv.Value
	if b.conv != nil {
		v = b.conv(spec, v)
	}
	return spec, v, nil
}

// Assignments renders "col = ?, ..." for an UPDATE statement.
func (b *Builder) Assignments(fields []domain.FieldValue) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields to assign")
	}
	parts := make([]string, 0, len(fields))
	for _, fv := range fields {
		spec, v, err := b.field(fv)
		if err != nil {
			return "", err
		}
		parts = append(parts, spec.Name+" = "+b.Arg(v))
	}
	return strings.Join(parts, ", "), nil
}

// Where renders " WHERE alias.col = ? AND ..." or "" for no filters.
// Only domain.FilterableFields are accepted.
func (b *Builder) Where(alias string, filters []domain.FieldValue) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, fv := range filters {
		if !domain.FilterableFields[fv.Field] {
			return "", fmt.Errorf("%w: %q is not filterable", domain.ErrUnknownField, fv.Field)
		}
		spec, v, err := b.field(fv)
		if err != nil {
			return "", err
		}
		parts = append(parts, qualify(alias, spec.Name)+" = "+b.Arg(v))
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// OrderBy renders " ORDER BY alias.col ASC|DESC". Unknown or empty columns
// fall back to uid so paging stays stable.
func OrderBy(alias string, opts repository.ListOptions) string {
	col := domain.FieldUID
	if domain.SortableFields[opts.OrderBy] {
		col = opts.OrderBy
	}
	dir := "ASC"
	if opts.Descending {
		dir = "DESC"
	}
	clause := " ORDER BY " + qualify(alias, col) + " " + dir
	if col != domain.FieldUID {
		clause += ", " + qualify(alias, domain.FieldUID) + " ASC"
	}
	return clause
}

func qualify(alias, col string) string {
	if alias == "" {
		return col
	}
	return alias + "." + col
}

package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/syssam/pocket/schema"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// isValidIdentifier checks if the string is a valid SQL identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// Issue is a single finding of Validate.
type Issue struct {
	Entity  string
	Field   string
	Message string
}

func (i *Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("%s.%s: %s", i.Entity, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Entity, i.Message)
}

// ValidationResult holds the results of descriptor validation.
type ValidationResult struct {
	Errors   []*Issue
	Warnings []*Issue
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(entity, field, format string, args ...any) {
	r.Errors = append(r.Errors, &Issue{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(entity, field, format string, args ...any) {
	r.Warnings = append(r.Warnings, &Issue{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateEntity validates a single descriptor in isolation.
func ValidateEntity(e *schema.Entity) *ValidationResult {
	result := &ValidationResult{}
	if e == nil {
		result.errorf("<nil>", "", "nil entity descriptor")
		return result
	}
	if e.Name == "" {
		result.errorf("<unnamed>", "", "missing entity name")
	}
	if !isValidIdentifier(e.Table) {
		result.errorf(e.Name, "", "invalid table name %q", e.Table)
	}

	var pks []*schema.Field
	names := make(map[string]bool, len(e.Fields))
	columns := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		if f == nil {
			result.errorf(e.Name, "", "nil field descriptor")
			continue
		}
		if f.Name == "" {
			result.errorf(e.Name, f.Column, "missing field name")
		} else if names[f.Name] {
			result.errorf(e.Name, f.Name, "duplicate field name")
		}
		names[f.Name] = true
		if !isValidIdentifier(f.Column) {
			result.errorf(e.Name, f.Name, "invalid column name %q", f.Column)
		} else if columns[f.Column] {
			result.errorf(e.Name, f.Name, "duplicate column %q", f.Column)
		}
		columns[f.Column] = true

		if f.PrimaryKey {
			pks = append(pks, f)
			if f.References != nil {
				result.errorf(e.Name, f.Name, "field cannot be both primary key and foreign key")
			}
		}
		if ref := f.References; ref != nil {
			switch {
			case ref.Table == "" || ref.Column == "":
				result.errorf(e.Name, f.Name, "foreign key must name both table and column")
			case !isValidIdentifier(ref.Table) || !isValidIdentifier(ref.Column):
				result.errorf(e.Name, f.Name, "invalid foreign key reference %s.%s", ref.Table, ref.Column)
			}
		}
	}

	switch len(pks) {
	case 0:
		result.errorf(e.Name, "", "no primary key declared")
	case 1:
		if pks[0].Column != e.PrimaryKeyColumn {
			result.errorf(e.Name, pks[0].Name, "primary key column %q does not match %q", pks[0].Column, e.PrimaryKeyColumn)
		}
	default:
		result.errorf(e.Name, "", "%d primary keys declared, want exactly one", len(pks))
	}
	return result
}

// Validate validates a set of descriptors, including the relations between them.
func Validate(entities []*schema.Entity) *ValidationResult {
	result := &ValidationResult{}

	byName := make(map[string]*schema.Entity, len(entities))
	tables := make(map[string]*schema.Entity, len(entities))
	for _, e := range entities {
		er := ValidateEntity(e)
		result.Errors = append(result.Errors, er.Errors...)
		result.Warnings = append(result.Warnings, er.Warnings...)
		if e == nil || e.Name == "" {
			continue
		}
		if _, ok := byName[e.Name]; ok {
			result.errorf(e.Name, "", "duplicate entity name")
			continue
		}
		byName[e.Name] = e
		if prev, ok := tables[e.Table]; ok {
			result.warnf(e.Name, "", "table %q is also mapped by %q", e.Table, prev.Name)
		} else {
			tables[e.Table] = e
		}
	}

	for _, e := range entities {
		if e == nil || byName[e.Name] != e {
			continue
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			if f.References != nil && f.References.Table != "" {
				if _, ok := tables[f.References.Table]; !ok {
					result.warnf(e.Name, f.Name, "foreign key references table %q not mapped by any entity", f.References.Table)
				}
			}
			if _, ok := byName[f.Name]; ok {
				result.warnf(e.Name, f.Name, "field name collides with entity %q", f.Name)
			}
		}
		for _, child := range e.Children {
			c, ok := byName[child]
			if !ok {
				result.errorf(e.Name, "", "declared child %q is not in the catalog", child)
				continue
			}
			if c.ForeignKeyTo(e.Table, e.PrimaryKeyColumn) == nil {
				result.warnf(e.Name, "", "declared child %q has no foreign key to %s.%s", child, e.Table, e.PrimaryKeyColumn)
			}
		}
	}
	return result
}

package postgresengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ormkit/postgres-backend-go/backend"
)

var ErrUnsupportedDataType = errors.New("data type is not supported by the postgres type map")

// typeMappings maps the generic type vocabulary onto PostgreSQL DDL type names.
// PostgreSQL has no TINYINT, and JSONB is preferred over JSON for generic
// JSON and array columns.
var typeMappings = map[backend.DataType]string{
	backend.TypeTinyInt:   "SMALLINT",
	backend.TypeSmallInt:  "SMALLINT",
	backend.TypeInteger:   "INTEGER",
	backend.TypeBigInt:    "BIGINT",
	backend.TypeFloat:     "REAL",
	backend.TypeDouble:    "DOUBLE PRECISION",
	backend.TypeDecimal:   "NUMERIC",
	backend.TypeChar:      "CHAR",
	backend.TypeVarchar:   "VARCHAR",
	backend.TypeText:      "TEXT",
	backend.TypeDate:      "DATE",
	backend.TypeTime:      "TIME",
	backend.TypeDateTime:  "TIMESTAMP",
	backend.TypeTimestamp: "TIMESTAMP WITH TIME ZONE",
	backend.TypeBlob:      "BYTEA",
	backend.TypeBoolean:   "BOOLEAN",
	backend.TypeUUID:      "UUID",
	backend.TypeJSON:      "JSONB",
	backend.TypeArray:     "JSONB",
	backend.TypeCustom:    "TEXT",
}

// Column describes one column for DDL rendering.
//
// Length applies to CHAR/VARCHAR, Precision and Scale to NUMERIC. ArrayDims turns
// the column into a native array of that many dimensions. Default values of string
// type are rendered quoted; all other defaults are rendered verbatim.
type Column struct {
	Type       backend.DataType
	Length     int
	Precision  int
	Scale      int
	PrimaryKey bool
	Identity   bool
	Unique     bool
	NotNull    bool
	Default    any
	Collate    string
	Check      string
	ArrayDims  int
}

// ColumnDDL renders the complete column type definition including constraints.
func ColumnDDL(c Column) (string, error) {
	base, ok := typeMappings[c.Type]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDataType, c.Type)
	}

	switch c.Type {
	case backend.TypeChar, backend.TypeVarchar:
		if c.Length > 0 {
			base = fmt.Sprintf("%s(%d)", base, c.Length)
		}
	case backend.TypeDecimal:
		if c.Precision > 0 {
			if c.Scale > 0 {
				base = fmt.Sprintf("%s(%d, %d)", base, c.Precision, c.Scale)
			} else {
				base = fmt.Sprintf("%s(%d)", base, c.Precision)
			}
		}
	}

	if c.ArrayDims > 0 {
		base += strings.Repeat("[]", c.ArrayDims)
	}

	parts := []string{base}

	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}

	if c.Identity {
		parts = append(parts, "GENERATED ALWAYS AS IDENTITY")
	}

	if c.Unique {
		parts = append(parts, "UNIQUE")
	}

	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}

	if c.Default != nil {
		if s, isString := c.Default.(string); isString {
			parts = append(parts, "DEFAULT "+quoteLiteral(s))
		} else {
			parts = append(parts, fmt.Sprintf("DEFAULT %v", c.Default))
		}
	}

	if c.Collate != "" {
		parts = append(parts, "COLLATE "+quoteIdentifier(c.Collate))
	}

	if c.Check != "" {
		parts = append(parts, fmt.Sprintf("CHECK (%s)", c.Check))
	}

	return strings.Join(parts, " "), nil
}

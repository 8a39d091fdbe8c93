package backend

type ColumnNameString = string

// Condition is a node in the database-agnostic predicate tree.
//
// The comparison and boolean nodes translate to any SQL dialect. The JSONB and array
// nodes carry PostgreSQL-leaning semantics; an engine that cannot express them must
// reject the statement instead of silently dropping the predicate.
type Condition interface {
	condition()
}

/***** comparison nodes *****/

type Eq struct {
	Column ColumnNameString
	Value  any
}

type Neq struct {
	Column ColumnNameString
	Value  any
}

type Gt struct {
	Column ColumnNameString
	Value  any
}

type Gte struct {
	Column ColumnNameString
	Value  any
}

type Lt struct {
	Column ColumnNameString
	Value  any
}

type Lte struct {
	Column ColumnNameString
	Value  any
}

type In struct {
	Column ColumnNameString
	Values []any
}

type Like struct {
	Column  ColumnNameString
	Pattern string
}

type IsNull struct {
	Column ColumnNameString
}

type NotNull struct {
	Column ColumnNameString
}

/***** boolean combinators *****/

type And []Condition

type Or []Condition

type Not struct {
	Cond Condition
}

/***** dialect-specific nodes *****/

// JSONBContains renders to the containment operator: column @> 'doc'.
// Doc may be a map, a slice, valid JSON bytes or a JSON string.
type JSONBContains struct {
	Column ColumnNameString
	Doc    any
}

// JSONBPath compares the text value at a JSON path for equality.
// A single path element renders with ->>, several elements render with #>>.
type JSONBPath struct {
	Column ColumnNameString
	Path   []string
	Value  any
}

// ArrayContains renders to: column @> ARRAY[...].
type ArrayContains struct {
	Column ColumnNameString
	Values []any
}

// ArrayOverlaps renders to: column && ARRAY[...].
type ArrayOverlaps struct {
	Column ColumnNameString
	Values []any
}

// AnyOf renders to: value = ANY(column).
type AnyOf struct {
	Column ColumnNameString
	Value  any
}

// Raw injects a SQL fragment verbatim. The caller is responsible for quoting.
type Raw struct {
	SQL string
}

func (Eq) condition()            {}
func (Neq) condition()           {}
func (Gt) condition()            {}
func (Gte) condition()           {}
func (Lt) condition()            {}
func (Lte) condition()           {}
func (In) condition()            {}
func (Like) condition()          {}
func (IsNull) condition()        {}
func (NotNull) condition()       {}
func (And) condition()           {}
func (Or) condition()            {}
func (Not) condition()           {}
func (JSONBContains) condition() {}
func (JSONBPath) condition()     {}
func (ArrayContains) condition() {}
func (ArrayOverlaps) condition() {}
func (AnyOf) condition()         {}
func (Raw) condition()           {}

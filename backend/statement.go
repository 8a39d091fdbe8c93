package backend

type TableNameString = string

// LockMode selects the row locking clause of a select statement.
type LockMode int

const (
	LockNone LockMode = iota
	LockForUpdate
	LockForUpdateNoWait
	LockForUpdateSkipLocked
)

// OrderClause is one ORDER BY element.
type OrderClause struct {
	Column ColumnNameString
	Desc   bool
}

// ConflictAction describes the ON CONFLICT clause of an insert statement.
// When Update is empty the action is DO NOTHING, otherwise DO UPDATE SET.
type ConflictAction struct {
	Target []ColumnNameString
	Update map[ColumnNameString]any
}

/***** SelectStatement *****/

// SelectStatement is the IR for a row-returning query.
// It is built with the fluent helpers and rendered by an engine's dialect.
type SelectStatement struct {
	Table      TableNameString
	Columns    []ColumnNameString
	Where      Condition
	GroupBy    []ColumnNameString
	Having     Condition
	OrderBy    []OrderClause
	LimitCount *uint
	OffsetFrom *uint
	IsDistinct bool
	Locking    LockMode
}

// Select starts a select statement for the given table.
// With no columns the dialect renders a wildcard.
func Select(table TableNameString, columns ...ColumnNameString) SelectStatement {
	return SelectStatement{Table: table, Columns: columns}
}

func (s SelectStatement) Distinct() SelectStatement {
	s.IsDistinct = true
	return s
}

func (s SelectStatement) WhereCond(cond Condition) SelectStatement {
	s.Where = cond
	return s
}

func (s SelectStatement) GroupedBy(columns ...ColumnNameString) SelectStatement {
	s.GroupBy = append(s.GroupBy, columns...)
	return s
}

func (s SelectStatement) HavingCond(cond Condition) SelectStatement {
	s.Having = cond
	return s
}

func (s SelectStatement) OrderedBy(column ColumnNameString) SelectStatement {
	s.OrderBy = append(s.OrderBy, OrderClause{Column: column})
	return s
}

func (s SelectStatement) OrderedByDesc(column ColumnNameString) SelectStatement {
	s.OrderBy = append(s.OrderBy, OrderClause{Column: column, Desc: true})
	return s
}

func (s SelectStatement) Limit(n uint) SelectStatement {
	s.LimitCount = &n
	return s
}

func (s SelectStatement) Offset(n uint) SelectStatement {
	s.OffsetFrom = &n
	return s
}

func (s SelectStatement) WithLocking(mode LockMode) SelectStatement {
	s.Locking = mode
	return s
}

/***** InsertStatement *****/

// InsertStatement is the IR for an insert, optionally with RETURNING and ON CONFLICT.
type InsertStatement struct {
	Table     TableNameString
	Columns   []ColumnNameString
	Rows      [][]any
	Returning []ColumnNameString
	Conflict  *ConflictAction
}

// InsertInto starts an insert statement for the given table and column list.
func InsertInto(table TableNameString, columns ...ColumnNameString) InsertStatement {
	return InsertStatement{Table: table, Columns: columns}
}

func (s InsertStatement) Values(values ...any) InsertStatement {
	s.Rows = append(s.Rows, values)
	return s
}

func (s InsertStatement) WithReturning(columns ...ColumnNameString) InsertStatement {
	s.Returning = append(s.Returning, columns...)
	return s
}

func (s InsertStatement) OnConflictDoNothing(target ...ColumnNameString) InsertStatement {
	s.Conflict = &ConflictAction{Target: target}
	return s
}

func (s InsertStatement) OnConflictDoUpdate(target []ColumnNameString, update map[ColumnNameString]any) InsertStatement {
	s.Conflict = &ConflictAction{Target: target, Update: update}
	return s
}

/***** UpdateStatement *****/

// UpdateStatement is the IR for an update, optionally with RETURNING.
type UpdateStatement struct {
	Table     TableNameString
	Set       map[ColumnNameString]any
	Where     Condition
	Returning []ColumnNameString
}

// Update starts an update statement for the given table.
func Update(table TableNameString, set map[ColumnNameString]any) UpdateStatement {
	return UpdateStatement{Table: table, Set: set}
}

func (s UpdateStatement) WhereCond(cond Condition) UpdateStatement {
	s.Where = cond
	return s
}

func (s UpdateStatement) WithReturning(columns ...ColumnNameString) UpdateStatement {
	s.Returning = append(s.Returning, columns...)
	return s
}

/***** DeleteStatement *****/

// DeleteStatement is the IR for a delete, optionally with RETURNING.
type DeleteStatement struct {
	Table     TableNameString
	Where     Condition
	Returning []ColumnNameString
}

// DeleteFrom starts a delete statement for the given table.
func DeleteFrom(table TableNameString) DeleteStatement {
	return DeleteStatement{Table: table}
}

func (s DeleteStatement) WhereCond(cond Condition) DeleteStatement {
	s.Where = cond
	return s
}

func (s DeleteStatement) WithReturning(columns ...ColumnNameString) DeleteStatement {
	s.Returning = append(s.Returning, columns...)
	return s
}

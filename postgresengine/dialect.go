package postgresengine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/doug-martin/goqu/v9/exp"
	jsoniter "github.com/json-iterator/go"

	"github.com/ormkit/postgres-backend-go/backend"
)

const dialectPostgres = "postgres"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrEmptyTableName = errors.New("empty table name supplied")
var ErrInsertWithoutRows = errors.New("insert statement has no value rows")
var ErrUpdateWithoutSet = errors.New("update statement has no set values")

// Dialect renders the database-agnostic statement IR into PostgreSQL SQL text.
//
// Rendering is non-prepared: values are inlined as quoted literals, producing a
// complete statement string. Features gated by the capability descriptor return
// backend.ErrUnsupportedFeature when the server version predates them.
type Dialect struct {
	caps Capabilities
}

// NewDialect creates a dialect bound to the given capability descriptor.
func NewDialect(caps Capabilities) Dialect {
	return Dialect{caps: caps}
}

// Capabilities returns the capability descriptor the dialect renders against.
func (d Dialect) Capabilities() Capabilities {
	return d.caps
}

// Placeholder returns the positional parameter placeholder used by the native drivers.
func (d Dialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

// RenderSelect renders a select statement into SQL text.
func (d Dialect) RenderSelect(stmt backend.SelectStatement) (string, error) {
	if stmt.Table == "" {
		return "", errors.Join(backend.ErrBuildingQueryFailed, ErrEmptyTableName)
	}

	ds := goqu.Dialect(dialectPostgres).From(stmt.Table)

	if len(stmt.Columns) > 0 {
		ds = ds.Select(columnsToAny(stmt.Columns)...)
	}

	if stmt.IsDistinct {
		ds = ds.Distinct()
	}

	whereExpr, err := d.renderCondition(stmt.Where)
	if err != nil {
		return "", err
	}

	if whereExpr != nil {
		ds = ds.Where(whereExpr)
	}

	if len(stmt.GroupBy) > 0 {
		ds = ds.GroupBy(columnsToAny(stmt.GroupBy)...)
	}

	if stmt.Having != nil {
		havingExpr, havingErr := d.renderCondition(stmt.Having)
		if havingErr != nil {
			return "", havingErr
		}
		ds = ds.Having(havingExpr)
	}

	for _, order := range stmt.OrderBy {
		if order.Desc {
			ds = ds.OrderAppend(goqu.I(order.Column).Desc())
		} else {
			ds = ds.OrderAppend(goqu.I(order.Column).Asc())
		}
	}

	if stmt.LimitCount != nil {
		ds = ds.Limit(*stmt.LimitCount)
	}

	if stmt.OffsetFrom != nil {
		ds = ds.Offset(*stmt.OffsetFrom)
	}

	ds, err = d.applyLocking(ds, stmt.Locking)
	if err != nil {
		return "", err
	}

	sqlQuery, _, toSQLErr := ds.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(backend.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// RenderInsert renders an insert statement into SQL text.
func (d Dialect) RenderInsert(stmt backend.InsertStatement) (string, error) {
	if stmt.Table == "" {
		return "", errors.Join(backend.ErrBuildingQueryFailed, ErrEmptyTableName)
	}

	if len(stmt.Rows) == 0 {
		return "", errors.Join(backend.ErrBuildingQueryFailed, ErrInsertWithoutRows)
	}

	ins := goqu.Dialect(dialectPostgres).
		Insert(stmt.Table).
		Cols(columnsToAny(stmt.Columns)...)

	vals := make([][]interface{}, len(stmt.Rows))
	for i, row := range stmt.Rows {
		vals[i] = row
	}
	ins = ins.Vals(vals...)

	if stmt.Conflict != nil {
		if !d.caps.SupportsUpsert() {
			return "", errors.Join(
				backend.ErrUnsupportedFeature,
				fmt.Errorf("ON CONFLICT requires PostgreSQL 9.5, server is %s", d.caps.Version()),
			)
		}

		if len(stmt.Conflict.Update) == 0 {
			return d.renderInsertDoNothing(ins, stmt)
		}

		target := strings.Join(stmt.Conflict.Target, ", ")
		ins = ins.OnConflict(goqu.DoUpdate(target, goqu.Record(stmt.Conflict.Update)))
	}

	if len(stmt.Returning) > 0 {
		ins = ins.Returning(columnsToAny(stmt.Returning)...)
	}

	sqlQuery, _, toSQLErr := ins.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(backend.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// renderInsertDoNothing appends the ON CONFLICT DO NOTHING clause by hand.
// The builder cannot carry a conflict target for DO NOTHING, and a missing
// target would widen the conflict scope to every constraint on the table.
func (d Dialect) renderInsertDoNothing(ins *goqu.InsertDataset, stmt backend.InsertStatement) (string, error) {
	sqlQuery, _, toSQLErr := ins.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(backend.ErrBuildingQueryFailed, toSQLErr)
	}

	var sb strings.Builder
	sb.WriteString(sqlQuery)
	sb.WriteString(" ON CONFLICT")

	if len(stmt.Conflict.Target) > 0 {
		quoted := make([]string, len(stmt.Conflict.Target))
		for i, column := range stmt.Conflict.Target {
			quoted[i] = quoteIdentifier(column)
		}
		sb.WriteString(" (" + strings.Join(quoted, ", ") + ")")
	}

	sb.WriteString(" DO NOTHING")

	if len(stmt.Returning) > 0 {
		quoted := make([]string, len(stmt.Returning))
		for i, column := range stmt.Returning {
			quoted[i] = quoteIdentifier(column)
		}
		sb.WriteString(" RETURNING " + strings.Join(quoted, ", "))
	}

	return sb.String(), nil
}

// RenderUpdate renders an update statement into SQL text.
func (d Dialect) RenderUpdate(stmt backend.UpdateStatement) (string, error) {
	if stmt.Table == "" {
		return "", errors.Join(backend.ErrBuildingQueryFailed, ErrEmptyTableName)
	}

	if len(stmt.Set) == 0 {
		return "", errors.Join(backend.ErrBuildingQueryFailed, ErrUpdateWithoutSet)
	}

	upd := goqu.Dialect(dialectPostgres).
		Update(stmt.Table).
		Set(goqu.Record(stmt.Set))

	whereExpr, err := d.renderCondition(stmt.Where)
	if err != nil {
		return "", err
	}

	if whereExpr != nil {
		upd = upd.Where(whereExpr)
	}

	if len(stmt.Returning) > 0 {
		upd = upd.Returning(columnsToAny(stmt.Returning)...)
	}

	sqlQuery, _, toSQLErr := upd.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(backend.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// RenderDelete renders a delete statement into SQL text.
func (d Dialect) RenderDelete(stmt backend.DeleteStatement) (string, error) {
	if stmt.Table == "" {
		return "", errors.Join(backend.ErrBuildingQueryFailed, ErrEmptyTableName)
	}

	del := goqu.Dialect(dialectPostgres).Delete(stmt.Table)

	whereExpr, err := d.renderCondition(stmt.Where)
	if err != nil {
		return "", err
	}

	if whereExpr != nil {
		del = del.Where(whereExpr)
	}

	if len(stmt.Returning) > 0 {
		del = del.Returning(columnsToAny(stmt.Returning)...)
	}

	sqlQuery, _, toSQLErr := del.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(backend.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func (d Dialect) applyLocking(ds *goqu.SelectDataset, mode backend.LockMode) (*goqu.SelectDataset, error) {
	switch mode {
	case backend.LockNone:
		return ds, nil
	case backend.LockForUpdate:
		return ds.ForUpdate(exp.Wait), nil
	case backend.LockForUpdateNoWait:
		return ds.ForUpdate(exp.NoWait), nil
	case backend.LockForUpdateSkipLocked:
		if !d.caps.SupportsSkipLocked() {
			return nil, errors.Join(
				backend.ErrUnsupportedFeature,
				fmt.Errorf("SKIP LOCKED requires PostgreSQL 9.5, server is %s", d.caps.Version()),
			)
		}
		return ds.ForUpdate(exp.SkipLocked), nil
	default:
		return ds, nil
	}
}

//nolint:gocyclo // one case per condition node keeps the translation table in a single place
func (d Dialect) renderCondition(cond backend.Condition) (exp.Expression, error) {
	if cond == nil {
		return nil, nil
	}

	switch c := cond.(type) {
	case backend.Eq:
		return goqu.C(c.Column).Eq(c.Value), nil
	case backend.Neq:
		return goqu.C(c.Column).Neq(c.Value), nil
	case backend.Gt:
		return goqu.C(c.Column).Gt(c.Value), nil
	case backend.Gte:
		return goqu.C(c.Column).Gte(c.Value), nil
	case backend.Lt:
		return goqu.C(c.Column).Lt(c.Value), nil
	case backend.Lte:
		return goqu.C(c.Column).Lte(c.Value), nil
	case backend.In:
		return goqu.C(c.Column).In(c.Values...), nil
	case backend.Like:
		return goqu.C(c.Column).Like(c.Pattern), nil
	case backend.IsNull:
		return goqu.C(c.Column).IsNull(), nil
	case backend.NotNull:
		return goqu.C(c.Column).IsNotNull(), nil
	case backend.And:
		return d.renderConditionList(c, goqu.And)
	case backend.Or:
		return d.renderConditionList(c, goqu.Or)
	case backend.Not:
		inner, err := d.renderCondition(c.Cond)
		if err != nil {
			return nil, err
		}
		return goqu.L("NOT (?)", inner), nil
	case backend.JSONBContains:
		return d.renderJSONBContains(c)
	case backend.JSONBPath:
		return d.renderJSONBPath(c)
	case backend.ArrayContains:
		literal, err := arrayLiteral(c.Values)
		if err != nil {
			return nil, err
		}
		return goqu.L(quoteIdentifier(c.Column) + " @> " + literal), nil
	case backend.ArrayOverlaps:
		literal, err := arrayLiteral(c.Values)
		if err != nil {
			return nil, err
		}
		return goqu.L(quoteIdentifier(c.Column) + " && " + literal), nil
	case backend.AnyOf:
		return goqu.L(formatLiteral(c.Value) + " = ANY(" + quoteIdentifier(c.Column) + ")"), nil
	case backend.Raw:
		return goqu.L(c.SQL), nil
	default:
		return nil, errors.Join(backend.ErrBuildingQueryFailed, fmt.Errorf("unknown condition type %T", cond))
	}
}

func (d Dialect) renderConditionList(
	conds []backend.Condition,
	combine func(...exp.Expression) exp.ExpressionList,
) (exp.Expression, error) {

	if len(conds) == 0 {
		return nil, nil
	}

	rendered := make([]exp.Expression, 0, len(conds))

	for _, cond := range conds {
		expr, err := d.renderCondition(cond)
		if err != nil {
			return nil, err
		}

		if expr != nil {
			rendered = append(rendered, expr)
		}
	}

	if len(rendered) == 0 {
		return nil, nil
	}

	return combine(rendered...), nil
}

func (d Dialect) renderJSONBContains(c backend.JSONBContains) (exp.Expression, error) {
	if !d.caps.SupportsJSONB() {
		return nil, errors.Join(
			backend.ErrUnsupportedFeature,
			fmt.Errorf("JSONB requires PostgreSQL 9.4, server is %s", d.caps.Version()),
		)
	}

	doc, err := jsonDocument(c.Doc)
	if err != nil {
		return nil, errors.Join(backend.ErrBuildingQueryFailed, err)
	}

	return goqu.L(quoteIdentifier(c.Column) + " @> " + quoteLiteral(doc)), nil
}

func (d Dialect) renderJSONBPath(c backend.JSONBPath) (exp.Expression, error) {
	if !d.caps.SupportsJSONB() {
		return nil, errors.Join(
			backend.ErrUnsupportedFeature,
			fmt.Errorf("JSONB requires PostgreSQL 9.4, server is %s", d.caps.Version()),
		)
	}

	if len(c.Path) == 0 {
		return nil, errors.Join(backend.ErrBuildingQueryFailed, errors.New("empty json path"))
	}

	var lhs string
	if len(c.Path) == 1 {
		lhs = quoteIdentifier(c.Column) + "->>" + quoteLiteral(c.Path[0])
	} else {
		lhs = quoteIdentifier(c.Column) + " #>> " + quoteLiteral("{"+strings.Join(c.Path, ",")+"}")
	}

	return goqu.L(lhs + " = " + textLiteral(c.Value)), nil
}

// jsonDocument normalizes a JSONB document value to JSON text.
func jsonDocument(doc any) (string, error) {
	switch v := doc.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		encoded, err := jsonAPI.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// quoteIdentifier quotes an identifier PostgreSQL-style, doubling embedded quotes.
func quoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// quoteLiteral quotes a string literal PostgreSQL-style, doubling embedded quotes.
func quoteLiteral(literal string) string {
	return "'" + strings.ReplaceAll(literal, "'", "''") + "'"
}

// formatLiteral renders a value as an inline SQL literal.
func formatLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteLiteral(v)
	case []byte:
		return quoteLiteral(string(v))
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return quoteLiteral(v.Format(time.RFC3339Nano))
	case fmt.Stringer:
		return quoteLiteral(v.String())
	default:
		return quoteLiteral(fmt.Sprintf("%v", v))
	}
}

// textLiteral renders a value as a quoted text literal. The ->> and #>> JSONB
// operators return text, so the comparison side must be text as well or the
// server rejects the statement with a type mismatch.
func textLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		if v {
			return "'true'"
		}
		return "'false'"
	default:
		rendered := formatLiteral(v)
		if strings.HasPrefix(rendered, "'") {
			return rendered
		}
		return quoteLiteral(rendered)
	}
}

// arrayLiteral renders a slice of values as an inline ARRAY constructor.
// Empty arrays are rejected because the server cannot infer their type.
func arrayLiteral(values []any) (string, error) {
	if len(values) == 0 {
		return "", errors.Join(backend.ErrBuildingQueryFailed, errors.New("empty array literal"))
	}

	elements := make([]string, len(values))
	for i, v := range values {
		elements[i] = formatLiteral(v)
	}

	return "ARRAY[" + strings.Join(elements, ", ") + "]", nil
}

func columnsToAny(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = c
	}

	return out
}

package backend

// DataType is the generic column type vocabulary shared across backend adapters.
// Each engine maps these onto its own DDL type names.
type DataType int

const (
	TypeTinyInt DataType = iota
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeChar
	TypeVarchar
	TypeText
	TypeDate
	TypeTime
	TypeDateTime
	TypeTimestamp
	TypeBlob
	TypeBoolean
	TypeUUID
	TypeJSON
	TypeArray
	TypeCustom
)

func (t DataType) String() string {
	switch t {
	case TypeTinyInt:
		return "tinyint"
	case TypeSmallInt:
		return "smallint"
	case TypeInteger:
		return "integer"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeDecimal:
		return "decimal"
	case TypeChar:
		return "char"
	case TypeVarchar:
		return "varchar"
	case TypeText:
		return "text"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeDateTime:
		return "datetime"
	case TypeTimestamp:
		return "timestamp"
	case TypeBlob:
		return "blob"
	case TypeBoolean:
		return "boolean"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	case TypeArray:
		return "array"
	default:
		return "custom"
	}
}

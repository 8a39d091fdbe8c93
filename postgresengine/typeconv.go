package postgresengine

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ormkit/postgres-backend-go/backend"
)

var ErrValueConversionFailed = errors.New("value conversion failed")

// ValueAdapter converts Go values to and from their database representation
// for a set of data types. Adapters are consulted in registration order, so
// more specific adapters should be registered before general ones.
type ValueAdapter interface {
	DataTypes() []backend.DataType
	Handles(value any) bool
	ToDatabase(value any) (any, error)
	FromDatabase(value any) (any, error)
}

// AdapterRegistry holds value adapters in registration order and indexed by
// data type. The zero value is not usable, use NewAdapterRegistry.
type AdapterRegistry struct {
	ordered []ValueAdapter
	byType  map[backend.DataType]ValueAdapter
}

// NewAdapterRegistry creates a registry pre-populated with the built-in
// adapters for JSONB, UUID, network, time and decimal values.
func NewAdapterRegistry() *AdapterRegistry {
	registry := &AdapterRegistry{
		byType: make(map[backend.DataType]ValueAdapter),
	}

	registry.Register(uuidAdapter{})
	registry.Register(networkAdapter{})
	registry.Register(decimalAdapter{})
	registry.Register(timeAdapter{})
	registry.Register(jsonbAdapter{})

	return registry
}

// Register adds an adapter. For data types already covered the new adapter
// takes precedence.
func (r *AdapterRegistry) Register(adapter ValueAdapter) {
	r.ordered = append(r.ordered, adapter)

	for _, dt := range adapter.DataTypes() {
		r.byType[dt] = adapter
	}
}

// ForType returns the adapter registered for the given data type, if any.
func (r *AdapterRegistry) ForType(dt backend.DataType) (ValueAdapter, bool) {
	adapter, ok := r.byType[dt]
	return adapter, ok
}

// ToDatabase converts a value using the first adapter that handles it.
// Values no adapter handles are passed through unchanged.
func (r *AdapterRegistry) ToDatabase(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	for _, adapter := range r.ordered {
		if adapter.Handles(value) {
			converted, err := adapter.ToDatabase(value)
			if err != nil {
				return nil, errors.Join(ErrValueConversionFailed, err)
			}
			return converted, nil
		}
	}

	return value, nil
}

// FromDatabase converts a database value for the given data type.
// Types without a registered adapter pass through unchanged.
func (r *AdapterRegistry) FromDatabase(dt backend.DataType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	adapter, ok := r.byType[dt]
	if !ok {
		return value, nil
	}

	converted, err := adapter.FromDatabase(value)
	if err != nil {
		return nil, errors.Join(ErrValueConversionFailed, err)
	}

	return converted, nil
}

// jsonbAdapter stores maps and slices as JSON text for JSONB columns.
type jsonbAdapter struct{}

func (jsonbAdapter) DataTypes() []backend.DataType {
	return []backend.DataType{backend.TypeJSON, backend.TypeArray}
}

func (jsonbAdapter) Handles(value any) bool {
	switch value.(type) {
	case map[string]any, []any, []string, []int, []int64, []float64:
		return true
	default:
		return false
	}
}

func (jsonbAdapter) ToDatabase(value any) (any, error) {
	encoded, err := jsonAPI.Marshal(value)
	if err != nil {
		return nil, err
	}

	return string(encoded), nil
}

func (jsonbAdapter) FromDatabase(value any) (any, error) {
	var raw []byte

	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return value, nil
	}

	var decoded any
	if err := jsonAPI.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	return decoded, nil
}

// uuidAdapter converts uuid.UUID values to their canonical text form.
type uuidAdapter struct{}

func (uuidAdapter) DataTypes() []backend.DataType {
	return []backend.DataType{backend.TypeUUID}
}

func (uuidAdapter) Handles(value any) bool {
	_, ok := value.(uuid.UUID)
	return ok
}

func (uuidAdapter) ToDatabase(value any) (any, error) {
	id, ok := value.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("expected uuid.UUID, got %T", value)
	}

	return id.String(), nil
}

func (uuidAdapter) FromDatabase(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case [16]byte:
		return uuid.UUID(v), nil
	case []byte:
		return uuid.ParseBytes(v)
	case string:
		return uuid.Parse(v)
	default:
		return nil, fmt.Errorf("cannot decode %T as uuid", value)
	}
}

// networkAdapter converts netip addresses and prefixes for INET/CIDR columns,
// which arrive as text under the custom type.
type networkAdapter struct{}

func (networkAdapter) DataTypes() []backend.DataType {
	return []backend.DataType{backend.TypeCustom}
}

func (networkAdapter) Handles(value any) bool {
	switch value.(type) {
	case netip.Addr, netip.Prefix:
		return true
	default:
		return false
	}
}

func (networkAdapter) ToDatabase(value any) (any, error) {
	switch v := value.(type) {
	case netip.Addr:
		return v.String(), nil
	case netip.Prefix:
		return v.String(), nil
	default:
		return nil, fmt.Errorf("expected netip.Addr or netip.Prefix, got %T", value)
	}
}

func (networkAdapter) FromDatabase(value any) (any, error) {
	text, ok := value.(string)
	if !ok {
		return value, nil
	}

	if prefix, err := netip.ParsePrefix(text); err == nil {
		return prefix, nil
	}

	if addr, err := netip.ParseAddr(text); err == nil {
		return addr, nil
	}

	return value, nil
}

// timeAdapter normalizes time values to UTC.
type timeAdapter struct{}

func (timeAdapter) DataTypes() []backend.DataType {
	return []backend.DataType{backend.TypeDate, backend.TypeTime, backend.TypeDateTime, backend.TypeTimestamp}
}

func (timeAdapter) Handles(value any) bool {
	_, ok := value.(time.Time)
	return ok
}

func (timeAdapter) ToDatabase(value any) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("expected time.Time, got %T", value)
	}

	return t.UTC(), nil
}

func (timeAdapter) FromDatabase(value any) (any, error) {
	if t, ok := value.(time.Time); ok {
		return t.UTC(), nil
	}

	return value, nil
}

// decimalAdapter keeps NUMERIC values exact via shopspring decimals.
type decimalAdapter struct{}

func (decimalAdapter) DataTypes() []backend.DataType {
	return []backend.DataType{backend.TypeDecimal}
}

func (decimalAdapter) Handles(value any) bool {
	_, ok := value.(decimal.Decimal)
	return ok
}

func (decimalAdapter) ToDatabase(value any) (any, error) {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil, fmt.Errorf("expected decimal.Decimal, got %T", value)
	}

	return d.String(), nil
}

func (decimalAdapter) FromDatabase(value any) (any, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case []byte:
		return decimal.NewFromString(string(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return value, nil
	}
}

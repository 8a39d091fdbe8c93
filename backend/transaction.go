package backend

// IsolationLevel is the database-agnostic transaction isolation level.
type IsolationLevel int

const (
	LevelDefault IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelRepeatableRead
	LevelSerializable
)

func (l IsolationLevel) String() string {
	switch l {
	case LevelReadUncommitted:
		return "READ UNCOMMITTED"
	case LevelReadCommitted:
		return "READ COMMITTED"
	case LevelRepeatableRead:
		return "REPEATABLE READ"
	case LevelSerializable:
		return "SERIALIZABLE"
	default:
		return "DEFAULT"
	}
}

// TxState tracks the lifecycle of a managed transaction.
type TxState int

const (
	TxInactive TxState = iota
	TxActive
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	default:
		return "inactive"
	}
}

// TxOptions configures a transaction before it begins.
//
// Deferrable only takes effect with LevelSerializable; it is a tri-state so that
// an unset value emits no DEFERRABLE clause at all.
type TxOptions struct {
	Isolation  IsolationLevel
	ReadOnly   bool
	Deferrable *bool
}

package crud

// Operation names a single CRUD operation, using the same verbs the RPC
// path carries (e.g. "user/findMany").
type Operation string

const (
	OpFindUnique Operation = "findUnique"
	OpFindFirst  Operation = "findFirst"
	OpFindMany   Operation = "findMany"
	OpCount      Operation = "count"
	OpAggregate  Operation = "aggregate"
	OpGroupBy    Operation = "groupBy"
	OpCreate     Operation = "create"
	OpCreateMany Operation = "createMany"
	OpUpsert     Operation = "upsert"
	OpUpdate     Operation = "update"
	OpUpdateMany Operation = "updateMany"
	OpDelete     Operation = "delete"
	OpDeleteMany Operation = "deleteMany"
)

// IsRead reports whether op only reads data.
func (op Operation) IsRead() bool {
	switch op {
	case OpFindUnique, OpFindFirst, OpFindMany, OpCount, OpAggregate, OpGroupBy:
		return true
	}
	return false
}

// IsMutation reports whether op writes data.
func (op Operation) IsMutation() bool {
	switch op {
	case OpCreate, OpCreateMany, OpUpsert, OpUpdate, OpUpdateMany, OpDelete, OpDeleteMany:
		return true
	}
	return false
}

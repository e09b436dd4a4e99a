package authz

import "sort"

// Operation is the name of a tool exposed by the gateway.
type Operation string

const (
	OpCreateRecord       Operation = "create_record"
	OpReadRecords        Operation = "read_records"
	OpUpdateRecord       Operation = "update_record"
	OpDeleteRecord       Operation = "delete_record"
	OpGetTableSchema     Operation = "get_table_schema"
	OpExecuteCustomQuery Operation = "execute_custom_query"
	OpReadPassword       Operation = "read_password"
)

// Catalog is the complete, fixed set of operations in presentation order.
var Catalog = []Operation{
	OpCreateRecord,
	OpReadRecords,
	OpUpdateRecord,
	OpDeleteRecord,
	OpGetTableSchema,
	OpExecuteCustomQuery,
	OpReadPassword,
}

// IsKnown reports whether op is part of the catalog.
func IsKnown(op Operation) bool {
	for _, c := range Catalog {
		if c == op {
			return true
		}
	}
	return false
}

// OperationSet is an unordered set of operations.
type OperationSet map[Operation]struct{}

func NewOperationSet(ops ...Operation) OperationSet {
	s := make(OperationSet, len(ops))
	for _, op := range ops {
		s[op] = struct{}{}
	}
	return s
}

func (s OperationSet) Has(op Operation) bool {
	_, ok := s[op]
	return ok
}

// SubsetOf reports whether every member of s is in other.
func (s OperationSet) SubsetOf(other OperationSet) bool {
	for op := range s {
		if !other.Has(op) {
			return false
		}
	}
	return true
}

// Sorted returns the members as strings in lexical order.
func (s OperationSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for op := range s {
		out = append(out, string(op))
	}
	sort.Strings(out)
	return out
}

func (s OperationSet) clone() OperationSet {
	cp := make(OperationSet, len(s))
	for op := range s {
		cp[op] = struct{}{}
	}
	return cp
}

package storage

import (
	"context"

	"github.com/iudanet/passprotect/internal/models"
)

// Fields maps record column names to values. Used both for data to write
// and for equality conditions.
type Fields map[string]any

// RecordStorage defines interface for credential record persistence.
// Every row-level method takes the owning user id separately from the
// caller-supplied fields and always filters on it.
type RecordStorage interface {
	// InsertRecord inserts one record owned by ownerID and returns its id
	// Any owner column in data is ignored
	InsertRecord(ctx context.Context, ownerID int64, data Fields) (int64, error)

	// SelectRecords returns up to limit records owned by ownerID matching conditions
	SelectRecords(ctx context.Context, ownerID int64, conditions Fields, limit int) ([]*models.CredentialRecord, error)

	// UpdateRecords updates records owned by ownerID matching conditions
	// Returns number of affected rows; ErrEmptyConditions if conditions is empty
	UpdateRecords(ctx context.Context, ownerID int64, data, conditions Fields) (int64, error)

	// DeleteRecords deletes records owned by ownerID matching conditions
	// Returns number of affected rows; ErrEmptyConditions if conditions is empty
	DeleteRecords(ctx context.Context, ownerID int64, conditions Fields) (int64, error)

	// FindByCompany returns non-archived records owned by ownerID whose company
	// name equals company ignoring case, or contains it when partial is set
	FindByCompany(ctx context.Context, ownerID int64, company string, partial bool) ([]*models.CredentialRecord, error)

	// DescribeRecords returns column metadata of the record table
	DescribeRecords(ctx context.Context) ([]models.ColumnInfo, error)

	// QueryReadOnly runs a caller-written SELECT and returns rows as column maps
	QueryReadOnly(ctx context.Context, query string) ([]map[string]any, error)
}

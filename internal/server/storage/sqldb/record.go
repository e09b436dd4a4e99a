package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/storage"
)

const recordColumns = `id, created_by_user_id, "companyName", "companyPassword", "companyUserName", note, archived`

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// sortedKeys returns the field names in a stable order after checking each
// one against the record table.
func sortedKeys(fields storage.Fields) ([]string, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !models.IsRecordColumn(k) {
			return nil, fmt.Errorf("%w: %s", storage.ErrUnknownColumn, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// ownerWhere builds a WHERE clause that always starts with the owner filter.
func ownerWhere(ownerID int64, conditions storage.Fields) (string, []any, error) {
	keys, err := sortedKeys(conditions)
	if err != nil {
		return "", nil, err
	}

	clauses := []string{"created_by_user_id = ?"}
	args := []any{ownerID}
	for _, k := range keys {
		v := conditions[k]
		if v == nil {
			clauses = append(clauses, quoteIdent(k)+" IS NULL")
			continue
		}
		clauses = append(clauses, quoteIdent(k)+" = ?")
		args = append(args, v)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func scanRecords(rows *sql.Rows) ([]*models.CredentialRecord, error) {
	records := []*models.CredentialRecord{}
	for rows.Next() {
		r := &models.CredentialRecord{}
		var userName, note sql.NullString
		if err := rows.Scan(
			&r.ID,
			&r.OwnerID,
			&r.CompanyName,
			&r.CompanyPassword,
			&userName,
			&note,
			&r.Archived,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.CompanyUserName = userName.String
		r.Note = note.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// InsertRecord inserts one record owned by ownerID and returns its id
func (s *Storage) InsertRecord(ctx context.Context, ownerID int64, data storage.Fields) (int64, error) {
	keys, err := sortedKeys(data)
	if err != nil {
		return 0, err
	}

	columns := []string{"created_by_user_id"}
	placeholders := []string{"?"}
	args := []any{ownerID}
	for _, k := range keys {
		if k == models.ColumnOwner || k == models.ColumnID {
			continue
		}
		columns = append(columns, quoteIdent(k))
		placeholders = append(placeholders, "?")
		args = append(args, data[k])
	}

	query := s.dialect.rebind(fmt.Sprintf(
		"INSERT INTO passprotect (%s) VALUES (%s) RETURNING id",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	))

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return id, nil
}

// SelectRecords returns up to limit records owned by ownerID matching conditions
func (s *Storage) SelectRecords(ctx context.Context, ownerID int64, conditions storage.Fields, limit int) ([]*models.CredentialRecord, error) {
	where, args, err := ownerWhere(ownerID, conditions)
	if err != nil {
		return nil, err
	}

	query := s.dialect.rebind("SELECT " + recordColumns + " FROM passprotect" + where + " ORDER BY id LIMIT ?")
	args = append(args, limit)

	var records []*models.CredentialRecord
	err = s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query records: %w", err)
		}
		defer rows.Close()

		records, err = scanRecords(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// UpdateRecords updates records owned by ownerID matching conditions
func (s *Storage) UpdateRecords(ctx context.Context, ownerID int64, data, conditions storage.Fields) (int64, error) {
	if len(conditions) == 0 {
		return 0, storage.ErrEmptyConditions
	}

	keys, err := sortedKeys(data)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+len(conditions)+1)
	for _, k := range keys {
		if k == models.ColumnOwner || k == models.ColumnID {
			return 0, fmt.Errorf("%w: %s", storage.ErrImmutableColumn, k)
		}
		sets = append(sets, quoteIdent(k)+" = ?")
		args = append(args, data[k])
	}

	where, whereArgs, err := ownerWhere(ownerID, conditions)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	query := s.dialect.rebind("UPDATE passprotect SET " + strings.Join(sets, ", ") + where)
	return s.execAffected(ctx, query, args, "update records")
}

// DeleteRecords deletes records owned by ownerID matching conditions
func (s *Storage) DeleteRecords(ctx context.Context, ownerID int64, conditions storage.Fields) (int64, error) {
	if len(conditions) == 0 {
		return 0, storage.ErrEmptyConditions
	}

	where, args, err := ownerWhere(ownerID, conditions)
	if err != nil {
		return 0, err
	}

	query := s.dialect.rebind("DELETE FROM passprotect" + where)
	return s.execAffected(ctx, query, args, "delete records")
}

func (s *Storage) execAffected(ctx context.Context, query string, args []any, what string) (int64, error) {
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to %s: %w", what, err)
		}

		affected, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

// FindByCompany returns non-archived records owned by ownerID matched by
// company name. Case is folded with Unicode rules on both sides.
func (s *Storage) FindByCompany(ctx context.Context, ownerID int64, company string, partial bool) ([]*models.CredentialRecord, error) {
	lower := s.dialect.lower
	match := lower + `("companyName") = ` + lower + `(?)`
	arg := company
	if partial {
		match = lower + `("companyName") LIKE ? ESCAPE '\'`
		arg = "%" + escapeLike(strings.ToLower(company)) + "%"
	}

	query := s.dialect.rebind("SELECT " + recordColumns + ` FROM passprotect
		WHERE created_by_user_id = ? AND archived = ? AND ` + match + `
		ORDER BY id`)

	var records []*models.CredentialRecord
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, ownerID, false, arg)
		if err != nil {
			return fmt.Errorf("failed to query records: %w", err)
		}
		defer rows.Close()

		records, err = scanRecords(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// DescribeRecords returns column metadata of the record table
func (s *Storage) DescribeRecords(ctx context.Context) ([]models.ColumnInfo, error) {
	var columns []models.ColumnInfo
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var err error
		columns, err = s.dialect.describe(ctx, conn)
		return err
	})
	if err != nil {
		return nil, err
	}

	return columns, nil
}

// QueryReadOnly runs a caller-written SELECT with writes disabled on the
// connection and returns rows as column maps
func (s *Storage) QueryReadOnly(ctx context.Context, query string) ([]map[string]any, error) {
	var result []map[string]any
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		return s.dialect.readOnly(ctx, conn, func(q querier) error {
			rows, err := q.QueryContext(ctx, query)
			if err != nil {
				return fmt.Errorf("failed to run query: %w", err)
			}
			defer rows.Close()

			result, err = scanMaps(rows)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

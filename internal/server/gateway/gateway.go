// Package gateway executes tool calls against the credential record table.
// It is the only component that touches record storage on behalf of a caller,
// and it takes the owning user id from the verified identity alone.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/iudanet/passprotect/internal/apperr"
	"github.com/iudanet/passprotect/internal/models"
	"github.com/iudanet/passprotect/internal/server/authz"
	"github.com/iudanet/passprotect/internal/server/identity"
	"github.com/iudanet/passprotect/internal/server/metrics"
	"github.com/iudanet/passprotect/internal/server/storage"
)

// Gateway runs allow-listed, owner-scoped tool calls.
type Gateway struct {
	records storage.RecordStorage
	policy  *authz.Policy
	logger  *slog.Logger
}

// New creates a new tool gateway
func New(records storage.RecordStorage, policy *authz.Policy, logger *slog.Logger) *Gateway {
	return &Gateway{
		records: records,
		policy:  policy,
		logger:  logger,
	}
}

// Tools returns the catalog entries the role set may invoke.
func (g *Gateway) Tools(roles []string) []Tool {
	return Filter(g.policy.AllowedOperations(roles))
}

// Invoke runs one tool call for the caller. The allow-list is recomputed from
// id.Roles on every call; a denied call never reaches storage. Zero affected
// rows on update or delete is a normal result, not an error.
func (g *Gateway) Invoke(ctx context.Context, id identity.Identity, name string, rawArgs json.RawMessage) (*Result, error) {
	op := authz.Operation(name)
	opName := "gateway." + name

	if id.UserID <= 0 {
		return nil, apperr.New(apperr.KindTokenInvalid, opName, "no verified identity")
	}

	if !authz.IsKnown(op) {
		metrics.RecordTool("unknown", metrics.OutcomeInvalid)
		return nil, apperr.Validation(opName, "Unknown tool: %s", name)
	}

	if !g.policy.AllowedOperations(id.Roles).Has(op) {
		metrics.RecordTool(name, metrics.OutcomeDenied)
		metrics.RecordAuth(metrics.AuthDenied)
		g.logger.Warn("Tool call denied",
			slog.Int64("user_id", id.UserID),
			slog.String("username", id.Username),
			slog.String("tool", name),
			slog.Any("roles", id.Roles),
		)
		return nil, apperr.Authorization(opName, fmt.Sprintf("tool %s not allowed for roles %v", name, id.Roles))
	}

	args, err := decodeArgs(rawArgs)
	if err != nil {
		metrics.RecordTool(name, metrics.OutcomeInvalid)
		return nil, apperr.Validation(opName, "Invalid arguments: %v", err)
	}

	result, err := g.dispatch(ctx, id.UserID, op, args)
	switch {
	case err == nil:
		outcome := metrics.OutcomeOK
		if a, ok := result.Payload.(Affected); ok && a.Rows == 0 {
			outcome = metrics.OutcomeNoMatch
		}
		metrics.RecordTool(name, outcome)
		g.logger.Debug("Tool call completed",
			slog.Int64("user_id", id.UserID),
			slog.String("tool", name),
			slog.String("outcome", outcome),
		)
		return result, nil
	case apperr.IsKind(err, apperr.KindValidation):
		metrics.RecordTool(name, metrics.OutcomeInvalid)
		return nil, err
	default:
		metrics.RecordTool(name, metrics.OutcomeError)
		g.logger.Error("Tool call failed",
			slog.Int64("user_id", id.UserID),
			slog.String("tool", name),
			slog.Any("error", err),
		)
		return nil, apperr.Storage(opName, err)
	}
}

func (g *Gateway) dispatch(ctx context.Context, owner int64, op authz.Operation, args *toolArgs) (*Result, error) {
	switch op {
	case authz.OpCreateRecord:
		return g.createRecord(ctx, owner, args)
	case authz.OpReadRecords:
		return g.readRecords(ctx, owner, args)
	case authz.OpUpdateRecord:
		return g.updateRecord(ctx, owner, args)
	case authz.OpDeleteRecord:
		return g.deleteRecord(ctx, owner, args)
	case authz.OpGetTableSchema:
		return g.tableSchema(ctx)
	case authz.OpExecuteCustomQuery:
		return g.customQuery(ctx, args)
	case authz.OpReadPassword:
		return g.readPassword(ctx, owner, args)
	default:
		return nil, apperr.Validation("gateway.dispatch", "Unknown tool: %s", op)
	}
}

func (g *Gateway) createRecord(ctx context.Context, owner int64, args *toolArgs) (*Result, error) {
	const op = "gateway.create_record"

	if len(args.Data) == 0 {
		return nil, apperr.Validation(op, "Error: No data provided")
	}

	data, err := normalizeFields(args.Data)
	if err != nil {
		return nil, apperr.Validation(op, "Error: %v", err)
	}
	if _, ok := data[models.ColumnOwner]; ok {
		g.logger.Warn("Ignoring owner supplied in record data", slog.Int64("user_id", owner))
		delete(data, models.ColumnOwner)
	}
	delete(data, models.ColumnID)

	for _, required := range []string{models.ColumnCompanyName, models.ColumnCompanyPassword} {
		if s, _ := data[required].(string); s == "" {
			return nil, apperr.Validation(op, "Error: %s is required", required)
		}
	}

	id, err := g.records.InsertRecord(ctx, owner, data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:    fmt.Sprintf("Record created successfully. Insert ID: %d, Affected rows: 1", id),
		Payload: Created{ID: id},
	}, nil
}

func (g *Gateway) readRecords(ctx context.Context, owner int64, args *toolArgs) (*Result, error) {
	conditions, err := normalizeFields(args.Conditions)
	if err != nil {
		return nil, apperr.Validation("gateway.read_records", "Error: %v", err)
	}

	records, err := g.records.SelectRecords(ctx, owner, conditions, args.limit())
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:    fmt.Sprintf("Found %d record(s):", len(records)),
		Payload: records,
	}, nil
}

func (g *Gateway) updateRecord(ctx context.Context, owner int64, args *toolArgs) (*Result, error) {
	const op = "gateway.update_record"

	if len(args.Data) == 0 {
		return nil, apperr.Validation(op, "Error: No data provided for update")
	}
	if len(args.Conditions) == 0 {
		return nil, apperr.Validation(op,
			"Error: No conditions provided. Update requires conditions to prevent accidental full table update.")
	}

	data, err := normalizeFields(args.Data)
	if err != nil {
		return nil, apperr.Validation(op, "Error: %v", err)
	}
	for _, immutable := range []string{models.ColumnID, models.ColumnOwner} {
		if _, ok := data[immutable]; ok {
			return nil, apperr.Validation(op, "Error: column %q cannot be updated", immutable)
		}
	}

	conditions, err := normalizeFields(args.Conditions)
	if err != nil {
		return nil, apperr.Validation(op, "Error: %v", err)
	}

	affected, err := g.records.UpdateRecords(ctx, owner, data, conditions)
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		return &Result{Text: "No matching record: nothing was updated.", Payload: Affected{}}, nil
	}
	return &Result{
		Text:    fmt.Sprintf("Update successful. Affected rows: %d", affected),
		Payload: Affected{Rows: affected},
	}, nil
}

func (g *Gateway) deleteRecord(ctx context.Context, owner int64, args *toolArgs) (*Result, error) {
	const op = "gateway.delete_record"

	if len(args.Conditions) == 0 {
		return nil, apperr.Validation(op,
			"Error: No conditions provided. Delete requires conditions to prevent accidental full table deletion.")
	}

	conditions, err := normalizeFields(args.Conditions)
	if err != nil {
		return nil, apperr.Validation(op, "Error: %v", err)
	}

	affected, err := g.records.DeleteRecords(ctx, owner, conditions)
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		return &Result{Text: "No matching record: nothing was deleted.", Payload: Affected{}}, nil
	}
	return &Result{
		Text:    fmt.Sprintf("Delete successful. Affected rows: %d", affected),
		Payload: Affected{Rows: affected},
	}, nil
}

func (g *Gateway) tableSchema(ctx context.Context) (*Result, error) {
	columns, err := g.records.DescribeRecords(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Text: "Table schema:", Payload: columns}, nil
}

func (g *Gateway) customQuery(ctx context.Context, args *toolArgs) (*Result, error) {
	const op = "gateway.execute_custom_query"

	query := strings.TrimSpace(args.Query)
	if query == "" {
		return nil, apperr.Validation(op, "Error: No query provided")
	}
	if !strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return nil, apperr.Validation(op, "Error: Only SELECT queries are allowed")
	}

	rows, err := g.records.QueryReadOnly(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Result{Text: "Query results:", Payload: rows}, nil
}

// readPassword looks up by exact company name ignoring case, falling back to
// a substring match when nothing matches exactly.
func (g *Gateway) readPassword(ctx context.Context, owner int64, args *toolArgs) (*Result, error) {
	company := strings.TrimSpace(args.Company)
	if company == "" {
		return nil, apperr.Validation("gateway.read_password", "Error: Company name is required")
	}

	records, err := g.records.FindByCompany(ctx, owner, company, false)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		records, err = g.records.FindByCompany(ctx, owner, company, true)
		if err != nil {
			return nil, err
		}
	}

	switch len(records) {
	case 0:
		return &Result{Text: fmt.Sprintf("Not found: No password for company '%s'", company)}, nil
	case 1:
		return &Result{
			Text:    fmt.Sprintf("Password for %s:", records[0].CompanyName),
			Payload: records[0],
		}, nil
	default:
		names := make([]string, 0, len(records))
		for _, r := range records {
			names = append(names, r.CompanyName)
		}
		return &Result{
			Text: fmt.Sprintf("Found %d records matching '%s' (%s). Please specify which one you mean.",
				len(records), company, strings.Join(names, ", ")),
			Payload: records,
		}, nil
	}
}

package gateway

import (
	"encoding/json"

	"github.com/iudanet/passprotect/internal/server/authz"
)

// Tool describes one operation for a planner: its name, what it does and the
// JSON schema of its arguments.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

var catalog = map[authz.Operation]Tool{
	authz.OpCreateRecord: {
		Name:        string(authz.OpCreateRecord),
		Description: "Create a new record in the passprotect table. Provide field names and values as JSON.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"data": {
					"type": "object",
					"description": "Field names and values to insert (e.g., {'companyName': 'Gmail', 'companyPassword': 'secret123'})"
				}
			},
			"required": ["data"]
		}`),
	},
	authz.OpReadRecords: {
		Name:        string(authz.OpReadRecords),
		Description: "Read records from the passprotect table. Can filter by conditions and limit results.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conditions": {
					"type": "object",
					"description": "Filter conditions as key-value pairs (e.g., {'id': 1, 'companyName': 'Gmail'})",
					"default": {}
				},
				"limit": {
					"type": "integer",
					"description": "Maximum number of records to return",
					"default": 100
				}
			}
		}`),
	},
	authz.OpUpdateRecord: {
		Name:        string(authz.OpUpdateRecord),
		Description: "Update existing record(s) in the passprotect table based on conditions.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"data": {
					"type": "object",
					"description": "Fields to update with new values (e.g., {'companyPassword': 'newpass123'})"
				},
				"conditions": {
					"type": "object",
					"description": "Conditions to match records (e.g., {'id': 1})"
				}
			},
			"required": ["data", "conditions"]
		}`),
	},
	authz.OpDeleteRecord: {
		Name:        string(authz.OpDeleteRecord),
		Description: "Delete record(s) from the passprotect table based on conditions.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"conditions": {
					"type": "object",
					"description": "Conditions to match records to delete (e.g., {'id': 1})"
				}
			},
			"required": ["conditions"]
		}`),
	},
	authz.OpGetTableSchema: {
		Name:        string(authz.OpGetTableSchema),
		Description: "Get the schema/structure of the passprotect table including column names and types.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {}
		}`),
	},
	authz.OpExecuteCustomQuery: {
		Name:        string(authz.OpExecuteCustomQuery),
		Description: "Execute a custom SQL SELECT query on the passprotect table. Use with caution.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Custom SQL SELECT query to execute"
				}
			},
			"required": ["query"]
		}`),
	},
	authz.OpReadPassword: {
		Name:        string(authz.OpReadPassword),
		Description: "Read a password for a specific company. Only returns passwords belonging to the authenticated user. User identity is automatically enforced.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"company": {
					"type": "string",
					"description": "The company name to retrieve the password for"
				}
			},
			"required": ["company"]
		}`),
	},
}

// Catalog returns every tool in catalog order.
func Catalog() []Tool {
	tools := make([]Tool, 0, len(authz.Catalog))
	for _, op := range authz.Catalog {
		tools = append(tools, catalog[op])
	}
	return tools
}

// Filter returns the tools in allowed, in catalog order.
func Filter(allowed authz.OperationSet) []Tool {
	tools := make([]Tool, 0, len(allowed))
	for _, op := range authz.Catalog {
		if allowed.Has(op) {
			tools = append(tools, catalog[op])
		}
	}
	return tools
}

// Package query implements the three read-oriented database operations
// exposed by querybridge: read_data, list_table and describe_table.
//
// The operation names, argument field names and their requiredness are part
// of the external contract and must not change without a version bump.
package query

import "github.com/querybridge/querybridge/pkg/mcp"

// Operation names as surfaced to clients.
const (
	OpReadData      = "read_data"
	OpListTable     = "list_table"
	OpDescribeTable = "describe_table"
)

// Descriptors returns the static operation descriptors surfaced via
// tools/list. The returned slice is freshly allocated on each call so
// callers cannot mutate the shared contract.
func Descriptors() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        OpReadData,
			Description: "Execute a read-only SELECT query against the database",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.Property{
					"query": {
						Type:        "string",
						Description: "The SELECT statement to execute",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        OpListTable,
			Description: "List base tables, optionally filtered by schema name",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.Property{
					"parameters": {
						Type:        "array",
						Description: "Schema names to filter by",
						Items:       &mcp.Property{Type: "string"},
					},
				},
				Required: []string{},
			},
		},
		{
			Name:        OpDescribeTable,
			Description: "Describe the columns of a table",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.Property{
					"tableName": {
						Type:        "string",
						Description: "Name of the table to describe",
					},
				},
				Required: []string{"tableName"},
			},
		},
	}
}

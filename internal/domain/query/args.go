package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReadQueryArgs are the validated arguments of the read_data operation.
type ReadQueryArgs struct {
	Query string `json:"query"`
}

// ListTablesArgs are the validated arguments of the list_table operation.
type ListTablesArgs struct {
	Parameters []string `json:"parameters"`
}

// DescribeTableArgs are the validated arguments of the describe_table operation.
type DescribeTableArgs struct {
	TableName string `json:"tableName"`
}

// ParseReadQueryArgs decodes and validates read_data arguments.
//
// The only statement-level check is the SELECT prefix: the statement body is
// executed verbatim and is neither parsed nor sanitized. This is a deliberate,
// documented trust boundary for callers drawn from a controlled agent
// platform, not a general-purpose SQL filter.
func ParseReadQueryArgs(raw json.RawMessage) (ReadQueryArgs, error) {
	var args ReadQueryArgs
	if err := decodeStrict(raw, &args); err != nil {
		return args, &ValidationError{Reason: fmt.Sprintf("invalid read_data arguments: %v", err)}
	}
	if args.Query == "" {
		return args, &ValidationError{Reason: "query parameter is required and must be a string"}
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(args.Query)), "SELECT") {
		return args, &ValidationError{Reason: "only SELECT queries are allowed"}
	}
	return args, nil
}

// ParseListTablesArgs decodes and validates list_table arguments.
// The parameters array is optional; when present every element must be a string.
func ParseListTablesArgs(raw json.RawMessage) (ListTablesArgs, error) {
	var args ListTablesArgs
	if err := decodeStrict(raw, &args); err != nil {
		return args, &ValidationError{Reason: fmt.Sprintf("invalid list_table arguments: %v", err)}
	}
	return args, nil
}

// ParseDescribeTableArgs decodes and validates describe_table arguments.
func ParseDescribeTableArgs(raw json.RawMessage) (DescribeTableArgs, error) {
	var args DescribeTableArgs
	if err := decodeStrict(raw, &args); err != nil {
		return args, &ValidationError{Reason: fmt.Sprintf("invalid describe_table arguments: %v", err)}
	}
	if args.TableName == "" {
		return args, &ValidationError{Reason: "tableName parameter is required and must be a string"}
	}
	return args, nil
}

// decodeStrict unmarshals raw JSON into dst, treating nil/empty input as an
// empty object so optional-argument operations accept an absent payload.
// Type mismatches (e.g. a number where a string is required) surface as
// errors rather than zero values.
func decodeStrict(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	return dec.Decode(dst)
}

// Package warehouse exposes the backing data warehouse as a tool with two
// actions: fetching schema metadata and executing read-only SQL.
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorvus/datachat/internal/util"
	"github.com/quorvus/datachat/tool"
)

// Action discriminates the operations the tool supports.
type Action string

const (
	// ActionGetMetadata returns table/column structure for the configured schemas.
	ActionGetMetadata Action = "GET_METADATA"
	// ActionQuery executes a read-only SQL query.
	ActionQuery Action = "QUERY"
)

// Input is the typed argument schema exposed to the model.
type Input struct {
	Action Action `json:"action" description:"GET_METADATA returns the table structure of the warehouse; QUERY executes a read-only SQL query." enum:"GET_METADATA|QUERY"`
	Query  string `json:"query,omitempty" description:"The SQL query to execute, required for the QUERY action."`
}

const description = `Query the analytics warehouse using SQL. ` +
	`Converts questions about the available datasets into SQL and executes it. ` +
	`IMPORTANT: strictly follow this order of actions: ` +
	`1. GET_METADATA - get the table structure (metadata). ` +
	`2. QUERY - execute the generated SQL query. ` +
	`ALWAYS retrieve the metadata first. ` +
	`Only read-only statements (SELECT, SHOW, DESC) are accepted. ` +
	`Provide retrieved data every time to serve as objective evidence for your answers.`

// Options configure the warehouse tool.
type Options struct {
	// Schemas limits metadata discovery to the listed warehouse schemas.
	Schemas []string
	// QueryTimeout bounds a single statement.
	QueryTimeout time.Duration
}

// Tool implements tool.Tool over a pgx connection pool.
type Tool struct {
	pool         *pgxpool.Pool
	schemas      []string
	queryTimeout time.Duration
}

var _ tool.Tool = (*Tool)(nil)

// New constructs the warehouse tool around an established pool.
func New(pool *pgxpool.Pool, optFns ...func(o *Options)) *Tool {
	opts := Options{
		Schemas:      []string{"public"},
		QueryTimeout: 30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tool{pool: pool, schemas: opts.Schemas, queryTimeout: opts.QueryTimeout}
}

// Name implements tool.Tool.
func (t *Tool) Name() string { return "warehouse_query" }

// Description implements tool.Tool.
func (t *Tool) Description() string { return description }

// Parameters implements tool.Tool. The schema is derived from Input.
func (t *Tool) Parameters() map[string]any {
	return util.CreateSchema(Input{})
}

// Call implements tool.Tool. Validation failures surface synchronously as
// *tool.ToolError; execution failures are wrapped as retryable errors so the
// executor can fold them back into the conversation. Call telemetry is the
// executor's job.
func (t *Tool) Call(ctx context.Context, args map[string]any) (any, error) {
	action, _ := args["action"].(string)
	query, _ := args["query"].(string)

	out, err := t.run(ctx, Action(action), query)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tool) run(ctx context.Context, action Action, query string) (tool.Output, error) {
	switch action {
	case ActionGetMetadata:
		return t.getMetadata(ctx)
	case ActionQuery:
		if strings.TrimSpace(query) == "" {
			return tool.Output{}, tool.NewToolError(t.Name(), "SQL query is required for the QUERY action", tool.CodeValidation)
		}
		return t.executeQuery(ctx, query)
	default:
		return tool.Output{}, tool.NewToolError(t.Name(), fmt.Sprintf("invalid action %q", action), tool.CodeValidation)
	}
}

// getMetadata lists column structure for the configured schemas so the model
// can ground generated SQL in the real tables.
func (t *Tool) getMetadata(ctx context.Context) (tool.Output, error) {
	if t.pool == nil {
		return tool.Output{}, tool.NewToolError(t.Name(), "warehouse connection is not configured", tool.CodeConnection)
	}

	ctx, cancel := context.WithTimeout(ctx, t.queryTimeout)
	defer cancel()

	const metadataQuery = `
		SELECT table_schema, table_name, column_name, data_type, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ANY($1)
		ORDER BY table_schema, table_name, ordinal_position`

	rows, err := t.pool.Query(ctx, metadataQuery, t.schemas)
	if err != nil {
		return tool.Output{}, tool.NewToolError(t.Name(), fmt.Sprintf("unable to read warehouse metadata: %v", err), tool.CodeConnection)
	}
	defer rows.Close()

	records, err := collectRows(rows)
	if err != nil {
		return tool.Output{}, tool.NewToolError(t.Name(), fmt.Sprintf("unable to read warehouse metadata: %v", err), tool.CodeConnection)
	}

	return tool.Output{Success: true, Results: records}, nil
}

// executeQuery runs a read-only statement. Rejected statements and empty
// result sets are soft failures inside the output envelope; backend errors
// are returned as retryable tool errors carrying guidance for the model.
func (t *Tool) executeQuery(ctx context.Context, query string) (tool.Output, error) {
	if !IsReadOnlyQuery(query) {
		return tool.Output{Success: false, Error: "Invalid query. Only SELECT queries are allowed."}, nil
	}

	if t.pool == nil {
		return tool.Output{}, tool.NewToolError(t.Name(), "warehouse connection is not configured", tool.CodeConnection)
	}

	ctx, cancel := context.WithTimeout(ctx, t.queryTimeout)
	defer cancel()

	rows, err := t.pool.Query(ctx, query)
	if err != nil {
		return tool.Output{}, t.queryError(query, err)
	}
	defer rows.Close()

	records, err := collectRows(rows)
	if err != nil {
		return tool.Output{}, t.queryError(query, err)
	}

	if len(records) == 0 {
		return tool.Output{Success: false, Error: "No rows selected"}, nil
	}
	return tool.Output{Success: true, Results: records}, nil
}

// queryError steers the model toward a corrected statement on the next
// attempt by echoing the original request alongside the cause.
func (t *Tool) queryError(query string, err error) *tool.ToolError {
	msg := fmt.Sprintf(
		"Generate a correct query that retrieves data using the appropriate dialect. The original request was: %s, and the error was: %v",
		query, err,
	)
	return tool.NewToolError(t.Name(), msg, tool.CodeExecution)
}

// IsReadOnlyQuery reports whether the statement is a read-only query. The
// check is a case and whitespace insensitive prefix match on
// SELECT / SHOW / DESC.
func IsReadOnlyQuery(query string) bool {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(normalized, "SELECT") ||
		strings.HasPrefix(normalized, "SHOW") ||
		strings.HasPrefix(normalized, "DESC")
}

// collectRows renders a pgx result set as ordered column/value records.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	var records []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		record := make(map[string]any, len(fields))
		for i, fd := range fields {
			record[fd.Name] = values[i]
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

package commands

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyStatement = errors.New("empty sql statement")

// Querier is the part of *sql.DB the SQL commands need.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type sqlArgs struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// ExecResult mirrors what the frontend receives from an execute call.
type ExecResult struct {
	RowsAffected int64 `json:"rowsAffected"`
	LastInsertID int64 `json:"lastInsertId"`
}

func decodeSQLArgs(raw json.RawMessage) (sqlArgs, error) {
	var in sqlArgs
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(in.SQL) == "" {
		return in, ErrEmptyStatement
	}
	for i, p := range in.Params {
		n, ok := p.(json.Number)
		if !ok {
			continue
		}
		if v, err := n.Int64(); err == nil {
			in.Params[i] = v
		} else if f, err := n.Float64(); err == nil {
			in.Params[i] = f
		} else {
			return in, fmt.Errorf("param %d: %w", i, err)
		}
	}
	return in, nil
}

// Select runs a query and returns each row as an array of column values in
// select-list order. Text and blob columns are returned as strings.
func Select(ctx context.Context, q Querier, query string, params ...any) ([][]any, error) {
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := [][]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// Execute runs a statement that returns no rows.
func Execute(ctx context.Context, q Querier, query string, params ...any) (ExecResult, error) {
	res, err := q.ExecContext(ctx, query, params...)
	if err != nil {
		return ExecResult{}, err
	}
	var out ExecResult
	// drivers that cannot report these leave them at zero
	out.RowsAffected, _ = res.RowsAffected()
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

// RegisterSQL installs the "select" and "execute" commands against q. Both
// take {"sql": "...", "params": [...]}.
func RegisterSQL(r *Registry, q Querier) error {
	err := r.Register("select", func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decodeSQLArgs(raw)
		if err != nil {
			return nil, err
		}
		return Select(ctx, q, in.SQL, in.Params...)
	})
	if err != nil {
		return err
	}
	return r.Register("execute", func(ctx context.Context, raw json.RawMessage) (any, error) {
		in, err := decodeSQLArgs(raw)
		if err != nil {
			return nil, err
		}
		return Execute(ctx, q, in.SQL, in.Params...)
	})
}

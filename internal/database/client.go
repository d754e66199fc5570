package database

import (
	"context"
	"fmt"

	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Client implements crud.Client on top of a pgx pool.
//
// Every model and field it touches must be declared in its ModelMeta.
type Client struct {
	db     DBTX
	meta   *crud.ModelMeta
	logger *zerolog.Logger
}

var _ crud.Client = (*Client)(nil)

// NewClient creates a Client. logger may be nil.
func NewClient(db DBTX, meta *crud.ModelMeta, logger *zerolog.Logger) *Client {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{db: db, meta: meta, logger: logger}
}

// Do executes a single operation against model.
func (c *Client) Do(ctx context.Context, model string, op crud.Operation, args crud.Args) (any, error) {
	info, ok := c.meta.Lookup(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", crud.ErrUnknownModel, model)
	}
	if args == nil {
		args = crud.Args{}
	}

	b := newBuilder(info)

	switch op {
	case crud.OpFindMany:
		return c.findMany(ctx, b, args)
	case crud.OpFindFirst:
		return c.findOne(ctx, b, args, false)
	case crud.OpFindUnique:
		return c.findOne(ctx, b, args, true)
	case crud.OpCount:
		return c.count(ctx, b, args)
	case crud.OpAggregate:
		return c.aggregate(ctx, b, args)
	case crud.OpCreate:
		return c.create(ctx, b, args)
	case crud.OpCreateMany:
		return c.createMany(ctx, b, args)
	case crud.OpUpdate:
		return c.mutateOne(ctx, b, (*builder).updateSQL, args)
	case crud.OpUpdateMany:
		return c.mutateMany(ctx, b, (*builder).updateSQL, args)
	case crud.OpUpsert:
		return c.upsert(ctx, info, args)
	case crud.OpDelete:
		return c.mutateOne(ctx, b, (*builder).deleteSQL, args)
	case crud.OpDeleteMany:
		return c.mutateMany(ctx, b, (*builder).deleteSQL, args)
	default:
		return nil, fmt.Errorf("%w: %s", crud.ErrUnsupportedOperation, op)
	}
}

func (c *Client) query(ctx context.Context, b *builder, sql string) ([]map[string]any, error) {
	c.logger.Debug().Str("sql", sql).Int("params", len(b.args)).Msg("executing query")

	rows, err := c.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToMap)
}

func (c *Client) findMany(ctx context.Context, b *builder, args crud.Args) (any, error) {
	sql, err := b.selectSQL(args, 0)
	if err != nil {
		return nil, err
	}
	rows, err := c.query(ctx, b, sql)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// findOne returns the first match, or nil when nothing matched.
func (c *Client) findOne(ctx context.Context, b *builder, args crud.Args, unique bool) (any, error) {
	if unique {
		if w, _ := args["where"].(map[string]any); len(w) == 0 {
			return nil, fmt.Errorf("%w: findUnique requires where", crud.ErrInvalidArgs)
		}
	}

	sql, err := b.selectSQL(args, 1)
	if err != nil {
		return nil, err
	}
	rows, err := c.query(ctx, b, sql)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (c *Client) count(ctx context.Context, b *builder, args crud.Args) (any, error) {
	sql, err := b.countSQL(args)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectExactlyOneRow(rows, pgx.RowTo[int64])
}

func (c *Client) aggregate(ctx context.Context, b *builder, args crud.Args) (any, error) {
	sql, specs, err := b.aggregateSQL(args)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	values, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) ([]any, error) {
		return row.Values()
	})
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	for i, cell := range specs {
		if cell.field == "" {
			out[cell.group] = values[i]
			continue
		}
		group, _ := out[cell.group].(map[string]any)
		if group == nil {
			group = map[string]any{}
			out[cell.group] = group
		}
		group[cell.field] = values[i]
	}
	return out, nil
}

func (c *Client) create(ctx context.Context, b *builder, args crud.Args) (any, error) {
	sql, err := b.insertSQL(args["data"], args["select"])
	if err != nil {
		return nil, err
	}
	rows, err := c.query(ctx, b, sql)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", b.model.TableName())
	}
	return rows[0], nil
}

func (c *Client) createMany(ctx context.Context, b *builder, args crud.Args) (any, error) {
	skip, _ := args["skipDuplicates"].(bool)
	sql, err := b.insertManySQL(args["data"], skip)
	if err != nil {
		return nil, err
	}
	if sql == "" {
		return map[string]any{"count": int64(0)}, nil
	}

	tag, err := c.db.Exec(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": tag.RowsAffected()}, nil
}

// renderFunc is (*builder).updateSQL or (*builder).deleteSQL.
type renderFunc func(b *builder, args crud.Args, single bool) (string, error)

// mutateOne runs a single-row UPDATE or DELETE and returns the row.
func (c *Client) mutateOne(ctx context.Context, b *builder, render renderFunc, args crud.Args) (any, error) {
	sql, err := render(b, args, true)
	if err != nil {
		return nil, err
	}

	rows, err := c.query(ctx, b, sql)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(b.model)
	}
	return rows[0], nil
}

func (c *Client) mutateMany(ctx context.Context, b *builder, render renderFunc, args crud.Args) (any, error) {
	sql, err := render(b, args, false)
	if err != nil {
		return nil, err
	}

	tag, err := c.db.Exec(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": tag.RowsAffected()}, nil
}

// upsert updates the first row matching where, or creates one, inside a
// transaction so the check and the write see the same state.
func (c *Client) upsert(ctx context.Context, info *crud.ModelInfo, args crud.Args) (any, error) {
	if w, _ := args["where"].(map[string]any); len(w) == 0 {
		return nil, fmt.Errorf("%w: upsert requires where", crud.ErrInvalidArgs)
	}

	var result any
	err := pgx.BeginFunc(ctx, c.db, func(tx pgx.Tx) error {
		txc := &Client{db: tx, meta: c.meta, logger: c.logger}

		lookup := newBuilder(info)
		sql, err := lookup.selectSQL(crud.Args{"where": args["where"]}, 1)
		if err != nil {
			return err
		}
		existing, err := txc.query(ctx, lookup, sql+" FOR UPDATE")
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			result, err = txc.create(ctx, newBuilder(info), crud.Args{
				"data":   args["create"],
				"select": args["select"],
			})
			return err
		}

		if update, _ := args["update"].(map[string]any); len(update) == 0 {
			// nothing to change; return the row in the requested shape
			result, err = txc.findOne(ctx, newBuilder(info), crud.Args{
				"where":  args["where"],
				"select": args["select"],
			}, false)
			return err
		}

		result, err = txc.mutateOne(ctx, newBuilder(info), (*builder).updateSQL, crud.Args{
			"where":  args["where"],
			"data":   args["update"],
			"select": args["select"],
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func notFound(info *crud.ModelInfo) error {
	return fmt.Errorf("%w: no %s matched the filter", crud.ErrNotFound, crud.LowerFirst(info.Name))
}

// WithLogger returns a copy of c that logs queries to logger.
func (c *Client) WithLogger(logger *zerolog.Logger) *Client {
	if logger == nil {
		return c
	}
	return &Client{db: c.db, meta: c.meta, logger: logger}
}

package repos

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	q "capm/data/queries"
)

type Postgres struct {
	db *pgxpool.Pool
}

func GetPostgresConnection(ctx context.Context, connectionString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("error parsing pgx connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error making new pgx pool: %w", err)
	}

	return &Postgres{pool}, nil
}

// EnsureSchema creates the price tables if they are missing
func (pg *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := pg.db.Exec(ctx, q.Get(q.QueryHelper.Schema.PriceTables)); err != nil {
		return fmt.Errorf("error creating price tables: %w", err)
	}
	return nil
}

func (pg *Postgres) GetTransaction(ctx context.Context) (pgx.Tx, error) {
	return pg.db.Begin(ctx)
}

func (pg *Postgres) Ping(ctx context.Context) error {
	return pg.db.Ping(ctx)
}

func (pg *Postgres) Close() {
	pg.db.Close()
}

func (pg *Postgres) BulkInsert(ctx context.Context, tableName string, columns []string, data [][]any, tx pgx.Tx) (int64, error) {
	if tx == nil {
		return pg.db.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(data))
	}
	return tx.CopyFrom(ctx, pgx.Identifier{tableName}, columns, pgx.CopyFromRows(data))
}

// BatchExec runs query once per argument set in a single round trip and returns the rows affected
func (pg *Postgres) BatchExec(ctx context.Context, query string, args []pgx.NamedArgs, tx pgx.Tx) (int64, error) {
	batch := &pgx.Batch{}
	for _, a := range args {
		batch.Queue(query, a)
	}

	var br pgx.BatchResults
	if tx == nil {
		br = pg.db.SendBatch(ctx, batch)
	} else {
		br = tx.SendBatch(ctx, batch)
	}

	var affected int64
	for range args {
		ct, err := br.Exec()
		if err != nil {
			br.Close()
			return affected, err
		}
		affected += ct.RowsAffected()
	}
	return affected, br.Close()
}

func Query[T any](ctx context.Context, pg *Postgres, query string, args pgx.NamedArgs) ([]*T, error) {
	rows, err := pg.db.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("unable to query: %w", err)
	}
	defer rows.Close()

	res, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("error occured while collecting rows in query: %w", err)
	}

	result := make([]*T, len(res))
	for i := range res {
		result[i] = &res[i]
	}

	return result, nil
}

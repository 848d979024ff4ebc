// Package postgres implements the storage ports on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/storage"
)

// Dialect renders $n parameters and uses strpos() for containment.
var Dialect = storage.Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	Contains: func(col, ph string) string {
		return "strpos(lower(" + col + "), lower(" + ph + ")) > 0"
	},
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	*queries
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository migrates the schema and opens a pool on databaseURL.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{queries: &queries{db: pool}, pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithinTx(ctx context.Context, fn func(storage.Store) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", err)
		}
	}()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queries struct {
	db dbtx
}

const selectEntry = `
SELECT l.id, l.descricao, l.mes, l.ano, l.valor_centavos, l.tipo,
       COALESCE(l.status, ''), l.data_cadastro,
       u.id, u.nome, u.email, u.senha
FROM lancamentos l
JOIN usuarios u ON u.id = l.id_usuario`

func (q *queries) InsertUser(ctx context.Context, u core.Usuario) (core.Usuario, error) {
	err := q.db.QueryRow(ctx,
		`INSERT INTO usuarios (nome, email, senha) VALUES ($1, $2, $3) RETURNING id`,
		u.Nome, u.Email, u.Senha,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return core.Usuario{}, fmt.Errorf("insert user: %w", storage.ErrDuplicateEmail)
	}
	if err != nil {
		return core.Usuario{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (q *queries) FindUserByID(ctx context.Context, id int64) (core.Usuario, bool, error) {
	return q.findUser(ctx, `SELECT id, nome, email, senha FROM usuarios WHERE id = $1`, id)
}

func (q *queries) FindUserByEmail(ctx context.Context, email string) (core.Usuario, bool, error) {
	return q.findUser(ctx, `SELECT id, nome, email, senha FROM usuarios WHERE email = $1`, email)
}

func (q *queries) findUser(ctx context.Context, query string, arg any) (core.Usuario, bool, error) {
	var u core.Usuario
	err := q.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Nome, &u.Email, &u.Senha)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Usuario{}, false, nil
	}
	if err != nil {
		return core.Usuario{}, false, fmt.Errorf("find user: %w", err)
	}
	return u, true, nil
}

func (q *queries) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM usuarios WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

func (q *queries) SaveEntry(ctx context.Context, l core.Lancamento) (core.Lancamento, error) {
	cents, err := core.StoredCents(l.Valor)
	if err != nil {
		return core.Lancamento{}, fmt.Errorf("save entry: %w", err)
	}
	var dataCadastro *time.Time
	if !l.DataCadastro.IsZero() {
		dataCadastro = &l.DataCadastro
	}
	var status *string
	if l.Status != "" {
		s := string(l.Status)
		status = &s
	}
	args := []any{
		l.Descricao, l.Mes, l.Ano, cents, string(l.Tipo),
		status, l.UsuarioID(), dataCadastro,
	}

	var (
		row    pgx.Row
		stored *time.Time
	)
	if l.ID == 0 {
		row = q.db.QueryRow(ctx, `
INSERT INTO lancamentos (descricao, mes, ano, valor_centavos, tipo, status, id_usuario, data_cadastro)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, data_cadastro`, args...)
	} else {
		row = q.db.QueryRow(ctx, `
INSERT INTO lancamentos (descricao, mes, ano, valor_centavos, tipo, status, id_usuario, data_cadastro, id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    descricao      = EXCLUDED.descricao,
    mes            = EXCLUDED.mes,
    ano            = EXCLUDED.ano,
    valor_centavos = EXCLUDED.valor_centavos,
    tipo           = EXCLUDED.tipo,
    status         = EXCLUDED.status,
    id_usuario     = EXCLUDED.id_usuario,
    data_cadastro  = COALESCE(EXCLUDED.data_cadastro, lancamentos.data_cadastro)
RETURNING id, data_cadastro`, append(args, l.ID)...)
	}

	if err := row.Scan(&l.ID, &stored); err != nil {
		return core.Lancamento{}, fmt.Errorf("save entry: %w", err)
	}
	l.Valor = core.FromCents(cents)
	l.DataCadastro = time.Time{}
	if stored != nil {
		l.DataCadastro = *stored
	}
	return l, nil
}

func (q *queries) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM lancamentos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

func (q *queries) FindEntryByID(ctx context.Context, id int64) (core.Lancamento, bool, error) {
	entries, err := q.queryEntries(ctx, selectEntry+` WHERE l.id = $1`, id)
	if err != nil {
		return core.Lancamento{}, false, err
	}
	if len(entries) == 0 {
		return core.Lancamento{}, false, nil
	}
	return entries[0], true, nil
}

func (q *queries) FindEntries(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error) {
	where, args := storage.EntryFilterClause(Dialect, filter)
	return q.queryEntries(ctx, selectEntry+` WHERE `+where+` ORDER BY l.id`, args...)
}

func (q *queries) SumByUserAndType(ctx context.Context, userID int64, tipo core.TipoLancamento) (decimal.Decimal, bool, error) {
	var sum *int64
	err := q.db.QueryRow(ctx,
		`SELECT SUM(valor_centavos)::BIGINT FROM lancamentos WHERE id_usuario = $1 AND tipo = $2`,
		userID, string(tipo),
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("sum entries: %w", err)
	}
	if sum == nil {
		return decimal.Zero, false, nil
	}
	return core.FromCents(*sum), true, nil
}

func (q *queries) queryEntries(ctx context.Context, query string, args ...any) ([]core.Lancamento, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []core.Lancamento
	for rows.Next() {
		var (
			l            core.Lancamento
			u            core.Usuario
			cents        int64
			tipo, status string
			dataCadastro *time.Time
		)
		if err := rows.Scan(&l.ID, &l.Descricao, &l.Mes, &l.Ano, &cents, &tipo, &status,
			&dataCadastro, &u.ID, &u.Nome, &u.Email, &u.Senha); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		l.Valor = core.FromCents(cents)
		l.Tipo = core.TipoLancamento(tipo)
		l.Status = core.StatusLancamento(status)
		if dataCadastro != nil {
			l.DataCadastro = *dataCadastro
		}
		l.Usuario = &u
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// isUniqueViolation reports SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

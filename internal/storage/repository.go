package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const dateLayout = "2006-01-02"

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type SQLiteRepository struct {
	*queries
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		queries: &queries{db: db},
		db:      db,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queries implements Store on top of a connection or a transaction.
type queries struct {
	db DBTX
}

const selectEntry = `
SELECT l.id, l.descricao, l.mes, l.ano, l.valor_centavos, l.tipo,
       COALESCE(l.status, ''), l.data_cadastro,
       u.id, u.nome, u.email, u.senha
FROM lancamentos l
JOIN usuarios u ON u.id = l.id_usuario`

func (q *queries) InsertUser(ctx context.Context, u core.Usuario) (core.Usuario, error) {
	err := q.db.QueryRowContext(ctx,
		`INSERT INTO usuarios (nome, email, senha, data_cadastro) VALUES (?, ?, ?, ?) RETURNING id`,
		u.Nome, u.Email, u.Senha, time.Now().Format(dateLayout),
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return core.Usuario{}, fmt.Errorf("insert user: %w", ErrDuplicateEmail)
	}
	if err != nil {
		return core.Usuario{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		strings.Contains(se.Error(), "UNIQUE constraint failed")
}

func (q *queries) FindUserByID(ctx context.Context, id int64) (core.Usuario, bool, error) {
	return q.findUser(ctx, `SELECT id, nome, email, senha FROM usuarios WHERE id = ?`, id)
}

func (q *queries) FindUserByEmail(ctx context.Context, email string) (core.Usuario, bool, error) {
	return q.findUser(ctx, `SELECT id, nome, email, senha FROM usuarios WHERE email = ?`, email)
}

func (q *queries) findUser(ctx context.Context, query string, arg any) (core.Usuario, bool, error) {
	var u core.Usuario
	err := q.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Nome, &u.Email, &u.Senha)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Usuario{}, false, nil
	}
	if err != nil {
		return core.Usuario{}, false, fmt.Errorf("find user: %w", err)
	}
	return u, true, nil
}

func (q *queries) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM usuarios WHERE email = ?)`, email,
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
	var dataCadastro sql.NullString
	if !l.DataCadastro.IsZero() {
		dataCadastro = sql.NullString{String: l.DataCadastro.Format(dateLayout), Valid: true}
	}
	args := []any{
		l.Descricao, l.Mes, l.Ano, cents, string(l.Tipo),
		nullIfEmpty(string(l.Status)), l.UsuarioID(), dataCadastro,
	}

	var (
		row    *sql.Row
		stored sql.NullString
	)
	if l.ID == 0 {
		row = q.db.QueryRowContext(ctx, `
INSERT INTO lancamentos (descricao, mes, ano, valor_centavos, tipo, status, id_usuario, data_cadastro)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, data_cadastro`, args...)
	} else {
		row = q.db.QueryRowContext(ctx, `
INSERT INTO lancamentos (id, descricao, mes, ano, valor_centavos, tipo, status, id_usuario, data_cadastro)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    descricao      = excluded.descricao,
    mes            = excluded.mes,
    ano            = excluded.ano,
    valor_centavos = excluded.valor_centavos,
    tipo           = excluded.tipo,
    status         = excluded.status,
    id_usuario     = excluded.id_usuario,
    data_cadastro  = COALESCE(excluded.data_cadastro, lancamentos.data_cadastro)
RETURNING id, data_cadastro`, append([]any{l.ID}, args...)...)
	}

	if err := row.Scan(&l.ID, &stored); err != nil {
		return core.Lancamento{}, fmt.Errorf("save entry: %w", err)
	}
	l.Valor = core.FromCents(cents)
	l.DataCadastro = parseDate(stored)
	return l, nil
}

func (q *queries) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM lancamentos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

func (q *queries) FindEntryByID(ctx context.Context, id int64) (core.Lancamento, bool, error) {
	entries, err := q.queryEntries(ctx, selectEntry+` WHERE l.id = ?`, id)
	if err != nil {
		return core.Lancamento{}, false, err
	}
	if len(entries) == 0 {
		return core.Lancamento{}, false, nil
	}
	return entries[0], true, nil
}

func (q *queries) FindEntries(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error) {
	where, args := EntryFilterClause(SQLiteDialect, filter)
	return q.queryEntries(ctx, selectEntry+` WHERE `+where+` ORDER BY l.id`, args...)
}

func (q *queries) SumByUserAndType(ctx context.Context, userID int64, tipo core.TipoLancamento) (decimal.Decimal, bool, error) {
	var sum sql.NullInt64
	err := q.db.QueryRowContext(ctx,
		`SELECT SUM(valor_centavos) FROM lancamentos WHERE id_usuario = ? AND tipo = ?`,
		userID, string(tipo),
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("sum entries: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, false, nil
	}
	return core.FromCents(sum.Int64), true, nil
}

func (q *queries) queryEntries(ctx context.Context, query string, args ...any) ([]core.Lancamento, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
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
			dataCadastro sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Descricao, &l.Mes, &l.Ano, &cents, &tipo, &status,
			&dataCadastro, &u.ID, &u.Nome, &u.Email, &u.Senha); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		l.Valor = core.FromCents(cents)
		l.Tipo = core.TipoLancamento(tipo)
		l.Status = core.StatusLancamento(status)
		l.DataCadastro = parseDate(dataCadastro)
		l.Usuario = &u
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func parseDate(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

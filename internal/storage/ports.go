package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/core"
)

// ErrDuplicateEmail is returned by InsertUser when the email is already
// registered.
var ErrDuplicateEmail = errors.New("email already registered")

// UserStore persists users. Lookups report absence with found == false
// rather than an error.
type UserStore interface {
	InsertUser(ctx context.Context, u core.Usuario) (core.Usuario, error)
	FindUserByID(ctx context.Context, id int64) (core.Usuario, bool, error)
	FindUserByEmail(ctx context.Context, email string) (core.Usuario, bool, error)
	ExistsUserByEmail(ctx context.Context, email string) (bool, error)
}

// EntryStore persists entries.
type EntryStore interface {
	// SaveEntry inserts the entry when its id is 0 and upserts by id
	// otherwise. A zero DataCadastro keeps the stored one.
	SaveEntry(ctx context.Context, l core.Lancamento) (core.Lancamento, error)
	DeleteEntry(ctx context.Context, id int64) error
	FindEntryByID(ctx context.Context, id int64) (core.Lancamento, bool, error)
	// FindEntries returns the entries matching the example filter, ordered
	// by id.
	FindEntries(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error)
	// SumByUserAndType sums the values of a user's entries of one type.
	// ok is false when no entry contributes to the sum.
	SumByUserAndType(ctx context.Context, userID int64, tipo core.TipoLancamento) (sum decimal.Decimal, ok bool, err error)
}

type Store interface {
	UserStore
	EntryStore
}

// Repository is a Store with explicit transaction boundaries.
type Repository interface {
	Store
	// WithinTx runs fn against a transactional Store. The transaction
	// commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error
	Ping(ctx context.Context) error
	Close() error
}

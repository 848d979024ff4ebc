// Package memory provides an in-process Store used for tests and for the
// memory data backend. Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/storage"
)

type Store struct {
	mu          sync.RWMutex
	usuarios    map[int64]core.Usuario
	lancamentos map[int64]core.Lancamento
	nextUserID  int64
	nextEntryID int64
}

var _ storage.Repository = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		usuarios:    make(map[int64]core.Usuario),
		lancamentos: make(map[int64]core.Lancamento),
	}
}

// WithinTx runs fn on a copy of the data and swaps it in when fn succeeds.
// Writers are serialized for the duration of fn.
func (s *Store) WithinTx(ctx context.Context, fn func(storage.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txStore{
		usuarios:    make(map[int64]core.Usuario, len(s.usuarios)),
		lancamentos: make(map[int64]core.Lancamento, len(s.lancamentos)),
		nextUserID:  s.nextUserID,
		nextEntryID: s.nextEntryID,
	}
	for k, v := range s.usuarios {
		tx.usuarios[k] = v
	}
	for k, v := range s.lancamentos {
		tx.lancamentos[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.usuarios = tx.usuarios
	s.lancamentos = tx.lancamentos
	s.nextUserID = tx.nextUserID
	s.nextEntryID = tx.nextEntryID
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) InsertUser(ctx context.Context, u core.Usuario) (core.Usuario, error) {
	var out core.Usuario
	err := s.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		out, err = tx.InsertUser(ctx, u)
		return err
	})
	return out, err
}

func (s *Store) SaveEntry(ctx context.Context, l core.Lancamento) (core.Lancamento, error) {
	var out core.Lancamento
	err := s.WithinTx(ctx, func(tx storage.Store) error {
		var err error
		out, err = tx.SaveEntry(ctx, l)
		return err
	})
	return out, err
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	return s.WithinTx(ctx, func(tx storage.Store) error {
		return tx.DeleteEntry(ctx, id)
	})
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (core.Usuario, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot().FindUserByID(ctx, id)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (core.Usuario, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot().FindUserByEmail(ctx, email)
}

func (s *Store) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot().ExistsUserByEmail(ctx, email)
}

func (s *Store) FindEntryByID(ctx context.Context, id int64) (core.Lancamento, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot().FindEntryByID(ctx, id)
}

func (s *Store) FindEntries(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot().FindEntries(ctx, filter)
}

func (s *Store) SumByUserAndType(ctx context.Context, userID int64, tipo core.TipoLancamento) (decimal.Decimal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot().SumByUserAndType(ctx, userID, tipo)
}

// snapshot exposes the current maps through the txStore read paths. The
// caller must hold the lock.
func (s *Store) snapshot() *txStore {
	return &txStore{usuarios: s.usuarios, lancamentos: s.lancamentos}
}

// txStore is the unlocked view used inside a transaction.
type txStore struct {
	usuarios    map[int64]core.Usuario
	lancamentos map[int64]core.Lancamento
	nextUserID  int64
	nextEntryID int64
}

func (t *txStore) InsertUser(ctx context.Context, u core.Usuario) (core.Usuario, error) {
	if exists, _ := t.ExistsUserByEmail(ctx, u.Email); exists {
		return core.Usuario{}, fmt.Errorf("insert user %q: %w", u.Email, storage.ErrDuplicateEmail)
	}
	t.nextUserID++
	u.ID = t.nextUserID
	t.usuarios[u.ID] = u
	return u, nil
}

func (t *txStore) FindUserByID(_ context.Context, id int64) (core.Usuario, bool, error) {
	u, ok := t.usuarios[id]
	return u, ok, nil
}

func (t *txStore) FindUserByEmail(_ context.Context, email string) (core.Usuario, bool, error) {
	for _, u := range t.usuarios {
		if u.Email == email {
			return u, true, nil
		}
	}
	return core.Usuario{}, false, nil
}

func (t *txStore) ExistsUserByEmail(ctx context.Context, email string) (bool, error) {
	_, found, err := t.FindUserByEmail(ctx, email)
	return found, err
}

func (t *txStore) SaveEntry(_ context.Context, l core.Lancamento) (core.Lancamento, error) {
	cents, err := core.StoredCents(l.Valor)
	if err != nil {
		return core.Lancamento{}, fmt.Errorf("save entry: %w", err)
	}
	if l.ID == 0 {
		t.nextEntryID++
		l.ID = t.nextEntryID
	} else if l.ID > t.nextEntryID {
		t.nextEntryID = l.ID
	}
	if l.DataCadastro.IsZero() {
		if prev, ok := t.lancamentos[l.ID]; ok {
			l.DataCadastro = prev.DataCadastro
		}
	}
	l.Valor = core.FromCents(cents)

	stored := l
	if l.Usuario != nil {
		stored.Usuario = &core.Usuario{ID: l.Usuario.ID}
	}
	t.lancamentos[l.ID] = stored
	return l, nil
}

func (t *txStore) DeleteEntry(_ context.Context, id int64) error {
	delete(t.lancamentos, id)
	return nil
}

func (t *txStore) FindEntryByID(_ context.Context, id int64) (core.Lancamento, bool, error) {
	l, ok := t.lancamentos[id]
	if !ok {
		return core.Lancamento{}, false, nil
	}
	return t.withOwner(l), true, nil
}

func (t *txStore) FindEntries(_ context.Context, filter core.Lancamento) ([]core.Lancamento, error) {
	all := make([]core.Lancamento, 0, len(t.lancamentos))
	for _, l := range t.lancamentos {
		all = append(all, t.withOwner(l))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return core.FilterLancamentos(all, filter), nil
}

func (t *txStore) SumByUserAndType(_ context.Context, userID int64, tipo core.TipoLancamento) (decimal.Decimal, bool, error) {
	sum := decimal.Zero
	found := false
	for _, l := range t.lancamentos {
		if l.UsuarioID() == userID && l.Tipo == tipo {
			sum = sum.Add(l.Valor)
			found = true
		}
	}
	return sum, found, nil
}

// withOwner replaces the stored owner reference with the full user record.
func (t *txStore) withOwner(l core.Lancamento) core.Lancamento {
	if u, ok := t.usuarios[l.UsuarioID()]; ok {
		l.Usuario = &u
	}
	return l
}

package services

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/amqp"
	"minhasfinancas/internal/core"
	"minhasfinancas/internal/storage"
	"minhasfinancas/internal/storage/memory"
)

// countingRepo records the writes that reach the store.
type countingRepo struct {
	*memory.Store
	txCalls     int
	saveCalls   int
	deleteCalls int
	sumErr      error
}

func newCountingRepo() *countingRepo {
	return &countingRepo{Store: memory.NewStore()}
}

func (r *countingRepo) WithinTx(ctx context.Context, fn func(storage.Store) error) error {
	r.txCalls++
	return r.Store.WithinTx(ctx, func(st storage.Store) error {
		return fn(&countingStore{Store: st, repo: r})
	})
}

func (r *countingRepo) SumByUserAndType(ctx context.Context, userID int64, tipo core.TipoLancamento) (decimal.Decimal, bool, error) {
	if r.sumErr != nil {
		return decimal.Zero, false, r.sumErr
	}
	return r.Store.SumByUserAndType(ctx, userID, tipo)
}

type countingStore struct {
	storage.Store
	repo *countingRepo
}

func (s *countingStore) SaveEntry(ctx context.Context, l core.Lancamento) (core.Lancamento, error) {
	s.repo.saveCalls++
	return s.Store.SaveEntry(ctx, l)
}

func (s *countingStore) DeleteEntry(ctx context.Context, id int64) error {
	s.repo.deleteCalls++
	return s.Store.DeleteEntry(ctx, id)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.EntryEvent
	err    error
}

func (p *fakePublisher) PublishEntryEvent(_ context.Context, event *amqp.EntryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *event)
	return nil
}

var errBroker = errors.New("broker unavailable")

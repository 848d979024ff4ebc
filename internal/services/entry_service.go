package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/amqp"
	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/storage"
)

// EventPublisher announces committed entry changes.
type EventPublisher interface {
	PublishEntryEvent(ctx context.Context, event *amqp.EntryEvent) error
}

// EntryService owns the entry rules: validation, the initial status and the
// balance. Every write runs in its own transaction and is announced through
// the optional publisher after commit.
type EntryService struct {
	repo      storage.Repository
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewEntryService wires the service. publisher may be nil, in which case
// events are skipped.
func NewEntryService(repo storage.Repository, publisher EventPublisher) *EntryService {
	return &EntryService{
		repo:      repo,
		publisher: publisher,
		logger:    log.Default().WithComponent(log.ComponentEntry),
		now:       time.Now,
	}
}

// Save validates and stores a new entry. The status is always reset to
// PENDENTE and the registration date defaults to today.
func (s *EntryService) Save(ctx context.Context, l core.Lancamento) (core.Lancamento, error) {
	if err := l.Validate(); err != nil {
		return core.Lancamento{}, err
	}
	l.Status = core.Pendente
	if l.DataCadastro.IsZero() {
		y, m, d := s.now().Date()
		l.DataCadastro = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	saved, err := s.write(ctx, l)
	if err != nil {
		return core.Lancamento{}, fmt.Errorf("save entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Entry created", log.NewFields().WithEntry(saved).WithOperation(log.OpCreate).ToSlice()...)
	s.publish(ctx, amqp.EventCreated, saved.ID)
	return saved, nil
}

// Update validates and stores an already persisted entry, keeping its
// status as given.
func (s *EntryService) Update(ctx context.Context, l core.Lancamento) (core.Lancamento, error) {
	if l.ID == 0 {
		return core.Lancamento{}, core.ErrMissingID
	}
	if err := l.Validate(); err != nil {
		return core.Lancamento{}, err
	}

	saved, err := s.write(ctx, l)
	if err != nil {
		return core.Lancamento{}, fmt.Errorf("update entry %d: %w", l.ID, err)
	}

	s.logger.InfoContext(ctx, "Entry updated", log.NewFields().WithEntry(saved).WithOperation(log.OpUpdate).ToSlice()...)
	s.publish(ctx, amqp.EventUpdated, saved.ID)
	return saved, nil
}

// Delete removes a persisted entry.
func (s *EntryService) Delete(ctx context.Context, l core.Lancamento) error {
	if l.ID == 0 {
		return core.ErrMissingID
	}

	err := s.repo.WithinTx(ctx, func(st storage.Store) error {
		return st.DeleteEntry(ctx, l.ID)
	})
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", l.ID, err)
	}

	s.logger.InfoContext(ctx, "Entry deleted", log.FieldEntryID, l.ID, log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.EventDeleted, l.ID)
	return nil
}

// SetStatus changes the status and goes through Update.
func (s *EntryService) SetStatus(ctx context.Context, l core.Lancamento, status core.StatusLancamento) (core.Lancamento, error) {
	l.Status = status
	return s.Update(ctx, l)
}

// Find returns the entries matching the example filter.
func (s *EntryService) Find(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error) {
	entries, err := s.repo.FindEntries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	return entries, nil
}

func (s *EntryService) FindByID(ctx context.Context, id int64) (core.Lancamento, bool, error) {
	l, found, err := s.repo.FindEntryByID(ctx, id)
	if err != nil {
		return core.Lancamento{}, false, fmt.Errorf("find entry %d: %w", id, err)
	}
	return l, found, nil
}

// Balance is the sum of the user's RECEITA entries minus the sum of the
// DESPESA ones, regardless of status. A type without entries counts as zero.
func (s *EntryService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	receitas, err := s.sum(ctx, userID, core.Receita)
	if err != nil {
		return decimal.Zero, err
	}
	despesas, err := s.sum(ctx, userID, core.Despesa)
	if err != nil {
		return decimal.Zero, err
	}
	return receitas.Sub(despesas), nil
}

func (s *EntryService) sum(ctx context.Context, userID int64, tipo core.TipoLancamento) (decimal.Decimal, error) {
	total, ok, err := s.repo.SumByUserAndType(ctx, userID, tipo)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s for user %d: %w", tipo, userID, err)
	}
	if !ok {
		return decimal.Zero, nil
	}
	return total, nil
}

func (s *EntryService) write(ctx context.Context, l core.Lancamento) (core.Lancamento, error) {
	var saved core.Lancamento
	err := s.repo.WithinTx(ctx, func(st storage.Store) error {
		var err error
		saved, err = st.SaveEntry(ctx, l)
		return err
	})
	return saved, err
}

// publish never fails the caller: the write is already committed.
func (s *EntryService) publish(ctx context.Context, event amqp.EventType, id int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping entry event", log.FieldEntryID, id)
		return
	}
	if err := s.publisher.PublishEntryEvent(ctx, amqp.NewEntryEvent(event, id)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish entry event",
			log.FieldEntryID, id,
			"event", event,
			log.FieldError, err)
	}
}

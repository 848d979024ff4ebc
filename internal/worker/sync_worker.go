package worker

import (
	"context"
	"fmt"

	"minhasfinancas/internal/amqp"
	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/sheets"
)

// EntryReader is the read side the worker needs from storage.
type EntryReader interface {
	FindEntryByID(ctx context.Context, id int64) (core.Lancamento, bool, error)
	FindEntries(ctx context.Context, filter core.Lancamento) ([]core.Lancamento, error)
}

// SyncWorker mirrors entry changes announced over AMQP into a spreadsheet.
// Events carry only ids, so the worker always writes the current state of
// the entry as read from storage.
type SyncWorker struct {
	entries EntryReader
	mirror  sheets.EntryMirror
	logger  *log.Logger
}

func NewSyncWorker(entries EntryReader, mirror sheets.EntryMirror) *SyncWorker {
	return &SyncWorker{
		entries: entries,
		mirror:  mirror,
		logger:  log.Default().WithComponent(log.ComponentWorker),
	}
}

// HandleEntryEvent applies one event. Returning an error makes the consumer
// requeue the message.
func (w *SyncWorker) HandleEntryEvent(ctx context.Context, event *amqp.EntryEvent) error {
	w.logger.InfoContext(ctx, "Processing entry event",
		"event", string(event.Event),
		log.FieldEntryID, event.ID,
		"timestamp", event.Timestamp)

	switch event.Event {
	case amqp.EventCreated, amqp.EventUpdated:
		return w.syncEntry(ctx, event.ID)
	case amqp.EventDeleted:
		if err := w.mirror.ClearEntry(ctx, event.ID); err != nil {
			return fmt.Errorf("clear entry %d: %w", event.ID, err)
		}
		w.logger.InfoContext(ctx, "Entry removed from mirror", log.FieldEntryID, event.ID)
		return nil
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event", "event", string(event.Event))
		return nil
	}
}

func (w *SyncWorker) syncEntry(ctx context.Context, id int64) error {
	l, found, err := w.entries.FindEntryByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load entry %d: %w", id, err)
	}
	if !found {
		// Deleted after the event was published.
		w.logger.InfoContext(ctx, "Entry no longer exists, clearing mirror row", log.FieldEntryID, id)
		if err := w.mirror.ClearEntry(ctx, id); err != nil {
			return fmt.Errorf("clear entry %d: %w", id, err)
		}
		return nil
	}

	if err := w.mirror.UpsertEntry(ctx, l); err != nil {
		return fmt.Errorf("mirror entry %d: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Entry mirrored", log.NewFields().WithEntry(l).WithOperation(log.OpSync).ToSlice()...)
	return nil
}

// StartupSync writes every stored entry to the mirror. It recovers from
// events missed while the worker was down. Failures are counted and logged
// so one bad row does not stop the pass.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	all, err := w.entries.FindEntries(ctx, core.Lancamento{})
	if err != nil {
		return fmt.Errorf("list entries for startup sync: %w", err)
	}
	if len(all) == 0 {
		w.logger.InfoContext(ctx, "No entries found on startup")
		return nil
	}

	synced, failed := 0, 0
	for _, l := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.mirror.UpsertEntry(ctx, l); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror entry during startup",
				log.FieldEntryID, l.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Startup sync completed",
		"total", len(all),
		"synced", synced,
		"errors", failed)
	return nil
}

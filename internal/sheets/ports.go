package sheets

import (
	"context"

	"minhasfinancas/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryMirror keeps one spreadsheet row per entry, keyed by entry id.
	EntryMirror interface {
		// UpsertEntry writes the entry row, replacing an existing one.
		UpsertEntry(ctx context.Context, l core.Lancamento) error
		// ClearEntry blanks the row of the entry. Missing rows are ignored.
		ClearEntry(ctx context.Context, id int64) error
	}
)

// Header is the first row of the mirror sheet.
var Header = []string{"id", "descricao", "mes", "ano", "valor", "tipo", "status", "usuario", "data_cadastro"}

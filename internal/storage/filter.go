package storage

import (
	"strings"

	"minhasfinancas/internal/core"
)

// Dialect describes the SQL differences between the relational backends.
type Dialect struct {
	// Placeholder renders the n-th bind parameter, starting at 1.
	Placeholder func(n int) string
	// Contains renders a case-insensitive substring test of col against
	// the bind parameter ph.
	Contains func(col, ph string) string
}

// SQLiteDialect uses positional '?' parameters and instr().
var SQLiteDialect = Dialect{
	Placeholder: func(int) string { return "?" },
	Contains: func(col, ph string) string {
		return "instr(lower(" + col + "), lower(" + ph + ")) > 0"
	},
}

// EntryFilterClause turns an example entry into a WHERE clause (without the
// keyword) and its arguments. Zero fields are skipped; an empty filter
// yields "1 = 1".
func EntryFilterClause(d Dialect, filter core.Lancamento) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond func(ph string) string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond(d.Placeholder(len(args))))
	}
	eq := func(col string) func(string) string {
		return func(ph string) string { return col + " = " + ph }
	}

	if filter.ID != 0 {
		add(eq("l.id"), filter.ID)
	}
	if filter.Descricao != "" {
		add(func(ph string) string { return d.Contains("l.descricao", ph) }, filter.Descricao)
	}
	if filter.Mes != 0 {
		add(eq("l.mes"), filter.Mes)
	}
	if filter.Ano != 0 {
		add(eq("l.ano"), filter.Ano)
	}
	if id := filter.UsuarioID(); id != 0 {
		add(eq("l.id_usuario"), id)
	}
	if !filter.Valor.IsZero() {
		// Unstorable amounts become 0, which no stored row holds.
		cents, _ := core.Cents(filter.Valor)
		add(eq("l.valor_centavos"), cents)
	}
	if filter.Tipo != "" {
		add(eq("l.tipo"), string(filter.Tipo))
	}
	if filter.Status != "" {
		add(eq("l.status"), string(filter.Status))
	}

	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

package core

import "strings"

// Matches reports whether l satisfies the example filter. Every non-zero
// field of filter contributes one predicate: the description is matched by
// case-insensitive containment, every other field by equality. A zero
// filter matches everything.
func (l Lancamento) Matches(filter Lancamento) bool {
	if filter.ID != 0 && l.ID != filter.ID {
		return false
	}
	if filter.Descricao != "" &&
		!strings.Contains(strings.ToLower(l.Descricao), strings.ToLower(filter.Descricao)) {
		return false
	}
	if filter.Mes != 0 && l.Mes != filter.Mes {
		return false
	}
	if filter.Ano != 0 && l.Ano != filter.Ano {
		return false
	}
	if id := filter.UsuarioID(); id != 0 && l.UsuarioID() != id {
		return false
	}
	if !filter.Valor.IsZero() && !l.Valor.Equal(filter.Valor) {
		return false
	}
	if filter.Tipo != "" && l.Tipo != filter.Tipo {
		return false
	}
	if filter.Status != "" && l.Status != filter.Status {
		return false
	}
	return true
}

// FilterLancamentos returns the entries of all that match filter, keeping
// their order.
func FilterLancamentos(all []Lancamento, filter Lancamento) []Lancamento {
	out := make([]Lancamento, 0, len(all))
	for _, l := range all {
		if l.Matches(filter) {
			out = append(out, l)
		}
	}
	return out
}

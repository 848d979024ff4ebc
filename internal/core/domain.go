package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Receita TipoLancamento = "RECEITA"
	Despesa TipoLancamento = "DESPESA"
)

const (
	Pendente  StatusLancamento = "PENDENTE"
	Efetivado StatusLancamento = "EFETIVADO"
	Cancelado StatusLancamento = "CANCELADO"
)

type (
	TipoLancamento   string
	StatusLancamento string

	Usuario struct {
		ID    int64
		Nome  string
		Email string
		Senha string
	}

	// Lancamento is a financial entry owned by a user. Zero values stand for
	// absent fields: empty strings, 0 month/year, zero value and a nil user.
	Lancamento struct {
		ID           int64
		Descricao    string
		Mes          int
		Ano          int
		Usuario      *Usuario
		Valor        decimal.Decimal
		Tipo         TipoLancamento
		Status       StatusLancamento
		DataCadastro time.Time
	}
)

// Validation messages, checked in this order.
const (
	MsgDescricaoInvalida = "Informe uma descrição válida."
	MsgMesInvalido       = "Informe um mês válido."
	MsgAnoInvalido       = "Informe um ano válido."
	MsgUsuarioAusente    = "Informe um usuário."
	MsgValorInvalido     = "Informe um valor válido positivo."
	MsgTipoAusente       = "Informe um tipo de lançamento."
)

// Validate checks the structural rules of an entry and reports only the
// first violation.
func (l Lancamento) Validate() error {
	if strings.TrimSpace(l.Descricao) == "" {
		return NewBusinessRuleError(MsgDescricaoInvalida)
	}
	if l.Mes < 1 || l.Mes > 12 {
		return NewBusinessRuleError(MsgMesInvalido)
	}
	if l.Ano < 1000 || l.Ano > 9999 {
		return NewBusinessRuleError(MsgAnoInvalido)
	}
	if l.UsuarioID() == 0 {
		return NewBusinessRuleError(MsgUsuarioAusente)
	}
	// Sub-cent and out of range amounts would not survive storage in cents.
	if _, ok := Cents(l.Valor); !ok {
		return NewBusinessRuleError(MsgValorInvalido)
	}
	if l.Tipo == "" {
		return NewBusinessRuleError(MsgTipoAusente)
	}
	return nil
}

// UsuarioID returns the owner's id, or 0 when no owner is set.
func (l Lancamento) UsuarioID() int64 {
	if l.Usuario == nil {
		return 0
	}
	return l.Usuario.ID
}

func (t TipoLancamento) String() string { return string(t) }

// IsValid reports whether t is one of the known entry types.
func (t TipoLancamento) IsValid() bool {
	switch t {
	case Receita, Despesa:
		return true
	default:
		return false
	}
}

// ParseTipoLancamento accepts the enum name in any letter case.
func ParseTipoLancamento(s string) (TipoLancamento, bool) {
	t := TipoLancamento(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", false
	}
	return t, true
}

func (s StatusLancamento) String() string { return string(s) }

func (s StatusLancamento) IsValid() bool {
	switch s {
	case Pendente, Efetivado, Cancelado:
		return true
	default:
		return false
	}
}

func ParseStatusLancamento(s string) (StatusLancamento, bool) {
	st := StatusLancamento(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", false
	}
	return st, true
}

package http

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"minhasfinancas/internal/core"
)

const dateLayout = "2006-01-02"

type usuarioRequest struct {
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Senha string `json:"senha"`
}

type usuarioResponse struct {
	ID    int64  `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
}

func toUsuarioResponse(u core.Usuario) usuarioResponse {
	return usuarioResponse{ID: u.ID, Nome: u.Nome, Email: u.Email}
}

// lancamentoRequest uses pointers so absent fields stay distinguishable from
// zero values.
type lancamentoRequest struct {
	ID        *int64           `json:"id"`
	Descricao string           `json:"descricao"`
	Mes       *int             `json:"mes"`
	Ano       *int             `json:"ano"`
	Valor     *decimal.Decimal `json:"valor"`
	Usuario   *int64           `json:"usuario"`
	Tipo      *string          `json:"tipo"`
	Status    *string          `json:"status"`
}

type lancamentoResponse struct {
	ID           int64            `json:"id"`
	Descricao    string           `json:"descricao"`
	Mes          int              `json:"mes"`
	Ano          int              `json:"ano"`
	Usuario      *usuarioResponse `json:"usuario"`
	Valor        json.Number      `json:"valor"`
	Tipo         string           `json:"tipo"`
	Status       string           `json:"status,omitempty"`
	DataCadastro string           `json:"dataCadastro,omitempty"`
}

func toLancamentoResponse(l core.Lancamento) lancamentoResponse {
	resp := lancamentoResponse{
		ID:        l.ID,
		Descricao: l.Descricao,
		Mes:       l.Mes,
		Ano:       l.Ano,
		Valor:     decimalNumber(l.Valor),
		Tipo:      string(l.Tipo),
		Status:    string(l.Status),
	}
	if l.Usuario != nil {
		u := toUsuarioResponse(*l.Usuario)
		resp.Usuario = &u
	}
	if !l.DataCadastro.IsZero() {
		resp.DataCadastro = l.DataCadastro.Format(dateLayout)
	}
	return resp
}

func toLancamentoResponses(ls []core.Lancamento) []lancamentoResponse {
	out := make([]lancamentoResponse, 0, len(ls))
	for _, l := range ls {
		out = append(out, toLancamentoResponse(l))
	}
	return out
}

// decimalNumber renders d as a bare JSON number.
func decimalNumber(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type atualizaStatusRequest struct {
	Status string `json:"status"`
}

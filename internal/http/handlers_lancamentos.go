package http

import (
	"context"
	"net/http"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
)

const (
	msgCorpoInvalido             = "Corpo da requisição inválido."
	msgLancamentoNaoEncontrado   = "Lançamento não encontrado na base de dados."
	msgUsuarioNaoEncontradoPorID = "Usuário não encontrado para o id informado"
	msgStatusInvalido            = "Não foi possível atualizar o status lançado. Envie um status Válido."
	msgConsultaSemUsuario        = "Não foi possível realizar a consulta. Usuário não encontrado para o id informado."
	msgStatusDesconhecido        = "Status de lançamento inválido."
)

// toLancamento resolves the referenced user and maps the enums. An unknown
// tipo is left empty so validation reports it.
func (s *Server) toLancamento(ctx context.Context, req lancamentoRequest) (core.Lancamento, error) {
	l := core.Lancamento{Descricao: sanitizeInput(req.Descricao)}
	if req.ID != nil {
		l.ID = *req.ID
	}
	if req.Mes != nil {
		l.Mes = *req.Mes
	}
	if req.Ano != nil {
		l.Ano = *req.Ano
	}
	if req.Valor != nil {
		l.Valor = *req.Valor
	}

	if req.Usuario == nil {
		return l, core.NewBusinessRuleError(msgUsuarioNaoEncontradoPorID)
	}
	u, found, err := s.users.FindByID(ctx, *req.Usuario)
	if err != nil {
		return l, err
	}
	if !found {
		return l, core.NewBusinessRuleError(msgUsuarioNaoEncontradoPorID)
	}
	l.Usuario = &u

	if req.Tipo != nil {
		if tipo, ok := core.ParseTipoLancamento(*req.Tipo); ok {
			l.Tipo = tipo
		}
	}
	if req.Status != nil {
		status, ok := core.ParseStatusLancamento(*req.Status)
		if !ok {
			return l, core.NewBusinessRuleError(msgStatusDesconhecido)
		}
		l.Status = status
	}
	return l, nil
}

// lookupEntry writes the not found response itself and reports whether the
// handler should continue.
func (s *Server) lookupEntry(w http.ResponseWriter, r *http.Request) (core.Lancamento, bool) {
	id, ok := pathID(r)
	if !ok {
		BadRequestError(msgLancamentoNaoEncontrado).Write(w)
		return core.Lancamento{}, false
	}
	l, found, err := s.entries.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return core.Lancamento{}, false
	}
	if !found {
		BadRequestError(msgLancamentoNaoEncontrado).Write(w)
		return core.Lancamento{}, false
	}
	return l, true
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req lancamentoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgCorpoInvalido).Write(w)
		return
	}

	l, err := s.toLancamento(r.Context(), req)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	saved, err := s.entries.Save(r.Context(), l)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewResponse().Status(http.StatusCreated).JSON(toLancamentoResponse(saved)).Write(w)
}

// handleUpdateEntry replaces the stored entry. A body without status keeps
// the stored one.
func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.lookupEntry(w, r)
	if !ok {
		return
	}

	var req lancamentoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgCorpoInvalido).Write(w)
		return
	}

	l, err := s.toLancamento(r.Context(), req)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	l.ID = existing.ID
	l.DataCadastro = existing.DataCadastro
	if req.Status == nil {
		l.Status = existing.Status
	}

	updated, err := s.entries.Update(r.Context(), l)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	NewResponse().JSON(toLancamentoResponse(updated)).Write(w)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.lookupEntry(w, r)
	if !ok {
		return
	}

	var req atualizaStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgStatusInvalido).Write(w)
		return
	}
	status, ok := core.ParseStatusLancamento(req.Status)
	if !ok {
		BadRequestError(msgStatusInvalido).Write(w)
		return
	}

	updated, err := s.entries.SetStatus(r.Context(), existing, status)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	NewResponse().JSON(toLancamentoResponse(updated)).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.lookupEntry(w, r)
	if !ok {
		return
	}

	if err := s.entries.Delete(r.Context(), existing); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}

	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleSearchEntries filters a user's entries by example. usuario is
// mandatory; descricao, mes and ano narrow the result when present.
func (s *Server) handleSearchEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	mes, err := queryInt(query, "mes")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ano, err := queryInt(query, "ano")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	userID, err := queryInt(query, "usuario")
	if err != nil || userID <= 0 {
		BadRequestError(msgConsultaSemUsuario).Write(w)
		return
	}

	u, found, err := s.users.FindByID(r.Context(), int64(userID))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if !found {
		BadRequestError(msgConsultaSemUsuario).Write(w)
		return
	}

	filter := core.Lancamento{
		Descricao: sanitizeInput(query.Get("descricao")),
		Mes:       mes,
		Ano:       ano,
		Usuario:   &u,
	}
	entries, err := s.entries.Find(r.Context(), filter)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	NewResponse().JSON(toLancamentoResponses(entries)).Write(w)
}

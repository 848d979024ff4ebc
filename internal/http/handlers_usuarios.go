package http

import (
	"net/http"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
)

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req usuarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgCorpoInvalido).Write(w)
		return
	}

	u, err := s.users.Authenticate(r.Context(), sanitizeInput(req.Email), req.Senha)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	NewResponse().JSON(toUsuarioResponse(u)).Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req usuarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(msgCorpoInvalido).Write(w)
		return
	}

	u, err := s.users.Register(r.Context(), core.Usuario{
		Nome:  sanitizeInput(req.Nome),
		Email: sanitizeInput(req.Email),
		Senha: req.Senha,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewResponse().Status(http.StatusCreated).JSON(toUsuarioResponse(u)).Write(w)
}

// handleBalance answers 404 with an empty body for an unknown user.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		NewResponse().Status(http.StatusNotFound).Write(w)
		return
	}

	_, found, err := s.users.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if !found {
		NewResponse().Status(http.StatusNotFound).Write(w)
		return
	}

	saldo, err := s.entries.Balance(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}

	NewResponse().JSON(decimalNumber(saldo)).Write(w)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"minhasfinancas/internal/core"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/services"
	"minhasfinancas/internal/storage/memory"
)

type ServerTestSuite struct {
	suite.Suite
	store *memory.Store
	srv   *Server
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	s.store = memory.NewStore()
	srv, err := NewServer(":0",
		services.NewEntryService(s.store, nil),
		services.NewUserService(s.store, nil),
		s.store,
		Options{Logger: log.New(log.Config{Output: io.Discard})})
	s.Require().NoError(err)
	s.srv = srv
}

func (s *ServerTestSuite) TearDownTest() {
	s.Require().NoError(s.srv.Shutdown(context.Background()))
}

func (s *ServerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) createUser(nome, email, senha string) usuarioResponse {
	rec := s.do(http.MethodPost, "/api/usuarios", map[string]any{"nome": nome, "email": email, "senha": senha})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var u usuarioResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func (s *ServerTestSuite) createEntry(body map[string]any) lancamentoResponse {
	rec := s.do(http.MethodPost, "/api/lancamentos", body)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var l lancamentoResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &l))
	return l
}

func entryBody(userID int64, descricao, tipo string, valor float64) map[string]any {
	return map[string]any{
		"descricao": descricao,
		"mes":       6,
		"ano":       2024,
		"valor":     valor,
		"usuario":   userID,
		"tipo":      tipo,
	}
}

func (s *ServerTestSuite) TestRegisterUser() {
	u := s.createUser("A", "a@a.com", "x")
	s.NotZero(u.ID)
	s.Equal("A", u.Nome)

	rec := s.do(http.MethodPost, "/api/usuarios", map[string]any{"nome": "A", "email": "a@a.com", "senha": "x"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(services.MsgEmailJaCadastrado, rec.Body.String())
	s.Equal("text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}

func (s *ServerTestSuite) TestRegisterResponseOmitsPassword() {
	rec := s.do(http.MethodPost, "/api/usuarios", map[string]any{"nome": "A", "email": "a@a.com", "senha": "segredo"})
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.NotContains(rec.Body.String(), "segredo")
	s.NotContains(rec.Body.String(), "senha")
}

func (s *ServerTestSuite) TestAuthenticate() {
	created := s.createUser("Ana", "ana@email.com", "123")

	rec := s.do(http.MethodPost, "/api/usuarios/autenticar", map[string]any{"email": "ana@email.com", "senha": "123"})
	s.Require().Equal(http.StatusOK, rec.Code)
	var u usuarioResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &u))
	s.Equal(created.ID, u.ID)

	rec = s.do(http.MethodPost, "/api/usuarios/autenticar", map[string]any{"email": "ana@email.com", "senha": "errada"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(services.MsgSenhaInvalida, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/usuarios/autenticar", map[string]any{"email": "bob@email.com", "senha": "123"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(services.MsgEmailNaoEncontrado, rec.Body.String())
}

func (s *ServerTestSuite) TestCreateEntryIsPending() {
	u := s.createUser("A", "a@a.com", "x")

	body := entryBody(u.ID, "Salário", "RECEITA", 1500.75)
	body["status"] = "EFETIVADO"
	l := s.createEntry(body)

	s.NotZero(l.ID)
	s.Equal("PENDENTE", l.Status)
	s.Equal("RECEITA", l.Tipo)
	s.Equal("1500.75", l.Valor.String())
	s.Require().NotNil(l.Usuario)
	s.Equal(u.ID, l.Usuario.ID)
	s.Equal("a@a.com", l.Usuario.Email)
	s.NotEmpty(l.DataCadastro)
}

func (s *ServerTestSuite) TestCreateEntryValidation() {
	u := s.createUser("A", "a@a.com", "x")

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantMsg string
	}{
		{"blank description", func(b map[string]any) { b["descricao"] = "  " }, core.MsgDescricaoInvalida},
		{"month out of range", func(b map[string]any) { b["mes"] = 13 }, core.MsgMesInvalido},
		{"short year", func(b map[string]any) { b["ano"] = 202 }, core.MsgAnoInvalido},
		{"zero value", func(b map[string]any) { b["valor"] = 0 }, core.MsgValorInvalido},
		{"missing type", func(b map[string]any) { delete(b, "tipo") }, core.MsgTipoAusente},
		{"unknown type", func(b map[string]any) { b["tipo"] = "TRANSFERENCIA" }, core.MsgTipoAusente},
		{"missing user", func(b map[string]any) { delete(b, "usuario") }, msgUsuarioNaoEncontradoPorID},
		{"unknown user", func(b map[string]any) { b["usuario"] = u.ID + 100 }, msgUsuarioNaoEncontradoPorID},
		{"unknown status", func(b map[string]any) { b["status"] = "ARQUIVADO" }, msgStatusDesconhecido},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			body := entryBody(u.ID, "Conta", "DESPESA", 10)
			tt.mutate(body)
			rec := s.do(http.MethodPost, "/api/lancamentos", body)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(tt.wantMsg, rec.Body.String())
		})
	}
}

func (s *ServerTestSuite) TestMalformedBody() {
	rec := s.do(http.MethodPost, "/api/lancamentos", "{not json")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgCorpoInvalido, rec.Body.String())
}

func (s *ServerTestSuite) TestBalance() {
	u := s.createUser("A", "a@a.com", "x")
	s.createEntry(entryBody(u.ID, "Salário", "RECEITA", 50))

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/usuarios/%d/saldo", u.ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("50", rec.Body.String())
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	s.createEntry(entryBody(u.ID, "Mercado", "DESPESA", 70.5))
	rec = s.do(http.MethodGet, fmt.Sprintf("/api/usuarios/%d/saldo", u.ID), nil)
	s.Equal("-20.5", rec.Body.String())
}

func (s *ServerTestSuite) TestBalanceUnknownUser() {
	rec := s.do(http.MethodGet, "/api/usuarios/999/saldo", nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Empty(rec.Body.String())
}

func (s *ServerTestSuite) TestUpdateEntry() {
	u := s.createUser("A", "a@a.com", "x")
	created := s.createEntry(entryBody(u.ID, "Conta", "DESPESA", 10))

	rec := s.do(http.MethodPut, fmt.Sprintf("/api/lancamentos/%d/atualiza-status", created.ID), map[string]any{"status": "EFETIVADO"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	body := entryBody(u.ID, "Conta de Luz", "DESPESA", 12.3)
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/lancamentos/%d", created.ID), body)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var updated lancamentoResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	s.Equal(created.ID, updated.ID)
	s.Equal("Conta de Luz", updated.Descricao)
	s.Equal("EFETIVADO", updated.Status, "status omitted from the body is kept")
	s.Equal(created.DataCadastro, updated.DataCadastro)

	body["status"] = "CANCELADO"
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/lancamentos/%d", created.ID), body)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	s.Equal("CANCELADO", updated.Status)
}

func (s *ServerTestSuite) TestUpdateEntryFailures() {
	u := s.createUser("A", "a@a.com", "x")
	created := s.createEntry(entryBody(u.ID, "Conta", "DESPESA", 10))

	rec := s.do(http.MethodPut, "/api/lancamentos/999", entryBody(u.ID, "Conta", "DESPESA", 10))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgLancamentoNaoEncontrado, rec.Body.String())

	body := entryBody(u.ID, "Conta", "DESPESA", 10)
	body["mes"] = 0
	rec = s.do(http.MethodPut, fmt.Sprintf("/api/lancamentos/%d", created.ID), body)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(core.MsgMesInvalido, rec.Body.String())
}

func (s *ServerTestSuite) TestUpdateStatus() {
	u := s.createUser("A", "a@a.com", "x")
	created := s.createEntry(entryBody(u.ID, "Conta", "DESPESA", 10))
	path := fmt.Sprintf("/api/lancamentos/%d/atualiza-status", created.ID)

	rec := s.do(http.MethodPut, path, map[string]any{"status": "efetivado"})
	s.Require().Equal(http.StatusOK, rec.Code)
	var l lancamentoResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &l))
	s.Equal("EFETIVADO", l.Status)

	rec = s.do(http.MethodPut, path, map[string]any{"status": "ARQUIVADO"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgStatusInvalido, rec.Body.String())

	rec = s.do(http.MethodPut, "/api/lancamentos/999/atualiza-status", map[string]any{"status": "EFETIVADO"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgLancamentoNaoEncontrado, rec.Body.String())
}

func (s *ServerTestSuite) TestDeleteEntry() {
	u := s.createUser("A", "a@a.com", "x")
	created := s.createEntry(entryBody(u.ID, "Conta", "DESPESA", 10))
	path := fmt.Sprintf("/api/lancamentos/%d", created.ID)

	rec := s.do(http.MethodDelete, path, nil)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(rec.Body.String())

	rec = s.do(http.MethodDelete, path, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgLancamentoNaoEncontrado, rec.Body.String())
}

func (s *ServerTestSuite) TestSearchEntries() {
	ana := s.createUser("Ana", "ana@email.com", "x")
	bob := s.createUser("Bob", "bob@email.com", "x")

	s.createEntry(entryBody(ana.ID, "Conta de Luz", "DESPESA", 100))
	agua := entryBody(ana.ID, "Conta de Água", "DESPESA", 50)
	agua["mes"] = 7
	s.createEntry(agua)
	s.createEntry(entryBody(ana.ID, "Salário", "RECEITA", 3000))
	s.createEntry(entryBody(bob.ID, "Conta de Gás", "DESPESA", 80))

	search := func(query string) []lancamentoResponse {
		rec := s.do(http.MethodGet, "/api/lancamentos?"+query, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var out []lancamentoResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	s.Len(search(fmt.Sprintf("usuario=%d", ana.ID)), 3)
	s.Len(search(fmt.Sprintf("usuario=%d&descricao=CONTA", ana.ID)), 2)
	got := search(fmt.Sprintf("usuario=%d&descricao=conta&mes=7&ano=2024", ana.ID))
	s.Require().Len(got, 1)
	s.Equal("Conta de Água", got[0].Descricao)
	s.Empty(search(fmt.Sprintf("usuario=%d&ano=1999", ana.ID)))

	rec := s.do(http.MethodGet, "/api/lancamentos?usuario=999", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgConsultaSemUsuario, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/lancamentos", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(msgConsultaSemUsuario, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/api/lancamentos?usuario=%d&mes=junho", ana.ID), nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestEmptySearchIsArray() {
	u := s.createUser("A", "a@a.com", "x")
	rec := s.do(http.MethodGet, fmt.Sprintf("/api/lancamentos?usuario=%d", u.ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("[]", rec.Body.String())
}

func (s *ServerTestSuite) TestHealthAndHeaders() {
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := s.do(http.MethodGet, path, nil)
		s.Equal(http.StatusOK, rec.Code, path)
		s.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
		s.NotEmpty(rec.Header().Get("X-Request-ID"))
	}
}

func (s *ServerTestSuite) TestMethodNotAllowed() {
	rec := s.do(http.MethodPatch, "/api/lancamentos/1", nil)
	s.Equal(http.StatusMethodNotAllowed, rec.Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is down") }

func TestReadyzReportsStoreFailure(t *testing.T) {
	store := memory.NewStore()
	srv, err := NewServer(":0",
		services.NewEntryService(store, nil),
		services.NewUserService(store, nil),
		failingPinger{},
		Options{Logger: log.New(log.Config{Output: io.Discard})})
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitAppliesToAPI(t *testing.T) {
	store := memory.NewStore()
	srv, err := NewServer(":0",
		services.NewEntryService(store, nil),
		services.NewUserService(store, nil),
		store,
		Options{Logger: log.New(log.Config{Output: io.Discard}), RateLimitPerMinute: 2})
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/usuarios/1/saldo", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health checks are not rate limited")
}

func TestInvalidTrustedProxy(t *testing.T) {
	store := memory.NewStore()
	_, err := NewServer(":0", services.NewEntryService(store, nil), services.NewUserService(store, nil), store,
		Options{TrustedProxies: []string{"not-a-cidr"}})
	assert.Error(t, err)
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minhasfinancas/internal/amqp"
	"minhasfinancas/internal/core"
)

func setupEntryService(t *testing.T) (*EntryService, *countingRepo, *fakePublisher, core.Usuario) {
	t.Helper()
	repo := newCountingRepo()
	pub := &fakePublisher{}
	svc := NewEntryService(repo, pub)
	svc.now = func() time.Time { return time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC) }

	u, err := repo.InsertUser(context.Background(), core.Usuario{Nome: "Ana", Email: "ana@email.com", Senha: "x"})
	require.NoError(t, err)
	return svc, repo, pub, u
}

func newEntry(u core.Usuario, tipo core.TipoLancamento, valor int64) core.Lancamento {
	return core.Lancamento{
		Descricao: "Lançamento",
		Mes:       6,
		Ano:       2024,
		Usuario:   &u,
		Valor:     decimal.NewFromInt(valor),
		Tipo:      tipo,
	}
}

func TestEntryService_SaveForcesPending(t *testing.T) {
	svc, _, pub, u := setupEntryService(t)
	ctx := context.Background()

	for _, status := range []core.StatusLancamento{"", core.Efetivado, core.Cancelado, core.Pendente} {
		l := newEntry(u, core.Receita, 10)
		l.Status = status

		saved, err := svc.Save(ctx, l)
		require.NoError(t, err)
		assert.NotZero(t, saved.ID)
		assert.Equal(t, core.Pendente, saved.Status, "input status %q", status)
		assert.Equal(t, "2024-06-15", saved.DataCadastro.Format("2006-01-02"))
	}

	require.Len(t, pub.events, 4)
	assert.Equal(t, amqp.EventCreated, pub.events[0].Event)
}

func TestEntryService_SaveValidationStopsPersistence(t *testing.T) {
	svc, repo, pub, u := setupEntryService(t)

	l := newEntry(u, core.Despesa, 10)
	l.Mes = 13

	_, err := svc.Save(context.Background(), l)
	var br *core.BusinessRuleError
	require.ErrorAs(t, err, &br)
	assert.Equal(t, core.MsgMesInvalido, br.Message)
	assert.Zero(t, repo.txCalls)
	assert.Zero(t, repo.saveCalls)
	assert.Empty(t, pub.events)
}

func TestEntryService_SaveRejectsUnstorableValue(t *testing.T) {
	svc, repo, pub, u := setupEntryService(t)
	ctx := context.Background()

	for _, valor := range []string{"100000000000000000", "0.004"} {
		l := newEntry(u, core.Receita, 1)
		l.Valor = decimal.RequireFromString(valor)

		_, err := svc.Save(ctx, l)
		msg, ok := core.IsUserFacing(err)
		require.True(t, ok, "valor %s: %v", valor, err)
		assert.Equal(t, core.MsgValorInvalido, msg)
	}
	assert.Zero(t, repo.saveCalls)
	assert.Empty(t, pub.events)

	balance, err := svc.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestEntryService_UpdateKeepsStatus(t *testing.T) {
	svc, _, pub, u := setupEntryService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, newEntry(u, core.Despesa, 10))
	require.NoError(t, err)

	saved.Status = core.Cancelado
	saved.Descricao = "Alterado"
	updated, err := svc.Update(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, core.Cancelado, updated.Status)

	got, found, err := svc.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, core.Cancelado, got.Status)
	assert.Equal(t, "Alterado", got.Descricao)

	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.EventUpdated, pub.events[1].Event)
	assert.Equal(t, saved.ID, pub.events[1].ID)
}

func TestEntryService_MissingIDPreconditions(t *testing.T) {
	svc, repo, _, u := setupEntryService(t)
	ctx := context.Background()
	l := newEntry(u, core.Receita, 10)

	_, err := svc.Update(ctx, l)
	assert.ErrorIs(t, err, core.ErrMissingID)

	err = svc.Delete(ctx, l)
	assert.ErrorIs(t, err, core.ErrMissingID)

	_, err = svc.SetStatus(ctx, l, core.Efetivado)
	assert.ErrorIs(t, err, core.ErrMissingID)

	_, ok := core.IsUserFacing(err)
	assert.False(t, ok)
	assert.Zero(t, repo.txCalls)
	assert.Zero(t, repo.saveCalls)
	assert.Zero(t, repo.deleteCalls)
}

func TestEntryService_UpdateValidates(t *testing.T) {
	svc, repo, _, u := setupEntryService(t)
	l := newEntry(u, core.Receita, 10)
	l.ID = 99
	l.Tipo = ""

	_, err := svc.Update(context.Background(), l)
	assert.EqualError(t, err, core.MsgTipoAusente)
	assert.Zero(t, repo.saveCalls)
}

func TestEntryService_SetStatus(t *testing.T) {
	svc, _, _, u := setupEntryService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, newEntry(u, core.Receita, 10))
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, saved, core.Efetivado)
	require.NoError(t, err)
	assert.Equal(t, core.Efetivado, updated.Status)

	got, _, err := svc.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Efetivado, got.Status)
}

func TestEntryService_Delete(t *testing.T) {
	svc, repo, pub, u := setupEntryService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, newEntry(u, core.Receita, 10))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, saved))
	assert.Equal(t, 1, repo.deleteCalls)

	_, found, err := svc.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, amqp.EventDeleted, pub.events[len(pub.events)-1].Event)
}

func TestEntryService_Find(t *testing.T) {
	svc, _, _, u := setupEntryService(t)
	ctx := context.Background()

	luz := newEntry(u, core.Despesa, 100)
	luz.Descricao = "Conta de Luz"
	agua := newEntry(u, core.Despesa, 50)
	agua.Descricao = "Conta de Água"
	agua.Mes = 7
	for _, l := range []core.Lancamento{luz, agua} {
		_, err := svc.Save(ctx, l)
		require.NoError(t, err)
	}

	got, err := svc.Find(ctx, core.Lancamento{Descricao: "conta", Usuario: &core.Usuario{ID: u.ID}})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Find(ctx, core.Lancamento{Descricao: "conta", Mes: 7, Usuario: &core.Usuario{ID: u.ID}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Conta de Água", got[0].Descricao)

	got, err = svc.Find(ctx, core.Lancamento{Usuario: &core.Usuario{ID: u.ID + 1}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEntryService_Balance(t *testing.T) {
	tests := []struct {
		name    string
		entries []core.Lancamento
		want    string
	}{
		{
			name: "no entries",
			want: "0",
		},
		{
			name: "income and expense",
			entries: []core.Lancamento{
				{Tipo: core.Receita, Valor: decimal.NewFromInt(100)},
				{Tipo: core.Despesa, Valor: decimal.NewFromInt(30)},
			},
			want: "70",
		},
		{
			name:    "only expenses",
			entries: []core.Lancamento{{Tipo: core.Despesa, Valor: decimal.RequireFromString("12.50")}},
			want:    "-12.5",
		},
		{
			name: "every status counts",
			entries: []core.Lancamento{
				{Tipo: core.Receita, Valor: decimal.NewFromInt(50), Status: core.Cancelado},
				{Tipo: core.Receita, Valor: decimal.NewFromInt(50), Status: core.Efetivado},
			},
			want: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, u := setupEntryService(t)
			ctx := context.Background()

			for _, e := range tt.entries {
				l := newEntry(u, e.Tipo, 0)
				l.Valor = e.Valor
				l.Status = e.Status
				_, err := repo.SaveEntry(ctx, l)
				require.NoError(t, err)
			}

			// entries of another user never count
			other := newEntry(core.Usuario{ID: u.ID + 1}, core.Receita, 1000)
			_, err := repo.SaveEntry(ctx, other)
			require.NoError(t, err)

			got, err := svc.Balance(ctx, u.ID)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "balance = %s, want %s", got, tt.want)
		})
	}
}

func TestEntryService_BalanceStoreError(t *testing.T) {
	svc, repo, _, u := setupEntryService(t)
	repo.sumErr = errors.New("disk failure")

	_, err := svc.Balance(context.Background(), u.ID)
	assert.ErrorContains(t, err, "disk failure")
}

func TestEntryService_PublishFailureDoesNotFail(t *testing.T) {
	svc, _, pub, u := setupEntryService(t)
	pub.err = errBroker

	saved, err := svc.Save(context.Background(), newEntry(u, core.Receita, 10))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
}

func TestEntryService_NilPublisher(t *testing.T) {
	repo := newCountingRepo()
	svc := NewEntryService(repo, nil)
	u, err := repo.InsertUser(context.Background(), core.Usuario{Email: "a@a.com"})
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), newEntry(u, core.Receita, 10))
	assert.NoError(t, err)
}

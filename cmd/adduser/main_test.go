package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minhasfinancas/internal/services"
	"minhasfinancas/internal/storage"
)

func TestRunCreatesUser(t *testing.T) {
	t.Setenv("PASSWORD_SCHEME", "plain")
	db := filepath.Join(t.TempDir(), "users.db")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-backend", "sqlite", "-db", db, "-nome", "Ana", "-email", "ana@example.com", "-senha", "123"},
		strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "created user 1 <ana@example.com>")

	repo, err := storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	defer repo.Close()

	u, found, err := repo.FindUserByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Ana", u.Nome)
	assert.Equal(t, "123", u.Senha)
}

func TestRunReadsPasswordFromStdin(t *testing.T) {
	t.Setenv("PASSWORD_SCHEME", "plain")
	db := filepath.Join(t.TempDir(), "users.db")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-backend", "sqlite", "-db", db, "-email", "bia@example.com"},
		strings.NewReader("segredo\n"), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	repo, err := storage.NewSQLiteRepository(db)
	require.NoError(t, err)
	defer repo.Close()

	u, found, err := repo.FindUserByEmail(context.Background(), "bia@example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "segredo", u.Senha)
}

func TestRunRejectsDuplicateEmail(t *testing.T) {
	t.Setenv("PASSWORD_SCHEME", "plain")
	db := filepath.Join(t.TempDir(), "users.db")
	args := []string{"-backend", "sqlite", "-db", db, "-email", "ana@example.com", "-senha", "123"}

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(args, strings.NewReader(""), &stdout, &stderr), stderr.String())

	stderr.Reset()
	assert.Equal(t, 1, run(args, strings.NewReader(""), &stdout, &stderr))
	assert.Contains(t, stderr.String(), services.MsgEmailJaCadastrado)
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing email", []string{"-senha", "x"}},
		{"unknown flag", []string{"-nope"}},
		{"memory backend", []string{"-backend", "memory", "-email", "a@b.c", "-senha", "x"}},
		{"unknown backend", []string{"-backend", "sheets", "-email", "a@b.c", "-senha", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 2, run(tt.args, strings.NewReader(""), &stdout, &stderr))
		})
	}
}

func TestRunEmptyPassword(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-backend", "sqlite", "-db", db, "-email", "a@b.c"}, strings.NewReader("\n"), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "empty password")
}

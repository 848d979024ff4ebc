package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minhasfinancas/internal/cache"
	"minhasfinancas/internal/core"
	"minhasfinancas/internal/credentials"
	"minhasfinancas/internal/log"
	"minhasfinancas/internal/storage"
)

const (
	MsgEmailNaoEncontrado = "Usuário não encontrado para o email informado."
	MsgSenhaInvalida      = "Senha Inválida."
	MsgEmailJaCadastrado  = "Já Existe um usuário cadastrado com este email."
)

// Users are never changed after registration, so lookups by id can be
// served from memory.
const (
	userCacheSize = 1024
	userCacheTTL  = 10 * time.Minute
)

type UserService struct {
	repo     storage.Repository
	verifier credentials.Verifier
	byID     *cache.LRU[int64, core.Usuario]
	logger   *log.Logger
}

// NewUserService wires the service. A nil verifier compares passwords as
// plain text.
func NewUserService(repo storage.Repository, verifier credentials.Verifier) *UserService {
	if verifier == nil {
		verifier = credentials.Plain{}
	}
	return &UserService{
		repo:     repo,
		verifier: verifier,
		byID:     cache.NewLRU[int64, core.Usuario](userCacheSize, userCacheTTL),
		logger:   log.Default().WithComponent(log.ComponentUser),
	}
}

// Authenticate looks the user up by exact email and checks the password.
func (s *UserService) Authenticate(ctx context.Context, email, senha string) (core.Usuario, error) {
	u, found, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return core.Usuario{}, fmt.Errorf("authenticate: %w", err)
	}
	if !found {
		return core.Usuario{}, core.NewAuthenticationError(MsgEmailNaoEncontrado)
	}
	if !s.verifier.Verify(u.Senha, senha) {
		s.logger.WarnContext(ctx, "Authentication failed", log.FieldUserID, u.ID)
		return core.Usuario{}, core.NewAuthenticationError(MsgSenhaInvalida)
	}
	return u, nil
}

// Register stores a new user after checking that the email is free. Both
// steps share one transaction.
func (s *UserService) Register(ctx context.Context, u core.Usuario) (core.Usuario, error) {
	var created core.Usuario
	err := s.repo.WithinTx(ctx, func(st storage.Store) error {
		exists, err := st.ExistsUserByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		if exists {
			return core.NewBusinessRuleError(MsgEmailJaCadastrado)
		}

		stored := u
		if stored.Senha, err = s.verifier.Hash(u.Senha); err != nil {
			return err
		}
		created, err = st.InsertUser(ctx, stored)
		if errors.Is(err, storage.ErrDuplicateEmail) {
			// Lost a race with a concurrent registration.
			return core.NewBusinessRuleError(MsgEmailJaCadastrado)
		}
		return err
	})
	if err != nil {
		if _, ok := core.IsUserFacing(err); ok {
			return core.Usuario{}, err
		}
		return core.Usuario{}, fmt.Errorf("register user: %w", err)
	}

	s.byID.Set(created.ID, created)
	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, created.ID, log.FieldOperation, log.OpCreate)
	return created, nil
}

func (s *UserService) FindByID(ctx context.Context, id int64) (core.Usuario, bool, error) {
	if u, ok := s.byID.Get(id); ok {
		return u, true, nil
	}
	u, found, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return core.Usuario{}, false, fmt.Errorf("find user %d: %w", id, err)
	}
	if found {
		s.byID.Set(id, u)
	}
	return u, found, nil
}

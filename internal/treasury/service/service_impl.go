package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	treasurydomain "github.com/tollgate-ai/tollgate/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo treasurydomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo treasurydomain.Repository
}

func New(p Params) treasurydomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("treasury.service"),
		repo: p.Repo,
	}
}

func (s *Service) Credit(ctx context.Context, workspaceID snowflake.ID, token string, amount int64) (int64, error) {
	balance, err := s.repo.Credit(ctx, s.db, workspaceID, token, amount)
	if err != nil {
		return 0, err
	}
	s.log.Info("treasury credited",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("token", token),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance),
	)
	return balance, nil
}

func (s *Service) Balance(ctx context.Context, workspaceID snowflake.ID, token string) (int64, error) {
	return s.repo.Balance(ctx, s.db, workspaceID, token)
}

package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	policydomain "github.com/tollgate-ai/tollgate/internal/policy/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) policydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("policy.service"),
	}
}

func (s *Service) GetAgentPolicy(ctx context.Context, apiKeyID snowflake.ID) (*policydomain.AgentPolicy, error) {
	var policy policydomain.AgentPolicy
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, workspace_id, api_key_id, daily_limit, monthly_limit, max_request, allowed_providers, is_active, created_at, updated_at
		 FROM agent_policies WHERE api_key_id = ? LIMIT 1`,
		apiKeyID,
	).Scan(&policy).Error
	if err != nil {
		return nil, err
	}
	if policy.ID == 0 {
		return nil, policydomain.ErrNotFound
	}
	return &policy, nil
}

func (s *Service) GetWorkspacePolicy(ctx context.Context, workspaceID snowflake.ID) (*policydomain.WorkspacePolicy, error) {
	var policy policydomain.WorkspacePolicy
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, workspace_id, monthly_budget, created_at, updated_at
		 FROM workspace_policies WHERE workspace_id = ? LIMIT 1`,
		workspaceID,
	).Scan(&policy).Error
	if err != nil {
		return nil, err
	}
	if policy.ID == 0 {
		return nil, nil
	}
	return &policy, nil
}

func (s *Service) SumAgentSpend(ctx context.Context, apiKeyID snowflake.ID, since time.Time) (int64, error) {
	var row struct {
		Total int64 `gorm:"column:total"`
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(treasury_amount), 0) AS total
		 FROM payments
		 WHERE api_key_id = ?
		   AND ((status = 'settled' AND completed_at >= ?)
		     OR (status = 'pending' AND created_at >= ?))`,
		apiKeyID,
		since.UTC(),
		since.UTC(),
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}

func (s *Service) SumWorkspaceSpend(ctx context.Context, workspaceID snowflake.ID, since time.Time) (int64, error) {
	var row struct {
		Total int64 `gorm:"column:total"`
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(treasury_amount), 0) AS total
		 FROM payments
		 WHERE workspace_id = ?
		   AND ((status = 'settled' AND completed_at >= ?)
		     OR (status = 'pending' AND created_at >= ?))`,
		workspaceID,
		since.UTC(),
		since.UTC(),
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Total, nil
}

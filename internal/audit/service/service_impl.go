package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/tollgate-ai/tollgate/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
	}
}

// Record appends an audit row. Audit write failures are logged and reported
// to the caller but must never abort the business operation that produced
// them; callers decide whether to escalate.
func (s *Service) Record(ctx context.Context, rec auditdomain.Record) error {
	if rec.ID == 0 {
		rec.ID = s.genID.Generate()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO audit_records (id, workspace_id, api_key_id, invoice_id, action, reason, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.WorkspaceID,
		rec.APIKeyID,
		rec.InvoiceID,
		rec.Action,
		rec.Reason,
		rec.Detail,
		rec.CreatedAt,
	).Error
	if err != nil {
		s.log.Error("audit record write failed",
			zap.String("action", string(rec.Action)),
			zap.String("invoice_id", rec.InvoiceID),
			zap.Error(err),
		)
	}
	return err
}

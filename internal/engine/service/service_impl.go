package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/tollgate-ai/tollgate/internal/apikey/domain"
	auditdomain "github.com/tollgate-ai/tollgate/internal/audit/domain"
	"github.com/tollgate-ai/tollgate/internal/clock"
	"github.com/tollgate-ai/tollgate/internal/config"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	obsmetrics "github.com/tollgate-ai/tollgate/internal/observability/metrics"
	paymentdomain "github.com/tollgate-ai/tollgate/internal/payment/domain"
	policydomain "github.com/tollgate-ai/tollgate/internal/policy/domain"
	"github.com/tollgate-ai/tollgate/internal/proof"
	quotedomain "github.com/tollgate-ai/tollgate/internal/quote/domain"
	"github.com/tollgate-ai/tollgate/internal/ratelimit"
	"github.com/tollgate-ai/tollgate/internal/rates"
	"github.com/tollgate-ai/tollgate/internal/resilience"
	"github.com/tollgate-ai/tollgate/internal/settlement"
	"github.com/tollgate-ai/tollgate/internal/swap"
	treasurydomain "github.com/tollgate-ai/tollgate/internal/treasury/domain"
	"github.com/tollgate-ai/tollgate/internal/workspacectx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Cfg           config.Config
	Clock         clock.Clock
	Resolver      *rates.Resolver
	APIKeyRepo    apikeydomain.Repository
	QuoteRepo     quotedomain.Repository
	PaymentRepo   paymentdomain.Repository
	TreasuryRepo  treasurydomain.Repository
	PolicySvc     policydomain.Service
	AuditSvc      auditdomain.Service
	ProofCodec    *proof.Codec
	SwapAdapter   swap.Adapter
	SettleAdapter settlement.Adapter
	InvoiceLocker *ratelimit.InvoiceLocker
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	cfg           config.Config
	clock         clock.Clock
	resolver      *rates.Resolver
	apiKeyRepo    apikeydomain.Repository
	quoteRepo     quotedomain.Repository
	paymentRepo   paymentdomain.Repository
	treasuryRepo  treasurydomain.Repository
	policySvc     policydomain.Service
	auditSvc      auditdomain.Service
	proofCodec    *proof.Codec
	swapAdapter   swap.Adapter
	settleAdapter settlement.Adapter
	invoiceLocker *ratelimit.InvoiceLocker
	metrics       *obsmetrics.Metrics

	// Adapters execute real value transfers, so neither call is retried:
	// a timed-out attempt may still have executed remotely. The callers
	// contribute the per-attempt timeout and circuit breaking only.
	swapCaller   *resilience.Caller
	settleCaller *resilience.Caller
}

func New(p Params) enginedomain.Service {
	log := p.Log.Named("engine.service")
	return &Service{
		db:            p.DB,
		log:           log,
		genID:         p.GenID,
		cfg:           p.Cfg,
		clock:         p.Clock,
		resolver:      p.Resolver,
		apiKeyRepo:    p.APIKeyRepo,
		quoteRepo:     p.QuoteRepo,
		paymentRepo:   p.PaymentRepo,
		treasuryRepo:  p.TreasuryRepo,
		policySvc:     p.PolicySvc,
		auditSvc:      p.AuditSvc,
		proofCodec:    p.ProofCodec,
		swapAdapter:   p.SwapAdapter,
		settleAdapter: p.SettleAdapter,
		invoiceLocker: p.InvoiceLocker,
		metrics:       p.Metrics,
		swapCaller:    resilience.NewCaller("swap", log, p.Cfg.AdapterTimeout, 1),
		settleCaller:  resilience.NewCaller("settlement", log, p.Cfg.AdapterTimeout, 1),
	}
}

type identity struct {
	WorkspaceID snowflake.ID
	APIKeyID    snowflake.ID
}

func (s *Service) identityFromContext(ctx context.Context) (identity, error) {
	workspaceID, ok := workspacectx.WorkspaceIDFromContext(ctx)
	if !ok || workspaceID == 0 {
		return identity{}, enginedomain.ErrUnauthenticated
	}
	apiKeyID, ok := workspacectx.APIKeyIDFromContext(ctx)
	if !ok || apiKeyID == 0 {
		return identity{}, enginedomain.ErrUnauthenticated
	}
	return identity{
		WorkspaceID: snowflake.ID(workspaceID),
		APIKeyID:    snowflake.ID(apiKeyID),
	}, nil
}

// providerHost resolves the provider identity for allow-list checks: the host
// of the provider URL when given, otherwise the payment address.
func providerHost(inv enginedomain.Invoice) string {
	if raw := strings.TrimSpace(inv.ProviderURL); raw != "" {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return strings.ToLower(u.Host)
		}
	}
	return strings.ToLower(strings.TrimSpace(inv.PayTo))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func denialMessage(reason string) string {
	switch reason {
	case enginedomain.ReasonAgentDisabled:
		return "agent key or policy is disabled"
	case enginedomain.ReasonProviderNotAllowed:
		return "provider is not on the agent allow-list"
	case enginedomain.ReasonAgentRequestLimit:
		return "amount exceeds the per-request limit"
	case enginedomain.ReasonAgentDailyLimit:
		return "daily spending limit would be exceeded"
	case enginedomain.ReasonAgentMonthlyLimit:
		return "monthly spending limit would be exceeded"
	case enginedomain.ReasonWorkspaceBudget:
		return "workspace budget would be exceeded"
	default:
		return "request denied"
	}
}

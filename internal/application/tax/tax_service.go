// Package tax serves tax rule resolution from a periodically refreshed
// snapshot of the rule table.
package tax

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/tax"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSnapshotTTL is used when the service is built with a zero TTL
const DefaultSnapshotTTL = 5 * time.Minute

type snapshot struct {
	resolver *tax.Resolver
	loadedAt time.Time
}

// TaxService resolves rules against an immutable snapshot. Readers never
// wait for writers; an expired snapshot is refreshed by one caller while the
// others keep the previous one.
type TaxService struct {
	repo    tax.TaxRuleRepository
	ttl     time.Duration
	logger  *zap.Logger
	current atomic.Pointer[snapshot]
	loads   singleflight.Group
	now     func() time.Time
}

// NewTaxService creates a TaxService
func NewTaxService(repo tax.TaxRuleRepository, ttl time.Duration, logger *zap.Logger) *TaxService {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaxService{repo: repo, ttl: ttl, logger: logger, now: time.Now}
}

// Resolver returns a resolver over the current rules
func (s *TaxService) Resolver(ctx context.Context) (*tax.Resolver, error) {
	snap := s.current.Load()
	if snap == nil {
		return s.Refresh(ctx)
	}
	if s.now().Sub(snap.loadedAt) > s.ttl {
		// a failed refresh keeps serving the stale rules
		r, err := s.Refresh(ctx)
		if err == nil {
			return r, nil
		}
		s.logger.Warn("Tax rule refresh failed, using previous snapshot", zap.Error(err))
	}
	return snap.resolver, nil
}

// Refresh reloads the rule table. Concurrent callers share one load.
func (s *TaxService) Refresh(ctx context.Context) (*tax.Resolver, error) {
	v, err, _ := s.loads.Do("rules", func() (any, error) {
		rules, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		r := tax.NewResolver(rules)
		s.current.Store(&snapshot{resolver: r, loadedAt: s.now()})
		s.logger.Debug("Tax rules loaded", zap.Int("rules", len(rules)))
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tax.Resolver), nil
}

// Resolve returns the most specific rule for an operation
func (s *TaxService) Resolve(ctx context.Context, q tax.Query) (tax.TaxRuleResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "tax", "resolve")
	defer span.End()

	r, err := s.Resolver(ctx)
	if err != nil {
		return tax.TaxRuleResult{}, err
	}
	res, err := r.Resolve(q)
	if err != nil {
		telemetry.RecordError(span, err)
		return tax.TaxRuleResult{}, err
	}
	return res, nil
}

// ResolveRequest is Resolve in API form
func (s *TaxService) ResolveRequest(ctx context.Context, req ResolveRequest) (*TaxRuleResponse, error) {
	res, err := s.Resolve(ctx, req.Query())
	if err != nil {
		return nil, err
	}
	resp := ToTaxRuleResponse(res)
	return &resp, nil
}

// Apply computes the taxes of base under a resolved rule
func (s *TaxService) Apply(base decimal.Decimal, result tax.TaxRuleResult) tax.TaxAmounts {
	return tax.Apply(base, result)
}

// CreateRule validates and stores a rule, then refreshes the snapshot
func (s *TaxService) CreateRule(ctx context.Context, req CreateRuleRequest) (*RuleResponse, error) {
	rule, err := tax.NewTaxRule(req.NCMCode, req.SourceState, req.DestState, tax.OperationType(req.OperationType),
		req.CFOP, req.CSTICMS, tax.Rates{ICMS: req.ICMSRate, IPI: req.IPIRate, PIS: req.PISRate, COFINS: req.COFINSRate})
	if err != nil {
		return nil, err
	}
	rule.ValidFrom, rule.ValidTo = req.ValidFrom, req.ValidTo
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, rule); err != nil {
		return nil, err
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("Tax rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("cfop", rule.CFOP),
		zap.String("route", rule.SourceState+"->"+rule.DestState),
	)
	resp := ToRuleResponse(rule)
	return &resp, nil
}

// DeactivateRule stops a rule from matching
func (s *TaxService) DeactivateRule(ctx context.Context, id uuid.UUID) (*RuleResponse, error) {
	r, err := s.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	var found *tax.TaxRule
	for _, rule := range r.Rules() {
		if rule.ID == id {
			found = rule
			break
		}
	}
	if found == nil {
		return nil, shared.Errorf(shared.ErrNotFound, "tax rule %s not found", id)
	}
	updated := *found
	updated.Active = false
	updated.Touch()
	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, err
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	resp := ToRuleResponse(&updated)
	return &resp, nil
}

// ListRules returns the rules of the current snapshot
func (s *TaxService) ListRules(ctx context.Context) ([]RuleResponse, error) {
	r, err := s.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	rules := r.Rules()
	out := make([]RuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = ToRuleResponse(rule)
	}
	return out, nil
}

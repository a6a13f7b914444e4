// Package filter is the security gate every answer passes through before it
// reaches a caller.
package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/metrics"
	"github.com/xiaot623/gogo/assistant/internal/permission"
)

// ErrUnknownRole is returned for a user whose role has no matrix entry.
var ErrUnknownRole = errors.New("unknown role")

// AuditSink durably records filter decisions.
type AuditSink interface {
	WriteAudit(ctx context.Context, entries []domain.AuditEntry) error
}

// Filter applies the permission matrix to responses. It holds no mutable state.
type Filter struct {
	matrix  *permission.Matrix
	decider Decider
	logger  *zap.Logger
}

// New creates a filter. A nil decider selects StaticDecider.
func New(matrix *permission.Matrix, decider Decider, logger *zap.Logger) *Filter {
	if decider == nil {
		decider = StaticDecider{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{matrix: matrix, decider: decider, logger: logger}
}

// Filter returns the part of resp the user may see, plus one audit entry per
// dropped or transformed fragment. The audit entries carry no timestamp or id.
func (f *Filter) Filter(ctx context.Context, resp domain.AgentResponse, user domain.User) (domain.FilteredResponse, []domain.AuditEntry, error) {
	entry, ok := f.matrix.Lookup(user.Role)
	if !ok {
		return domain.FilteredResponse{}, nil, fmt.Errorf("%w: %s", ErrUnknownRole, user.Role)
	}

	out := domain.FilteredResponse{
		Fragments:  make([]domain.Fragment, 0, len(resp.Fragments)),
		Provenance: resp.Provenance,
		Restricted: resp.Restricted,
	}
	var audit []domain.AuditEntry

	for _, frag := range resp.Fragments {
		verdict := f.decide(ctx, frag, entry, user)

		switch verdict.Decision {
		case domain.DecisionPass:
			out.Fragments = append(out.Fragments, frag)
			continue
		case domain.DecisionBucket:
			if frag.Bucketed {
				if isCanonicalBucket(frag) {
					out.Fragments = append(out.Fragments, frag)
					continue
				}
				verdict = Verdict{domain.DecisionDrop, ReasonMalformedBucket}
				break
			}
			if bucketed, ok := bucketFragment(frag); ok {
				out.Fragments = append(out.Fragments, bucketed)
				audit = append(audit, auditFor(user, frag, domain.DecisionBucket, verdict.Reason))
				continue
			}
			verdict = Verdict{domain.DecisionDrop, ReasonNoFigure}
		}

		out.Restricted = true
		audit = append(audit, auditFor(user, frag, domain.DecisionDrop, verdict.Reason))
	}

	if out.Restricted {
		out.Notice = domain.RestrictedNotice
	}
	return out, audit, nil
}

func (f *Filter) decide(ctx context.Context, frag domain.Fragment, entry permission.Entry, user domain.User) Verdict {
	if !frag.Kind.Valid() {
		return Verdict{domain.DecisionDrop, ReasonUnknownKind}
	}
	verdict, err := f.decider.Decide(ctx, Input{Fragment: frag, Entry: entry, User: user})
	if err != nil {
		f.logger.Error("policy evaluation failed, dropping fragment", zap.Error(err))
		return Verdict{domain.DecisionDrop, ReasonEvaluationError}
	}
	return verdict
}

func bucketFragment(frag domain.Fragment) (domain.Fragment, bool) {
	var amount float64
	if frag.Amount != nil {
		amount = *frag.Amount
	} else {
		v, ok := ParseAmount(frag.Text)
		if !ok {
			return domain.Fragment{}, false
		}
		amount = v
	}
	subject := frag.Subject
	if _, ok := ParseAmount(subject); ok {
		subject = ""
	}
	return domain.Fragment{
		Text:      bucketText(subject, BucketLabel(amount)),
		Level:     frag.Level,
		Kind:      frag.Kind,
		Project:   frag.Project,
		Subject:   subject,
		Bucketed:  true,
		HandlerID: frag.HandlerID,
	}, true
}

func bucketText(subject, label string) string {
	if subject == "" {
		subject = "Budget"
	}
	return subject + ": " + label
}

// isCanonicalBucket reports whether frag is exactly what bucketFragment
// produces: a figure-free subject followed by a predefined label.
func isCanonicalBucket(frag domain.Fragment) bool {
	if frag.Amount != nil {
		return false
	}
	if _, ok := ParseAmount(frag.Subject); ok {
		return false
	}
	prefix := bucketText(frag.Subject, "")
	label, ok := strings.CutPrefix(frag.Text, prefix)
	return ok && IsBucketLabel(label)
}

func auditFor(user domain.User, frag domain.Fragment, decision domain.FilterDecision, reason string) domain.AuditEntry {
	e := domain.AuditEntry{
		UserID:       user.ID,
		FragmentKind: frag.Kind,
		Level:        frag.Level,
		Decision:     decision,
		Reason:       reason,
		HandlerID:    frag.HandlerID,
	}
	if decision == domain.DecisionDrop {
		e.Signal = domain.KindPolicyViolationPrevented
	}
	return e
}

// Gate is the single choke point: it filters and synchronously audits.
type Gate struct {
	filter  *Filter
	sink    AuditSink
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewGate creates a gate writing audit entries to sink.
func NewGate(filter *Filter, sink AuditSink, m *metrics.Metrics, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{filter: filter, sink: sink, metrics: m, logger: logger, now: time.Now}
}

// Apply filters resp for user and commits the audit trail before returning.
// A failed audit write fails the call; the filtered content must not be released.
func (g *Gate) Apply(ctx context.Context, resp domain.AgentResponse, user domain.User) (*domain.FilteredResponse, error) {
	ctx, span := otel.Tracer("assistant/filter").Start(ctx, "filter.apply")
	defer span.End()

	out, audit, err := g.filter.Filter(ctx, resp, user)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("fragments.in", len(resp.Fragments)),
		attribute.Int("fragments.out", len(out.Fragments)),
	)

	for _, frag := range out.Fragments {
		if !frag.Bucketed {
			g.metrics.RecordFilterDecision(string(frag.Kind), string(domain.DecisionPass))
		}
	}

	if len(audit) == 0 {
		return &out, nil
	}

	ts := g.now().UTC()
	for i := range audit {
		audit[i].ID = "aud_" + uuid.NewString()
		audit[i].Timestamp = ts
		g.metrics.RecordFilterDecision(string(audit[i].FragmentKind), string(audit[i].Decision))
	}

	if err := g.sink.WriteAudit(ctx, audit); err != nil {
		g.logger.Error("failed to write audit entries", zap.String("user_id", user.ID), zap.Int("entries", len(audit)), zap.Error(err))
		return nil, fmt.Errorf("failed to write audit log: %w", err)
	}
	g.logger.Debug("filter applied",
		zap.String("user_id", user.ID),
		zap.Int("audited", len(audit)),
		zap.Bool("restricted", out.Restricted),
	)
	return &out, nil
}

package filter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/permission"
	"github.com/xiaot623/gogo/assistant/policy"
)

func amount(v float64) *float64 { return &v }

type recordingSink struct {
	entries []domain.AuditEntry
	err     error
}

func (s *recordingSink) WriteAudit(_ context.Context, entries []domain.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entries...)
	return nil
}

func newRegoFilter(t testing.TB) *Filter {
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	return New(permission.Default(), NewRegoDecider(engine), nil)
}

func TestDirectorProjectSpecificBudget(t *testing.T) {
	ctx := context.Background()
	user := domain.User{ID: "d1", Role: domain.RoleDirector, AssignedProjects: []string{"P1"}}
	resp := domain.AgentResponse{Fragments: []domain.Fragment{
		{Text: "P1 budget is $250,000", Level: 1, Kind: domain.FieldBudget, Project: "P1", Amount: amount(250000)},
		{Text: "P2 budget is $900,000", Level: 1, Kind: domain.FieldBudget, Project: "P2", Amount: amount(900000)},
	}}

	for name, f := range map[string]*Filter{"static": New(permission.Default(), nil, nil), "rego": newRegoFilter(t)} {
		t.Run(name, func(t *testing.T) {
			out, audit, err := f.Filter(ctx, resp, user)
			require.NoError(t, err)
			require.Len(t, out.Fragments, 1)
			assert.Equal(t, resp.Fragments[0], out.Fragments[0])
			assert.True(t, out.Restricted)
			assert.Equal(t, domain.RestrictedNotice, out.Notice)
			require.Len(t, audit, 1)
			assert.Equal(t, domain.DecisionDrop, audit[0].Decision)
			assert.Equal(t, ReasonProjectNotAssigned, audit[0].Reason)
			assert.NotContains(t, out.Notice, "P2")
		})
	}
}

func TestLeadershipSeesAllLevels(t *testing.T) {
	user := domain.User{ID: "l1", Role: domain.RoleLeadership}
	var frags []domain.Fragment
	for l := domain.MinSensitivity; l <= domain.MaxSensitivity; l++ {
		frags = append(frags, domain.Fragment{Text: fmt.Sprintf("level %d fact", l), Level: l, Kind: domain.FieldGeneral})
	}
	frags = append(frags,
		domain.Fragment{Text: "Margin on Acme is 31%", Level: 1, Kind: domain.FieldFinancial},
		domain.Fragment{Text: "SAG-AFTRA day rate applies", Level: 4, Kind: domain.FieldUnion},
		domain.Fragment{Text: "Acme budget $2.4M", Level: 1, Kind: domain.FieldBudget},
	)
	resp := domain.AgentResponse{Fragments: frags}

	out, audit, err := New(permission.Default(), nil, nil).Filter(context.Background(), resp, user)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(frags, out.Fragments))
	assert.Empty(t, audit)
	assert.False(t, out.Restricted)
	assert.Empty(t, out.Notice)
}

func TestSalespersonBucketsBudget(t *testing.T) {
	user := domain.User{ID: "s1", Role: domain.RoleSalesperson}
	resp := domain.AgentResponse{Fragments: []domain.Fragment{
		{Text: "Acme Q3 spend was $250,000", Subject: "Acme Q3 spend", Level: 2, Kind: domain.FieldBudget},
		{Text: "Budget still being negotiated", Level: 2, Kind: domain.FieldBudget},
		{Text: "Margin is 31%", Level: 2, Kind: domain.FieldFinancial},
	}}

	out, audit, err := New(permission.Default(), nil, nil).Filter(context.Background(), resp, user)
	require.NoError(t, err)
	require.Len(t, out.Fragments, 1)
	assert.Equal(t, "Acme Q3 spend: $100k–$300k tier", out.Fragments[0].Text)
	assert.True(t, out.Fragments[0].Bucketed)
	assert.Nil(t, out.Fragments[0].Amount)

	require.Len(t, audit, 3)
	assert.Equal(t, domain.DecisionBucket, audit[0].Decision)
	assert.Equal(t, ReasonNoFigure, audit[1].Reason)
	assert.Equal(t, ReasonFinancialNotAllowed, audit[2].Reason)
	assert.Equal(t, domain.KindPolicyViolationPrevented, audit[2].Signal)
}

func TestBucketMarkerIsNotTrusted(t *testing.T) {
	f := New(permission.Default(), nil, nil)
	sales := domain.User{ID: "u_sam", Role: domain.RoleSalesperson}
	resp := domain.AgentResponse{Fragments: []domain.Fragment{
		{Text: "Acme budget is exactly $2,450,000", Level: 2, Kind: domain.FieldBudget, Bucketed: true},
		{Text: "Acme total $2,450,000: $1M–$5M tier", Subject: "Acme total $2,450,000", Level: 2, Kind: domain.FieldBudget, Bucketed: true},
		{Text: "Acme total came in", Subject: "Acme total $2,450,000", Amount: amount(2_450_000), Level: 2, Kind: domain.FieldBudget},
		{Text: "Globex retainer: $100k–$300k tier", Subject: "Globex retainer", Level: 2, Kind: domain.FieldBudget, Bucketed: true},
	}}

	out, audit, err := f.Filter(context.Background(), resp, sales)
	require.NoError(t, err)

	texts := make([]string, 0, len(out.Fragments))
	for _, frag := range out.Fragments {
		texts = append(texts, frag.Text)
		assert.NotContains(t, frag.Text, "2,450,000")
		assert.NotContains(t, frag.Subject, "2,450,000")
	}
	assert.Equal(t, []string{"Budget: $1M–$5M tier", "Globex retainer: $100k–$300k tier"}, texts)
	require.Len(t, audit, 3)
	assert.Equal(t, ReasonMalformedBucket, audit[0].Reason)
	assert.Equal(t, ReasonMalformedBucket, audit[1].Reason)
	assert.Equal(t, domain.DecisionBucket, audit[2].Decision)
	assert.True(t, out.Restricted)
}

func TestUnknownRoleAndKind(t *testing.T) {
	f := New(permission.Default(), nil, nil)
	_, _, err := f.Filter(context.Background(), domain.AgentResponse{}, domain.User{ID: "x", Role: "intern"})
	assert.ErrorIs(t, err, ErrUnknownRole)

	out, audit, err := f.Filter(context.Background(), domain.AgentResponse{Fragments: []domain.Fragment{
		{Text: "?", Level: 6, Kind: "gossip"},
	}}, domain.User{ID: "l", Role: domain.RoleLeadership})
	require.NoError(t, err)
	assert.Empty(t, out.Fragments)
	assert.Equal(t, ReasonUnknownKind, audit[0].Reason)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"$250,000":              250000,
		"about $1.2M total":     1200000,
		"$300k":                 300000,
		"$ 45":                  45,
		"$2 million":            2000000,
		"a $5 mission statement": 5,
	}
	for text, want := range cases {
		got, ok := ParseAmount(text)
		assert.True(t, ok, text)
		assert.InDelta(t, want, got, 0.001, text)
	}
	_, ok := ParseAmount("no figure here")
	assert.False(t, ok)
}

func TestBucketLabelEdges(t *testing.T) {
	assert.Equal(t, "Under $100k tier", BucketLabel(99_999))
	assert.Equal(t, "$100k–$300k tier", BucketLabel(100_000))
	assert.Equal(t, "$1M–$5M tier", BucketLabel(1_000_000))
	assert.Equal(t, "$5M+ tier", BucketLabel(12_000_000))
}

func TestGateAuditsSynchronously(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate(New(permission.Default(), nil, nil), sink, nil, nil)
	user := domain.User{ID: "s1", Role: domain.RoleSalesperson}
	resp := domain.AgentResponse{Fragments: []domain.Fragment{
		{Text: "exact total $1,250,000", Level: 1, Kind: domain.FieldBudget},
		{Text: "deck is ready", Level: 6, Kind: domain.FieldGeneral},
	}}

	out, err := gate.Apply(context.Background(), resp, user)
	require.NoError(t, err)
	assert.Len(t, out.Fragments, 1)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "s1", sink.entries[0].UserID)
	assert.True(t, strings.HasPrefix(sink.entries[0].ID, "aud_"))
	assert.False(t, sink.entries[0].Timestamp.IsZero())
}

func TestGateFailsWhenAuditFails(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	gate := NewGate(New(permission.Default(), nil, nil), sink, nil, nil)
	resp := domain.AgentResponse{Fragments: []domain.Fragment{
		{Text: "margin 40%", Level: 2, Kind: domain.FieldFinancial},
	}}

	out, err := gate.Apply(context.Background(), resp, domain.User{ID: "s1", Role: domain.RoleSalesperson})
	assert.Error(t, err)
	assert.Nil(t, out)
}

var subjects = []string{"Acme spend", "Globex retainer", "Initech pilot", "Acme total $2,450,000", ""}

func fragmentGen() *rapid.Generator[domain.Fragment] {
	return rapid.Custom(func(t *rapid.T) domain.Fragment {
		f := domain.Fragment{
			Level:    domain.SensitivityLevel(rapid.IntRange(0, 7).Draw(t, "level")),
			Kind:     rapid.SampledFrom([]domain.FieldKind{domain.FieldGeneral, domain.FieldBudget, domain.FieldFinancial, domain.FieldUnion}).Draw(t, "kind"),
			Project:  rapid.SampledFrom([]string{"", "P1", "P2", "P3"}).Draw(t, "project"),
			Subject:  rapid.SampledFrom(subjects).Draw(t, "subject"),
			Bucketed: rapid.Bool().Draw(t, "bucketed"),
		}
		v := float64(rapid.IntRange(1, 20_000_000).Draw(t, "amount"))
		switch rapid.IntRange(0, 3).Draw(t, "figure") {
		case 0:
			f.Amount = &v
			f.Text = fmt.Sprintf("%s is $%.0f", f.Subject, v)
		case 1:
			f.Text = fmt.Sprintf("%s came to $%.0f", f.Subject, v)
		case 2:
			f.Text = bucketText(f.Subject, rapid.SampledFrom(Buckets).Draw(t, "bucket").Label)
		default:
			f.Text = rapid.StringMatching(`[a-z ]{0,20}`).Draw(t, "text")
		}
		return f
	})
}

func userGen() *rapid.Generator[domain.User] {
	return rapid.Custom(func(t *rapid.T) domain.User {
		u := domain.User{
			ID:   "u",
			Role: rapid.SampledFrom(domain.Roles).Draw(t, "role"),
		}
		for _, p := range []string{"P1", "P2", "P3"} {
			if rapid.Bool().Draw(t, "assigned_"+p) {
				u.AssignedProjects = append(u.AssignedProjects, p)
			}
		}
		return u
	})
}

func TestSensitivityContainmentProperty(t *testing.T) {
	matrix := permission.Default()
	f := New(matrix, nil, nil)
	rapid.Check(t, func(t *rapid.T) {
		user := userGen().Draw(t, "user")
		frags := rapid.SliceOfN(fragmentGen(), 0, 8).Draw(t, "fragments")
		entry, _ := matrix.Lookup(user.Role)

		out, _, err := f.Filter(context.Background(), domain.AgentResponse{Fragments: frags}, user)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		for _, frag := range out.Fragments {
			if !entry.AllowedLevels.Contains(frag.Level) {
				t.Fatalf("level %d leaked to %s", frag.Level, user.Role)
			}
		}
	})
}

func TestIdempotenceProperty(t *testing.T) {
	f := New(permission.Default(), nil, nil)
	rapid.Check(t, func(t *rapid.T) {
		user := userGen().Draw(t, "user")
		resp := domain.AgentResponse{Fragments: rapid.SliceOfN(fragmentGen(), 0, 8).Draw(t, "fragments")}

		once, _, err := f.Filter(context.Background(), resp, user)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		again, _, err := f.Filter(context.Background(), resp, user)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		twice, audit, err := f.Filter(context.Background(), once.AsResponse(), user)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		if diff := cmp.Diff(once, again); diff != "" {
			t.Fatalf("not deterministic (-first +second):\n%s", diff)
		}
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("not idempotent (-once +twice):\n%s", diff)
		}
		if len(audit) != 0 {
			t.Fatalf("re-filtering produced %d audit entries", len(audit))
		}
	})
}

func TestBudgetBucketingProperty(t *testing.T) {
	f := New(permission.Default(), nil, nil)
	rapid.Check(t, func(t *rapid.T) {
		user := userGen().Draw(t, "user")
		if user.Role != domain.RoleSalesperson && user.Role != domain.RoleCreativeDirector {
			user.Role = domain.RoleSalesperson
		}
		frags := rapid.SliceOfN(fragmentGen(), 0, 8).Draw(t, "fragments")

		out, _, err := f.Filter(context.Background(), domain.AgentResponse{Fragments: frags}, user)
		if err != nil {
			t.Fatalf("filter: %v", err)
		}
		for _, frag := range out.Fragments {
			if frag.Kind != domain.FieldBudget {
				continue
			}
			if !frag.Bucketed || frag.Amount != nil {
				t.Fatalf("budget fragment not bucketed: %+v", frag)
			}
			idx := strings.LastIndex(frag.Text, ": ")
			if idx < 0 || !IsBucketLabel(frag.Text[idx+2:]) {
				t.Fatalf("budget fragment is not a range label: %q", frag.Text)
			}
			if _, ok := ParseAmount(frag.Text[:idx]); ok {
				t.Fatalf("budget fragment carries a figure: %q", frag.Text)
			}
		}
	})
}

func TestRegoMatchesStaticProperty(t *testing.T) {
	matrix := permission.Default()
	rego := newRegoFilter(t)
	static := New(matrix, nil, nil)
	rapid.Check(t, func(t *rapid.T) {
		user := userGen().Draw(t, "user")
		frag := fragmentGen().Draw(t, "fragment")
		entry, _ := matrix.Lookup(user.Role)
		in := Input{Fragment: frag, Entry: entry, User: user}

		want, _ := static.decider.Decide(context.Background(), in)
		got, err := rego.decider.Decide(context.Background(), in)
		if err != nil {
			t.Fatalf("rego: %v", err)
		}
		if want != got {
			t.Fatalf("static %+v != rego %+v for %+v", want, got, frag)
		}
	})
}

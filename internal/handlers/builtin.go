package handlers

import (
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/assistant/internal/knowledge"
)

// BuiltinCapabilities are the domain handlers shipped with the assistant.
var BuiltinCapabilities = []Capability{
	{
		ID:       SalesID,
		Name:     "Sales intelligence",
		Domains:  []string{"sales"},
		Keywords: []string{"sales", "client", "clients", "pipeline", "deck", "pitch", "renewal", "acme", "globex", "account", "budget", "spend", "case study"},
	},
	{
		ID:       TalentID,
		Name:     "Talent discovery",
		Domains:  []string{"talent"},
		Keywords: []string{"talent", "director", "directors", "cast", "casting", "actors", "crew", "roster", "cinematographer", "union", "sag", "aftra", "residuals"},
	},
	{
		ID:       BiddingID,
		Name:     "Bidding support",
		Domains:  []string{"bidding"},
		Keywords: []string{"bid", "bids", "rfp", "proposal", "tender", "estimate", "deadline", "budget", "iatse", "overtime", "brand film"},
	},
	{
		ID:       LeadershipID,
		Name:     "Leadership analytics",
		Domains:  []string{"leadership"},
		Keywords: []string{"revenue", "margin", "margins", "profit", "profitability", "forecast", "quarter", "headcount", "utilization", "growth", "performance"},
	},
}

// Deps are the collaborators of the built-in handlers.
type Deps struct {
	Knowledge knowledge.Store
	Unions    UnionLookup
	Generator Generator
	Remote    []RemoteSpec
	Agents    *agentclient.Client
	Logger    *zap.Logger
}

// RegisterBuiltins registers the domain handlers, any remote handlers and the
// general fallback into pool.
func RegisterBuiltins(pool *Pool, deps Deps) error {
	for _, capability := range BuiltinCapabilities {
		opts := []CatalogOption{}
		switch capability.ID {
		case TalentID:
			if deps.Unions != nil {
				opts = append(opts, WithUnionLookup(deps.Unions))
			}
		case BiddingID:
			if deps.Unions != nil {
				opts = append(opts, WithUnionLookup(deps.Unions))
			}
			opts = append(opts, WithHandoffs(Handoff{Terms: []string{"casting", "cast", "actors", "talent"}, Next: TalentID}))
		case SalesID:
			opts = append(opts, WithHandoffs(Handoff{Terms: []string{"rfp", "proposal", "tender"}, Next: BiddingID}))
		}
		if err := pool.Register(NewCatalogHandler(capability, deps.Knowledge, deps.Logger, opts...)); err != nil {
			return err
		}
	}
	for _, spec := range deps.Remote {
		if err := pool.Register(NewRemoteHandler(spec, deps.Agents)); err != nil {
			return err
		}
	}
	return pool.Register(NewGeneralHandler(deps.Generator, deps.Logger))
}

package memory

import (
	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/textutil"
)

// Resolve decides one consolidation pass. Pending records are taken in
// staging order and compete with the current holder of their dedup key:
// higher confidence wins, then the newer observation, and on a full tie the
// holder stays. Losers become superseded and point at the winner. When the
// competing facts say the same thing, the survivor keeps the newer
// observation time. It returns every record whose state changed.
//
// Resolve is pure; with no pending records it changes nothing.
func Resolve(active, pending []domain.MemoryRecord) []domain.MemoryRecord {
	var order []string
	changed := make(map[string]*domain.MemoryRecord)
	touch := func(r *domain.MemoryRecord) {
		if _, ok := changed[r.ID]; !ok {
			order = append(order, r.ID)
		}
		changed[r.ID] = r
	}

	holders := make(map[string]*domain.MemoryRecord)
	for i := range active {
		r := active[i]
		holders[r.Key] = &r
	}

	for i := range pending {
		cand := pending[i]
		c := &cand
		holder, ok := holders[c.Key]
		if !ok {
			c.Status = domain.MemoryActive
			holders[c.Key] = c
			touch(c)
			continue
		}

		winner, loser := holder, c
		if beats(c, holder) {
			winner, loser = c, holder
		}
		winner.Status = domain.MemoryActive
		winner.SupersededBy = ""
		refreshed := false
		if sameFact(winner, loser) && loser.ObservedAt.After(winner.ObservedAt) {
			winner.ObservedAt = loser.ObservedAt
			refreshed = true
		}
		loser.Status = domain.MemorySuperseded
		loser.SupersededBy = winner.ID
		holders[c.Key] = winner
		if winner == c || refreshed {
			touch(winner)
		}
		touch(loser)
	}

	out := make([]domain.MemoryRecord, 0, len(order))
	for _, id := range order {
		out = append(out, *changed[id])
	}
	return out
}

func beats(cand, holder *domain.MemoryRecord) bool {
	if cand.Confidence != holder.Confidence {
		return cand.Confidence > holder.Confidence
	}
	return cand.ObservedAt.After(holder.ObservedAt)
}

func sameFact(a, b *domain.MemoryRecord) bool {
	return textutil.Normalize(a.Fact) == textutil.Normalize(b.Fact)
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/gogo/assistant/internal/domain"
)

func TestMergedKeepsFragmentsWithDifferentBudgetData(t *testing.T) {
	low, high := 120_000.0, 2_400_000.0
	r := fanOutResult{chains: []chain{
		{fragments: []domain.Fragment{
			{Text: "Acme budget", Kind: domain.FieldBudget, Level: 2, Subject: "Acme", Amount: &low},
			{Text: "Acme renews in March.", Kind: domain.FieldGeneral, Level: 1},
		}},
		{fragments: []domain.Fragment{
			{Text: "Acme budget", Kind: domain.FieldBudget, Level: 2, Subject: "Acme", Amount: &high},
			{Text: "Acme budget", Kind: domain.FieldBudget, Level: 2, Subject: "Acme launch", Amount: &low},
			{Text: "Acme renews in March.", Kind: domain.FieldGeneral, Level: 1},
		}},
	}}

	merged := r.merged()
	assert.Len(t, merged.Fragments, 4)
	assert.Equal(t, high, *merged.Fragments[2].Amount)
	assert.Equal(t, "Acme launch", merged.Fragments[3].Subject)
}

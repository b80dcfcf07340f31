package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cupid-chocolate/giftlab/internal/storage"
	"github.com/cupid-chocolate/giftlab/internal/storage/storagetest"
)

func seededChain(t *testing.T) *TierChain {
	t.Helper()
	db := storagetest.NewSeededDB(t)
	return NewTierChain(storage.NewGiftRepository(db), storage.NewCustomerRepository(db), nil)
}

func names(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ProductName
	}
	return out
}

func TestTierChain_Seeded(t *testing.T) {
	chain := seededChain(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		customerID string
		wantTier   Tier
		wantNames  []string
	}{
		{"personal skips returned rows", "C001", TierPersonal, []string{"Dark Truffle", "Milk Hearts"}},
		{"personal includes unknown return flag", "C002", TierPersonal, []string{"White Bouquet", "Milk Hearts"}},
		{"cohort of same tier age and country", "C005", TierCohort, []string{"Dark Truffle", "Milk Hearts", "White Bouquet"}},
		{"persona when history is all returns", "C003", TierPersona, []string{"Milk Hearts"}},
		{"global for a customer without signals", "C004", TierGlobal, []string{"White Bouquet", "Dark Truffle", "Milk Hearts", "Milk Hearts", "Milk Hearts"}},
		{"global for an unknown customer", "C999", TierGlobal, []string{"White Bouquet", "Dark Truffle", "Milk Hearts", "Milk Hearts", "Milk Hearts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chain.Retrieve(ctx, tt.customerID, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantNames, names(got.Candidates))
			for _, c := range got.Candidates {
				assert.Equal(t, tt.wantTier, c.Tier)
			}
		})
	}

	t.Run("profile and signals are carried", func(t *testing.T) {
		got, err := chain.Retrieve(ctx, "C001", 5)
		require.NoError(t, err)
		require.NotNil(t, got.Customer)
		assert.Equal(t, "Gold", got.Customer.LoyaltyTier)
		assert.Equal(t, "romantic", got.Signals.TopPersona)
		require.NotNil(t, got.Signals.AvgOrderValue)
		assert.Equal(t, 30.0, *got.Signals.AvgOrderValue)
		assert.Equal(t, "2025-02-10T10:00:00", got.Candidates[0].LastEvent)
	})

	t.Run("unknown customer has no profile", func(t *testing.T) {
		got, err := chain.Retrieve(ctx, "C999", 5)
		require.NoError(t, err)
		assert.Nil(t, got.Customer)
		assert.Nil(t, got.Signals.AvgOrderValue)
	})
}

func TestTierChain_EmptyDatabase(t *testing.T) {
	db := storagetest.NewDB(t)
	chain := NewTierChain(storage.NewGiftRepository(db), storage.NewCustomerRepository(db), nil)

	got, err := chain.Retrieve(context.Background(), "C001", 5)
	require.NoError(t, err)
	assert.Equal(t, TierNone, got.Tier)
	assert.Empty(t, got.Candidates)
}

// fakeGifts answers tier queries from fixed rows and records which tiers ran.
type fakeGifts struct {
	signals  storage.CustomerSignals
	personal []storage.CandidateRow
	cohort   []storage.CandidateRow
	persona  []storage.CandidateRow
	global   []storage.CandidateRow
	err      error

	calls        []Tier
	cohortFilter storage.CohortFilter
}

func (f *fakeGifts) CustomerSignals(context.Context, string) (*storage.CustomerSignals, error) {
	s := f.signals
	return &s, nil
}

func (f *fakeGifts) PersonalHistory(context.Context, string, int) ([]storage.CandidateRow, error) {
	f.calls = append(f.calls, TierPersonal)
	return f.personal, f.err
}

func (f *fakeGifts) Cohort(_ context.Context, filter storage.CohortFilter, _ int) ([]storage.CandidateRow, error) {
	f.calls = append(f.calls, TierCohort)
	f.cohortFilter = filter
	return f.cohort, nil
}

func (f *fakeGifts) ByPersona(context.Context, string, int) ([]storage.CandidateRow, error) {
	f.calls = append(f.calls, TierPersona)
	return f.persona, nil
}

func (f *fakeGifts) Global(context.Context, int) ([]storage.CandidateRow, error) {
	f.calls = append(f.calls, TierGlobal)
	return f.global, nil
}

type fakeCustomers map[string]*storage.Customer

func (f fakeCustomers) GetByID(_ context.Context, id string) (*storage.Customer, error) {
	if c, ok := f[id]; ok {
		return c, nil
	}
	return nil, storage.ErrNotFound
}

func row(name string) storage.CandidateRow {
	return storage.CandidateRow{ProductName: name, ProductCategory: "Truffles"}
}

func TestTierChain_ShortCircuits(t *testing.T) {
	gold := fakeCustomers{"C1": {CustomerID: "C1", LoyaltyTier: "Gold", AgeBand: "25-34", CountryCode: "US"}}

	tests := []struct {
		name      string
		gifts     *fakeGifts
		customers fakeCustomers
		wantTier  Tier
		wantCalls []Tier
	}{
		{
			name:      "personal stops the chain",
			gifts:     &fakeGifts{personal: []storage.CandidateRow{row("a")}, global: []storage.CandidateRow{row("g")}},
			customers: gold,
			wantTier:  TierPersonal,
			wantCalls: []Tier{TierPersonal},
		},
		{
			name:      "cohort needs a loyalty tier",
			gifts:     &fakeGifts{cohort: []storage.CandidateRow{row("c")}, global: []storage.CandidateRow{row("g")}},
			customers: fakeCustomers{"C1": {CustomerID: "C1"}},
			wantTier:  TierGlobal,
			wantCalls: []Tier{TierPersonal, TierGlobal},
		},
		{
			name:      "persona needs a top persona",
			gifts:     &fakeGifts{persona: []storage.CandidateRow{row("p")}, global: []storage.CandidateRow{row("g")}},
			customers: fakeCustomers{},
			wantTier:  TierGlobal,
			wantCalls: []Tier{TierPersonal, TierGlobal},
		},
		{
			name: "persona after empty cohort",
			gifts: &fakeGifts{
				signals: storage.CustomerSignals{TopPersona: "romantic"},
				persona: []storage.CandidateRow{row("p")},
				global:  []storage.CandidateRow{row("g")},
			},
			customers: gold,
			wantTier:  TierPersona,
			wantCalls: []Tier{TierPersonal, TierCohort, TierPersona},
		},
		{
			name:      "all empty",
			gifts:     &fakeGifts{signals: storage.CustomerSignals{TopPersona: "romantic"}},
			customers: gold,
			wantTier:  TierNone,
			wantCalls: []Tier{TierPersonal, TierCohort, TierPersona, TierGlobal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTierChain(tt.gifts, tt.customers, nil).Retrieve(context.Background(), "C1", 5)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantCalls, tt.gifts.calls)
		})
	}
}

func TestTierChain_CohortFilter(t *testing.T) {
	gifts := &fakeGifts{
		signals: storage.CustomerSignals{TopCategory: "Bars"},
		cohort:  []storage.CandidateRow{row("c")},
	}
	customers := fakeCustomers{"C1": {CustomerID: "C1", LoyaltyTier: "Gold", AgeBand: "25-34", CountryCode: "US"}}

	got, err := NewTierChain(gifts, customers, nil).Retrieve(context.Background(), "C1", 5)
	require.NoError(t, err)
	assert.Equal(t, TierCohort, got.Tier)
	assert.Equal(t, storage.CohortFilter{
		ExcludeCustomerID: "C1",
		LoyaltyTier:       "Gold",
		AgeBand:           "25-34",
		CountryCode:       "US",
		Category:          "Bars",
	}, gifts.cohortFilter)
}

func TestTierChain_StoreError(t *testing.T) {
	gifts := &fakeGifts{err: errors.New("disk on fire")}
	_, err := NewTierChain(gifts, fakeCustomers{}, nil).Retrieve(context.Background(), "C1", 5)
	require.Error(t, err)
	assert.ErrorContains(t, err, "personal tier")
	assert.ErrorContains(t, err, "disk on fire")
}

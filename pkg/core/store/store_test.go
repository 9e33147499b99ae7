package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deal_engine/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScenario() Scenario {
	one := 1.42
	return Scenario{
		Name: "Base case",
		Assumptions: models.Assumptions{
			IndustryType:   models.IndustryGeneralBusiness,
			PurchasePrice:  1_200_000,
			PriceSource:    models.PriceEstimated,
			DownPaymentPct: 0.10,
			InterestRate:   0.11,
			LoanTermYears:  10,
			ExitYear:       5,
		},
		Result: models.ProjectionResult{
			Years:   []int{1, 2},
			Revenue: []float64{2_060_000, 2_121_800},
			DSCR:    []*float64{&one, nil},
			IRR:     -1,
		},
	}
}

func TestPrepare(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))

	s, err := prepare(sampleScenario(), now)
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.Equal(t, time.UTC, s.UpdatedAt.Location())

	s.Name = "  "
	s, err = prepare(s, now)
	require.NoError(t, err)
	assert.Equal(t, "general_business scenario", s.Name)

	_, err = prepare(Scenario{ID: "not-a-uuid"}, now)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestRowRoundTrip(t *testing.T) {
	s, err := prepare(sampleScenario(), time.Now())
	require.NoError(t, err)

	row, err := encodeRow(s)
	require.NoError(t, err)
	assert.Contains(t, string(row.result), `"dscr":[1.42,null]`)

	back, err := row.decode()
	require.NoError(t, err)
	assert.Equal(t, s.Assumptions, back.Assumptions)
	require.Len(t, back.Result.DSCR, 2)
	assert.Nil(t, back.Result.DSCR[1])
	assert.Equal(t, 1.42, *back.Result.DSCR[0])
}

func TestRowDecode_BadJSON(t *testing.T) {
	_, err := scenarioRow{id: "x", assumptions: []byte("{"), result: []byte("{}")}.decode()
	assert.Error(t, err)
}

func TestFileVault_SaveLoadList(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileVault(t.TempDir())
	require.NoError(t, err)

	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	first, err := v.Save(ctx, sampleScenario())
	require.NoError(t, err)

	second := sampleScenario()
	second.Name = "Higher leverage"
	second.Assumptions.DownPaymentPct = 0.05
	second, err = v.Save(ctx, second)
	require.NoError(t, err)

	got, err := v.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Base case", got.Name)
	assert.Equal(t, first.Assumptions, got.Assumptions)

	list, err := v.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	list, err = v.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Re-saving under the same ID replaces the file.
	first.Name = "Base case v2"
	_, err = v.Save(ctx, first)
	require.NoError(t, err)
	got, err = v.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Base case v2", got.Name)

	list, err = v.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestFileVault_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	v, err := NewFileVault(dir)
	require.NoError(t, err)

	_, err = v.Load(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = v.Load(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("not json"), 0644))
	list, err := v.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = v.Save(cancelled, sampleScenario())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), "", 1, nil)
	assert.Error(t, err)
}

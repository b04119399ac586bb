package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"shieldscope/internal/model"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }
func int64Ptr(i int64) *int64     { return &i }
func int16Ptr(i int16) *int16     { return &i }

func flowFact(day, network string, tokenID int64, eventType model.EventType, amount float64) model.EventFact {
	return model.EventFact{
		Day:        day,
		Network:    network,
		Type:       eventType,
		TokenID:    int64Ptr(tokenID),
		AmountNorm: floatPtr(amount),
	}
}

func TestDailyFlowsScenario(t *testing.T) {
	facts := []model.EventFact{
		flowFact("2024-05-01", "A", 7, model.EventDeposit, 5.0),
		flowFact("2024-05-01", "A", 7, model.EventWithdrawal, 20.0),
		flowFact("2024-05-01", "A", 7, model.EventWithdrawal, 30.0),
	}

	rows := ComputeDailyFlows(facts)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.TotalDeposits != 5.0 || row.TotalWithdrawals != 50.0 {
		t.Fatalf("sums mismatch: %+v", row)
	}
	if row.NetFlow != -45.0 {
		t.Fatalf("net flow mismatch: %f", row.NetFlow)
	}
	if row.DepositTxCount != 1 || row.WithdrawalTxCount != 2 {
		t.Fatalf("counts mismatch: %+v", row)
	}
}

func TestDailyFlowsCohortSuppression(t *testing.T) {
	facts := []model.EventFact{
		flowFact("2024-05-01", "A", 7, model.EventDeposit, 5.0),
		flowFact("2024-05-01", "A", 7, model.EventWithdrawal, 20.0),
	}

	if rows := ComputeDailyFlows(facts); len(rows) != 0 {
		t.Fatalf("bucket below threshold must be suppressed, got %+v", rows)
	}
}

func TestDailyFlowsSuppressionIsPerBucket(t *testing.T) {
	facts := []model.EventFact{
		// Token 7 clears the threshold, token 8 does not.
		flowFact("2024-05-01", "A", 7, model.EventDeposit, 1.0),
		flowFact("2024-05-01", "A", 7, model.EventDeposit, 2.0),
		flowFact("2024-05-01", "A", 7, model.EventWithdrawal, 1.0),
		flowFact("2024-05-01", "A", 8, model.EventDeposit, 9.0),
	}

	rows := ComputeDailyFlows(facts)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].TokenID != 7 {
		t.Fatalf("wrong bucket survived: %+v", rows[0])
	}
}

func withdrawalFact(day, network, relayer string, amount float64) model.EventFact {
	fact := flowFact(day, network, 7, model.EventWithdrawal, amount)
	fact.Relayer = strPtr(relayer)
	return fact
}

func TestRelayerStatsHHI(t *testing.T) {
	facts := []model.EventFact{
		withdrawalFact("2024-05-01", "A", "0xr1", 70),
		withdrawalFact("2024-05-01", "A", "0xr2", 20),
		withdrawalFact("2024-05-01", "A", "0xr3", 10),
	}

	rows := ComputeRelayerStats(facts)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.ActiveRelayers != 3 || row.TotalTxs != 3 {
		t.Fatalf("counts mismatch: %+v", row)
	}
	if math.Abs(row.HHI-0.54) > 1e-9 {
		t.Fatalf("hhi mismatch: %f", row.HHI)
	}
	if math.Abs(row.Top5Share-1.0) > 1e-9 {
		t.Fatalf("top5 share mismatch: %f", row.Top5Share)
	}
}

func TestRelayerStatsZeroVolume(t *testing.T) {
	fact := withdrawalFact("2024-05-01", "A", "0xr1", 0)
	rows := ComputeRelayerStats([]model.EventFact{fact})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Top5Share != 0 || rows[0].HHI != 0 {
		t.Fatalf("zero volume must yield zero shares: %+v", rows[0])
	}
}

func TestRelayerStatsTop5OfMany(t *testing.T) {
	relayers := []string{"0xa", "0xb", "0xc", "0xd", "0xe", "0xf", "0xg"}
	facts := make([]model.EventFact, 0, len(relayers))
	// Volumes 70, 60, ..., 10: top five sum 250 of 280 total.
	for i, relayer := range relayers {
		facts = append(facts, withdrawalFact("2024-05-01", "A", relayer, float64(70-10*i)))
	}

	rows := ComputeRelayerStats(facts)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if math.Abs(rows[0].Top5Share-250.0/280.0) > 1e-9 {
		t.Fatalf("top5 share mismatch: %f", rows[0].Top5Share)
	}
	if rows[0].ActiveRelayers != 7 {
		t.Fatalf("active relayers mismatch: %d", rows[0].ActiveRelayers)
	}
}

func feeFact(day, network, relayer, fee string, decimals *int16) model.EventFact {
	fact := withdrawalFact(day, network, relayer, 1.0)
	fact.TokenDecimals = decimals
	if fee != "" {
		blob, _ := json.Marshal(model.EventMetadata{Fee: fee})
		fact.Metadata = blob
	}
	return fact
}

func TestFeeRevenue(t *testing.T) {
	facts := []model.EventFact{
		feeFact("2024-05-01", "A", "0xr1", "1000000000000000000", int16Ptr(18)),
		feeFact("2024-05-01", "A", "0xr1", "3000000000000000000", int16Ptr(18)),
		feeFact("2024-05-01", "A", "0xr1", "", int16Ptr(18)),        // absent metadata skipped
		feeFact("2024-05-01", "A", "0xr1", "not-a-number", int16Ptr(18)), // unparseable skipped
	}

	rows := ComputeFeeRevenue(facts)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if row.TxCount != 2 {
		t.Fatalf("tx count mismatch: %d", row.TxCount)
	}
	if math.Abs(row.TotalFees-4.0) > 1e-9 {
		t.Fatalf("total fees mismatch: %f", row.TotalFees)
	}
	if math.Abs(row.AvgFee-2.0) > 1e-9 {
		t.Fatalf("avg fee mismatch: %f", row.AvgFee)
	}
}

func TestFeeRevenueDefaultsToEighteenDecimals(t *testing.T) {
	facts := []model.EventFact{
		feeFact("2024-05-01", "A", "0xr1", "2000000000000000000", nil),
	}

	rows := ComputeFeeRevenue(facts)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if math.Abs(rows[0].TotalFees-2.0) > 1e-9 {
		t.Fatalf("unknown decimals should default to 18: %f", rows[0].TotalFees)
	}
}

func TestTokenDiversity(t *testing.T) {
	facts := []model.EventFact{
		flowFact("2024-05-01", "A", 1, model.EventDeposit, 1),
		flowFact("2024-05-01", "A", 1, model.EventWithdrawal, 1),
		flowFact("2024-05-01", "A", 2, model.EventDeposit, 1),
		flowFact("2024-05-02", "A", 3, model.EventDeposit, 1),
		{Day: "2024-05-01", Network: "A", Type: model.EventOther}, // nil token ignored
	}

	rows := ComputeTokenDiversity(facts)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Day != "2024-05-01" || rows[0].TokenCount != 2 {
		t.Fatalf("first day mismatch: %+v", rows[0])
	}
	if rows[1].Day != "2024-05-02" || rows[1].TokenCount != 1 {
		t.Fatalf("second day mismatch: %+v", rows[1])
	}
}

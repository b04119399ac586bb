package aggregate

import (
	"encoding/json"
	"math/big"
	"sort"

	"shieldscope/internal/metrics"
	"shieldscope/internal/model"
)

// CohortThreshold is the minimum combined transaction count a daily flow
// bucket needs before it is disclosed at all.
const CohortThreshold = 3

// defaultFeeDecimals is assumed when the fee token's precision is unknown.
const defaultFeeDecimals = int16(18)

// ComputeDailyFlows derives per-token daily flow rows from event facts.
// Buckets under the cohort threshold are never emitted.
func ComputeDailyFlows(facts []model.EventFact) []model.DailyFlow {
	type flowAcc struct {
		deposits   float64
		withdrawal float64
		depCount   int64
		wdrCount   int64
	}
	type flowKey struct {
		day     string
		network string
		tokenID int64
	}

	acc := make(map[flowKey]*flowAcc)
	for _, fact := range facts {
		if fact.TokenID == nil {
			continue
		}
		if fact.Type != model.EventDeposit && fact.Type != model.EventWithdrawal {
			continue
		}
		key := flowKey{day: fact.Day, network: fact.Network, tokenID: *fact.TokenID}
		bucket := acc[key]
		if bucket == nil {
			bucket = &flowAcc{}
			acc[key] = bucket
		}
		amount := 0.0
		if fact.AmountNorm != nil {
			amount = *fact.AmountNorm
		}
		if fact.Type == model.EventDeposit {
			bucket.deposits += amount
			bucket.depCount++
		} else {
			bucket.withdrawal += amount
			bucket.wdrCount++
		}
	}

	rows := make([]model.DailyFlow, 0, len(acc))
	for key, bucket := range acc {
		if bucket.depCount+bucket.wdrCount < CohortThreshold {
			continue
		}
		rows = append(rows, model.DailyFlow{
			Day:               key.day,
			Network:           key.network,
			TokenID:           key.tokenID,
			TotalDeposits:     bucket.deposits,
			TotalWithdrawals:  bucket.withdrawal,
			NetFlow:           bucket.deposits - bucket.withdrawal,
			DepositTxCount:    bucket.depCount,
			WithdrawalTxCount: bucket.wdrCount,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		if rows[i].Network != rows[j].Network {
			return rows[i].Network < rows[j].Network
		}
		return rows[i].TokenID < rows[j].TokenID
	})
	return rows
}

// ComputeRelayerStats derives per-day relayer concentration metrics from
// withdrawal facts carrying a relayer address.
func ComputeRelayerStats(facts []model.EventFact) []model.RelayerStatsDaily {
	type dayKey struct {
		day     string
		network string
	}
	type relayerAcc struct {
		volumes map[string]float64
		txs     map[string]int64
	}

	acc := make(map[dayKey]*relayerAcc)
	for _, fact := range facts {
		if fact.Type != model.EventWithdrawal || fact.Relayer == nil {
			continue
		}
		key := dayKey{day: fact.Day, network: fact.Network}
		bucket := acc[key]
		if bucket == nil {
			bucket = &relayerAcc{volumes: make(map[string]float64), txs: make(map[string]int64)}
			acc[key] = bucket
		}
		amount := 0.0
		if fact.AmountNorm != nil {
			amount = *fact.AmountNorm
		}
		bucket.volumes[*fact.Relayer] += amount
		bucket.txs[*fact.Relayer]++
	}

	rows := make([]model.RelayerStatsDaily, 0, len(acc))
	for key, bucket := range acc {
		volumes := make([]float64, 0, len(bucket.volumes))
		total := 0.0
		var txs int64
		for relayer, volume := range bucket.volumes {
			volumes = append(volumes, volume)
			total += volume
			txs += bucket.txs[relayer]
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(volumes)))

		top5 := 0.0
		hhi := 0.0
		if total > 0 {
			for i, volume := range volumes {
				share := volume / total
				hhi += share * share
				if i < 5 {
					top5 += share
				}
			}
		}

		rows = append(rows, model.RelayerStatsDaily{
			Day:            key.day,
			Network:        key.network,
			ActiveRelayers: int64(len(bucket.volumes)),
			Top5Share:      top5,
			HHI:            hhi,
			TotalTxs:       txs,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Network < rows[j].Network
	})
	return rows
}

// ComputeFeeRevenue derives per-relayer fee revenue from withdrawal facts
// whose metadata carries a parseable fee. Unreadable metadata is skipped and
// counted, never guessed at.
func ComputeFeeRevenue(facts []model.EventFact) []model.RelayerFeeRevenueDaily {
	type feeKey struct {
		day     string
		network string
		relayer string
		tokenID int64
	}
	type feeAcc struct {
		total float64
		count int64
	}

	acc := make(map[feeKey]*feeAcc)
	for _, fact := range facts {
		if fact.Type != model.EventWithdrawal || fact.Relayer == nil || fact.TokenID == nil {
			continue
		}
		fee, ok := parseFee(fact.Metadata)
		if !ok {
			continue
		}

		decimals := defaultFeeDecimals
		if fact.TokenDecimals != nil {
			decimals = *fact.TokenDecimals
		}

		key := feeKey{day: fact.Day, network: fact.Network, relayer: *fact.Relayer, tokenID: *fact.TokenID}
		bucket := acc[key]
		if bucket == nil {
			bucket = &feeAcc{}
			acc[key] = bucket
		}
		bucket.total += model.NormalizeAmount(fee, decimals)
		bucket.count++
	}

	rows := make([]model.RelayerFeeRevenueDaily, 0, len(acc))
	for key, bucket := range acc {
		rows = append(rows, model.RelayerFeeRevenueDaily{
			Day:       key.day,
			Network:   key.network,
			Relayer:   key.relayer,
			TokenID:   key.tokenID,
			TotalFees: bucket.total,
			AvgFee:    bucket.total / float64(bucket.count),
			TxCount:   bucket.count,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		if rows[i].Network != rows[j].Network {
			return rows[i].Network < rows[j].Network
		}
		if rows[i].Relayer != rows[j].Relayer {
			return rows[i].Relayer < rows[j].Relayer
		}
		return rows[i].TokenID < rows[j].TokenID
	})
	return rows
}

// ComputeTokenDiversity counts distinct tokens with activity per day.
func ComputeTokenDiversity(facts []model.EventFact) []model.DailyTokenDiversity {
	type dayKey struct {
		day     string
		network string
	}

	seen := make(map[dayKey]map[int64]struct{})
	for _, fact := range facts {
		if fact.TokenID == nil {
			continue
		}
		key := dayKey{day: fact.Day, network: fact.Network}
		tokens := seen[key]
		if tokens == nil {
			tokens = make(map[int64]struct{})
			seen[key] = tokens
		}
		tokens[*fact.TokenID] = struct{}{}
	}

	rows := make([]model.DailyTokenDiversity, 0, len(seen))
	for key, tokens := range seen {
		rows = append(rows, model.DailyTokenDiversity{
			Day:        key.day,
			Network:    key.network,
			TokenCount: int64(len(tokens)),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Day != rows[j].Day {
			return rows[i].Day < rows[j].Day
		}
		return rows[i].Network < rows[j].Network
	})
	return rows
}

func parseFee(blob json.RawMessage) (*big.Int, bool) {
	if len(blob) == 0 {
		metrics.FeeParseSkips.Inc()
		return nil, false
	}
	var meta model.EventMetadata
	if err := json.Unmarshal(blob, &meta); err != nil || meta.Fee == "" {
		metrics.FeeParseSkips.Inc()
		return nil, false
	}
	fee, parsed := model.ParseAmount(meta.Fee)
	if !parsed || fee.Sign() < 0 {
		metrics.FeeParseSkips.Inc()
		return nil, false
	}
	return fee, true
}

// Package trust computes weighted reputation scores from attestation
// records fetched across the relay set.
package trust

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"dirnet/pkg/record"
	"dirnet/pkg/types"
)

// claimWeights maps claim types to their scoring weight. Unknown claim
// types fall back to the general-trust weight.
var claimWeights = map[string]float64{
	record.ClaimServiceQuality:     1.5,
	record.ClaimWorkCompleted:      1.2,
	record.ClaimIdentityContinuity: 1.0,
	record.ClaimGeneralTrust:       0.8,
}

const defaultWeight = 0.8

// Querier is the read path the aggregator fetches attestations through.
// *fanout.Engine satisfies it.
type Querier interface {
	Query(ctx context.Context, filter types.Filter, relays []string, timeout time.Duration) []types.Record
}

// ScoredRecord pairs a record with its owner's derived trust score.
type ScoredRecord struct {
	types.Record
	Trust types.TrustScore `json:"trust"`
}

// Aggregator fetches and scores attestations.
type Aggregator struct {
	queries Querier
	logger  *zap.Logger
}

// New returns an aggregator reading through q.
func New(q Querier, logger *zap.Logger) *Aggregator {
	return &Aggregator{queries: q, logger: logger}
}

// ScoreAndAttach computes a trust score for every distinct owner across
// targets and attaches it to each target by owner lookup.
//
// Owner lookups run concurrently and independently; an owner whose
// attestation fetch yields nothing gets the zero score rather than
// failing the call. Every target appears in the result exactly once, in
// input order.
func (a *Aggregator) ScoreAndAttach(ctx context.Context, targets []types.Record, relays []string, timeout time.Duration) []ScoredRecord {
	owners := distinctOwners(targets)

	scores := make(map[types.OwnerID]types.TrustScore, len(owners))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, owner := range owners {
		wg.Add(1)
		go func(owner types.OwnerID) {
			defer wg.Done()
			score := a.scoreOwner(ctx, owner, relays, timeout)
			mu.Lock()
			scores[owner] = score
			mu.Unlock()
		}(owner)
	}
	wg.Wait()

	// Explicit default fill: any owner missing from the map gets the
	// zero score, so targets are never dropped.
	out := make([]ScoredRecord, 0, len(targets))
	for _, t := range targets {
		out = append(out, ScoredRecord{Record: t, Trust: scores[t.Owner]})
	}
	return out
}

// scoreOwner fetches the owner's attestations and reduces them to a score.
func (a *Aggregator) scoreOwner(ctx context.Context, owner types.OwnerID, relays []string, timeout time.Duration) types.TrustScore {
	filter := types.Filter{
		Kinds: []int{types.KindAttestation},
		Tags: map[string][]string{
			"p": {string(owner)},
			"L": {record.TrustNamespace},
		},
	}
	attestations := a.queries.Query(ctx, filter, relays, timeout)
	score := Score(owner, attestations)
	a.logger.Debug("scored owner",
		zap.String("owner", string(owner)),
		zap.Int("attestations", len(attestations)),
		zap.Int("score", score.Score))
	return score
}

// Score applies the weighting rule to attestations about owner:
// self-attestations are discarded, each attester contributes only its
// highest-weight claim, and the total is scaled by 10 and rounded.
func Score(owner types.OwnerID, attestations []types.Record) types.TrustScore {
	best := make(map[types.OwnerID]types.AttesterDetail)
	for i := range attestations {
		att := &attestations[i]
		if att.Owner == owner {
			continue // self-attestation
		}
		claim := record.ClaimType(att)
		weight, ok := claimWeights[claim]
		if !ok {
			weight = defaultWeight
		}
		prev, seen := best[att.Owner]
		if !seen || weight > prev.Weight {
			best[att.Owner] = types.AttesterDetail{
				Attester:  att.Owner,
				ClaimType: claim,
				Weight:    weight,
			}
		}
	}

	details := make([]types.AttesterDetail, 0, len(best))
	var sum float64
	for _, d := range best {
		details = append(details, d)
		sum += d.Weight
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Attester < details[j].Attester })

	return types.TrustScore{
		Score:         int(math.Round(sum * 10)),
		AttesterCount: len(details),
		Attesters:     details,
	}
}

func distinctOwners(targets []types.Record) []types.OwnerID {
	seen := make(map[types.OwnerID]struct{}, len(targets))
	var owners []types.OwnerID
	for i := range targets {
		if _, ok := seen[targets[i].Owner]; ok {
			continue
		}
		seen[targets[i].Owner] = struct{}{}
		owners = append(owners, targets[i].Owner)
	}
	return owners
}

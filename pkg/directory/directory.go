// Package directory composes the fan-out engines, the replaceable-record
// resolver and the trust aggregator into the service discovery API the
// CLI and gateway consume.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"
	"go.uber.org/zap"

	"dirnet/pkg/fanout"
	"dirnet/pkg/record"
	"dirnet/pkg/trust"
	"dirnet/pkg/types"
)

// Directory is a best-effort, eventually-consistent view over a fixed
// relay set. It holds no state between calls.
type Directory struct {
	relays  []string
	timeout time.Duration
	engine  *fanout.Engine
	trust   *trust.Aggregator
	logger  *zap.Logger
}

// New builds a directory over the given relays. timeout bounds every
// individual fan-out call.
func New(relays []string, timeout time.Duration, logger *zap.Logger) *Directory {
	engine := fanout.New(logger)
	return &Directory{
		relays:  relays,
		timeout: timeout,
		engine:  engine,
		trust:   trust.New(engine, logger),
		logger:  logger,
	}
}

// FindQuery selects service listings. Kind, capability, hashtag and
// request-kind constraints go to the relays; MaxPrice and MinTrust are
// applied locally because relays cannot filter on them.
type FindQuery struct {
	Owners       []types.OwnerID
	Capabilities []string
	Hashtags     []string
	RequestKinds []string
	Limit        int

	MaxPrice int64 // 0 = no ceiling
	MinTrust int   // 0 = no floor
	Scored   bool  // attach trust scores even without a floor
}

func (q FindQuery) filter() types.Filter {
	f := types.Filter{
		Kinds:   []int{types.KindServiceListing},
		Authors: q.Owners,
		Limit:   q.Limit,
	}
	tags := make(map[string][]string)
	if len(q.Capabilities) > 0 {
		tags["cap"] = q.Capabilities
	}
	if len(q.Hashtags) > 0 {
		tags["t"] = q.Hashtags
	}
	if len(q.RequestKinds) > 0 {
		tags["k"] = q.RequestKinds
	}
	if len(tags) > 0 {
		f.Tags = tags
	}
	return f
}

// FindServices queries the relay set, resolves latest-per-identity and
// optionally attaches trust scores. Relays that fail contribute nothing;
// an empty result is not an error.
func (d *Directory) FindServices(ctx context.Context, q FindQuery) []trust.ScoredRecord {
	records := d.engine.Query(ctx, q.filter(), d.relays, d.timeout)
	d.logger.Debug("fan-out query returned", zap.Int("records", len(records)))
	records = record.ResolveLatest(records)

	if q.MaxPrice > 0 {
		records = filterByPrice(records, q.MaxPrice)
	}

	if !q.Scored && q.MinTrust <= 0 {
		out := make([]trust.ScoredRecord, 0, len(records))
		for _, r := range records {
			out = append(out, trust.ScoredRecord{Record: r})
		}
		return out
	}

	scored := d.trust.ScoreAndAttach(ctx, records, d.relays, d.timeout)
	if q.MinTrust > 0 {
		kept := scored[:0]
		for _, s := range scored {
			if s.Trust.Score >= q.MinTrust {
				kept = append(kept, s)
			}
		}
		scored = kept
	}
	return scored
}

// GetService returns the current listing for (owner, name), or nil if no
// relay holds one.
func (d *Directory) GetService(ctx context.Context, owner types.OwnerID, name string) *trust.ScoredRecord {
	filter := types.Filter{
		Kinds:   []int{types.KindServiceListing},
		Authors: []types.OwnerID{owner},
		Tags:    map[string][]string{"d": {name}},
	}
	records := record.ResolveLatest(d.engine.Query(ctx, filter, d.relays, d.timeout))
	if len(records) == 0 {
		return nil
	}
	scored := d.trust.ScoreAndAttach(ctx, records[:1], d.relays, d.timeout)
	return &scored[0]
}

// PublishService signs the service's listing record and fans it out.
func (d *Directory) PublishService(ctx context.Context, svc *record.Service, key ed25519.PrivateKey) (types.PublishOutcome, error) {
	rec := svc.ToRecord()
	if err := record.Sign(rec, key); err != nil {
		return types.PublishOutcome{}, fmt.Errorf("failed to sign listing: %w", err)
	}
	return d.engine.Publish(ctx, rec, d.relays, d.timeout), nil
}

// RemoveService publishes a signed deletion record for the listing id.
// Relays that honor deletions stop serving the listing; there is no
// local tombstone.
func (d *Directory) RemoveService(ctx context.Context, id types.RecordID, key ed25519.PrivateKey) (types.PublishOutcome, error) {
	del := record.NewDeletion(id)
	if err := record.Sign(del, key); err != nil {
		return types.PublishOutcome{}, fmt.Errorf("failed to sign deletion: %w", err)
	}
	return d.engine.Publish(ctx, del, d.relays, d.timeout), nil
}

// PublishAttestation signs and fans out an attestation about target.
func (d *Directory) PublishAttestation(ctx context.Context, target types.OwnerID, claimType, comment string, key ed25519.PrivateKey) (types.PublishOutcome, error) {
	att := record.NewAttestation(target, claimType, comment)
	if err := record.Sign(att, key); err != nil {
		return types.PublishOutcome{}, fmt.Errorf("failed to sign attestation: %w", err)
	}
	return d.engine.Publish(ctx, att, d.relays, d.timeout), nil
}

// PublishRecord fans out an already-signed record, verifying it first.
func (d *Directory) PublishRecord(ctx context.Context, rec *types.Record) (types.PublishOutcome, error) {
	if !record.Verify(rec) {
		return types.PublishOutcome{}, fmt.Errorf("record %s does not verify", rec.ID)
	}
	return d.engine.Publish(ctx, rec, d.relays, d.timeout), nil
}

func filterByPrice(records []types.Record, maxPrice int64) []types.Record {
	kept := records[:0]
	for _, r := range records {
		svc, err := record.ServiceFromRecord(&r)
		if err != nil {
			continue
		}
		if svc.PriceAmount <= maxPrice {
			kept = append(kept, r)
		}
	}
	return kept
}

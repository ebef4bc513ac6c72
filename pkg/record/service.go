package record

import (
	"fmt"
	"strconv"
	"time"

	"dirnet/pkg/types"
)

// TrustNamespace labels attestation records scored by the trust
// aggregator. Attestations in other namespaces are ignored.
const TrustNamespace = "svc.trust"

// Claim types recognized inside TrustNamespace. Unknown types score at
// the general-trust weight.
const (
	ClaimServiceQuality     = "service-quality"
	ClaimWorkCompleted      = "work-completed"
	ClaimIdentityContinuity = "identity-continuity"
	ClaimGeneralTrust       = "general-trust"
)

// Service is the decoded form of a service listing record. The tag
// mapping is pure and stateless; Record remains the source of truth.
type Service struct {
	Owner        types.OwnerID
	Name         string // discriminator ("d" tag)
	About        string // record content
	Capabilities []string
	Hashtags     []string
	RequestKinds []string // DVM request kinds the service accepts
	PriceAmount  int64
	PriceUnit    string
	UpdatedAt    int64
}

// ServiceFromRecord decodes a service listing's tags. It does not verify
// the record; callers get records from the fan-out engine, which already
// dropped anything unverifiable.
func ServiceFromRecord(r *types.Record) (*Service, error) {
	if r.Kind != types.KindServiceListing {
		return nil, fmt.Errorf("record kind %d is not a service listing", r.Kind)
	}
	s := &Service{
		Owner:        r.Owner,
		Name:         r.Discriminator(),
		About:        r.Content,
		Capabilities: r.Tags.All("cap"),
		Hashtags:     r.Tags.All("t"),
		RequestKinds: r.Tags.All("k"),
		UpdatedAt:    r.CreatedAt,
	}
	if t, ok := r.Tags.Find("price", 2); ok {
		amount, err := strconv.ParseInt(t[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price tag %q: %w", t[1], err)
		}
		s.PriceAmount = amount
		if len(t) >= 3 {
			s.PriceUnit = t[2]
		}
	}
	return s, nil
}

// ToRecord builds an unsigned listing record from the service description.
func (s *Service) ToRecord() *types.Record {
	tags := types.Tags{{"d", s.Name}}
	for _, c := range s.Capabilities {
		tags = append(tags, types.Tag{"cap", c})
	}
	for _, t := range s.Hashtags {
		tags = append(tags, types.Tag{"t", t})
	}
	for _, k := range s.RequestKinds {
		tags = append(tags, types.Tag{"k", k})
	}
	if s.PriceAmount > 0 {
		tag := types.Tag{"price", strconv.FormatInt(s.PriceAmount, 10)}
		if s.PriceUnit != "" {
			tag = append(tag, s.PriceUnit)
		}
		tags = append(tags, tag)
	}
	return &types.Record{
		Kind:      types.KindServiceListing,
		CreatedAt: time.Now().Unix(),
		Tags:      tags,
		Content:   s.About,
	}
}

// NewAttestation builds an unsigned attestation about target with the
// given claim type.
func NewAttestation(target types.OwnerID, claimType, comment string) *types.Record {
	return &types.Record{
		Kind:      types.KindAttestation,
		CreatedAt: time.Now().Unix(),
		Tags: types.Tags{
			{"L", TrustNamespace},
			{"l", claimType, TrustNamespace},
			{"p", string(target)},
		},
		Content: comment,
	}
}

// ClaimType extracts the attestation's claim type from its namespace tag.
// Absent or malformed tags default to general-trust.
func ClaimType(r *types.Record) string {
	for _, t := range r.Tags {
		if len(t) >= 3 && t[0] == "l" && t[2] == TrustNamespace && t[1] != "" {
			return t[1]
		}
	}
	return ClaimGeneralTrust
}

// AttestationTarget returns the owner the attestation is about, or ""
// if the record carries no target tag.
func AttestationTarget(r *types.Record) types.OwnerID {
	return types.OwnerID(r.Tags.Get("p"))
}

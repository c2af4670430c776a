package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows future algorithm migration.
const (
	DomainEvent        = "evolution/event/v1"
	DomainContribution = "evolution/contribution/v1"
	DomainGift         = "evolution/gift/v1"
)

// DerivedKeyPrefix marks idempotency keys the engine derived itself.
const DerivedKeyPrefix = "derived:"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// EventHash computes the content hash of an event. The hash covers the
// sequence, type, entity, timestamp, and payload, but not the hash itself.
func EventHash(e Event) (string, error) {
	obj := map[string]any{
		"sequence":  e.Sequence,
		"id":        e.ID,
		"type":      string(e.Type),
		"entity_id": e.EntityID,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		"payload":   e.Payload.Canonical(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventHash: failed to marshal: %w", err)
	}
	return hex.EncodeToString(hashWithDomain(DomainEvent, canonical)), nil
}

// DeriveIdempotencyKey builds a best-effort key for a contribution recorded
// without one. Two calls within the same second with identical inputs collide
// on purpose; callers wanting real idempotency must supply their own key.
func DeriveIdempotencyKey(entityID, source string, amount Cents, now time.Time) (string, error) {
	obj := map[string]any{
		"entity_id":    entityID,
		"source":       source,
		"amount_cents": int64(amount),
		"at":           now.UTC().Truncate(time.Second).Format(time.RFC3339),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DeriveIdempotencyKey: failed to marshal: %w", err)
	}
	return DerivedKeyPrefix + hex.EncodeToString(hashWithDomain(DomainContribution, canonical)), nil
}

// GiftUnits maps (entityID, campaignID) onto [minUnits, maxUnits] with a
// one-way hash. The same pair always yields the same number of units.
func GiftUnits(entityID, campaignID string, minUnits, maxUnits int64) (int64, error) {
	if minUnits < 1 || maxUnits < minUnits {
		return 0, fmt.Errorf("GiftUnits: invalid range [%d, %d]", minUnits, maxUnits)
	}
	obj := map[string]any{
		"entity_id":   entityID,
		"campaign_id": campaignID,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return 0, fmt.Errorf("GiftUnits: failed to marshal: %w", err)
	}
	sum := hashWithDomain(DomainGift, canonical)
	span := uint64(maxUnits - minUnits + 1)
	return minUnits + int64(binary.BigEndian.Uint64(sum[:8])%span), nil
}

// VoidKey is the log key of the tombstone for the contribution at seq.
func VoidKey(seq int64) string {
	return "seq:" + strconv.FormatInt(seq, 10)
}

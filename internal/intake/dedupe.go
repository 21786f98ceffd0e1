package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tax-intake/internal/bridge"
	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
)

const (
	dedupeKeyPrefix = "inquiry:dedupe:"
	claimPending    = "pending"
	claimDone       = "done"
)

// Deduplicating forwards an inquiry at most once per fingerprint within the
// TTL. A failed delivery releases its claim so the customer can retry.
type Deduplicating struct {
	next   bridge.InquiryIntake
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewDeduplicating(next bridge.InquiryIntake, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Deduplicating {
	return &Deduplicating{next: next, redis: rdb, ttl: ttl, logger: log}
}

func (d *Deduplicating) SubmitManualQuoteInquiry(ctx context.Context, inq bridge.Inquiry) error {
	key := dedupeKeyPrefix + Fingerprint(inq)

	claimed, err := d.redis.SetNX(ctx, key, claimPending, d.ttl).Result()
	if err != nil {
		cacheErr := errors.NewCacheUnavailableError(err)
		d.logger.Warn("Inquiry de-duplication unavailable", map[string]interface{}{
			"sessionId": inq.SessionID,
			"errorCode": string(cacheErr.Code),
			"error":     cacheErr.Details,
			"retryable": cacheErr.Retryable,
		})
		return d.next.SubmitManualQuoteInquiry(ctx, inq)
	}

	if !claimed {
		state, err := d.redis.Get(ctx, key).Result()
		switch {
		case err == nil && state == claimDone:
			d.logger.Info("Duplicate inquiry acknowledged", map[string]interface{}{"sessionId": inq.SessionID})
			return nil
		case err == redis.Nil:
			// Claim expired between the two calls.
			return d.SubmitManualQuoteInquiry(ctx, inq)
		default:
			return errors.NewSubmissionInFlightError()
		}
	}

	if err := d.next.SubmitManualQuoteInquiry(ctx, inq); err != nil {
		if delErr := d.redis.Del(ctx, key).Err(); delErr != nil {
			d.logger.Warn("Failed to release inquiry claim", map[string]interface{}{
				"sessionId": inq.SessionID,
				"error":     delErr.Error(),
			})
		}
		return err
	}

	if err := d.redis.Set(ctx, key, claimDone, d.ttl).Err(); err != nil {
		d.logger.Warn("Failed to mark inquiry delivered", map[string]interface{}{
			"sessionId": inq.SessionID,
			"error":     err.Error(),
		})
	}
	return nil
}

// Fingerprint identifies an inquiry by who is asking and for what, ignoring
// case, surrounding whitespace and phone formatting. Only ASCII digits of the
// phone number count.
func Fingerprint(inq bridge.Inquiry) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	var phone strings.Builder
	for _, r := range inq.Phone {
		if r >= '0' && r <= '9' {
			phone.WriteRune(r)
		}
	}

	sum := sha256.Sum256([]byte(strings.Join([]string{
		norm(inq.Email),
		norm(inq.FirstName),
		norm(inq.LastName),
		phone.String(),
		string(inq.Employment),
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// Package orders records accepted results and hands out checkout links.
package orders

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"tax-intake/internal/bridge"
	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
)

const StatusCreated = "created"

// Schema creates the orders table. Price is NULL for manually quoted tiers.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL,
	tier        TEXT NOT NULL,
	tier_code   SMALLINT NOT NULL,
	filing_year INTEGER NOT NULL,
	price       INTEGER,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

// PostgresStarter persists orders and redirects to the checkout.
type PostgresStarter struct {
	db          *sql.DB
	checkoutURL *url.URL
	logger      logger.Logger
	newID       func() string
	now         func() time.Time
}

// NewPostgresStarter fails unless checkoutBaseURL is an absolute URL, so a
// misconfigured checkout never leaves orders behind without a redirect.
func NewPostgresStarter(db *sql.DB, checkoutBaseURL string, log logger.Logger) (*PostgresStarter, error) {
	u, err := ParseCheckoutURL(checkoutBaseURL)
	if err != nil {
		return nil, err
	}
	return &PostgresStarter{
		db:          db,
		checkoutURL: u,
		logger:      log,
		newID:       func() string { return uuid.New().String() },
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// ParseCheckoutURL accepts absolute http(s) URLs only.
func ParseCheckoutURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid checkout url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid checkout url %q: need an absolute http(s) url", raw)
	}
	return u, nil
}

// Migrate creates the schema when it is missing.
func (s *PostgresStarter) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return errors.NewDatabaseConnectionFailedError(fmt.Errorf("create orders table: %w", err))
	}
	return nil
}

func (s *PostgresStarter) StartOrder(ctx context.Context, req bridge.OrderRequest) (string, error) {
	id := s.newID()

	var price sql.NullInt64
	if req.Price != nil {
		price = sql.NullInt64{Int64: int64(*req.Price), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, session_id, tier, tier_code, filing_year, price, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		req.SessionID,
		string(req.Tier),
		req.TierCode,
		req.FilingYear,
		price,
		StatusCreated,
		s.now(),
	)
	if err != nil {
		return "", errors.NewDatabaseInsertFailedError(err).WithMetadata("sessionId", req.SessionID)
	}

	s.logger.Info("Order created", map[string]interface{}{
		"orderId":    id,
		"sessionId":  req.SessionID,
		"tierCode":   req.TierCode,
		"filingYear": req.FilingYear,
	})
	return s.redirect(id), nil
}

func (s *PostgresStarter) redirect(id string) string {
	u := *s.checkoutURL
	q := u.Query()
	q.Set("order", id)
	u.RawQuery = q.Encode()
	return u.String()
}

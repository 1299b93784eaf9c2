package dormancy

import (
	"context"
	"fmt"
	"time"

	"lifecycle-service/internal/model"

	"go.uber.org/zap"
)

// SevereDormancyDays is a fixed presentation threshold: candidates inactive
// longer than this are highlighted regardless of the organization's
// configured dormancy threshold. Independent of the configurable threshold.
const SevereDormancyDays = 90

// Candidate is a recommendation, not mutated state. The transition to
// DORMANT is never automatic; an operator confirms it through the lifecycle
// orchestrator.
type Candidate struct {
	CustomerID        uint       `json:"customer_id"`
	Name              string     `json:"name"`
	LastActivityAt    *time.Time `json:"last_activity_at"`
	DaysSinceActivity int        `json:"days_since_activity"`
	Severe            bool       `json:"severe"`
}

// CustomerSource supplies the ACTIVE customers of a tenant and lets the
// detector persist refreshed activity stamps.
type CustomerSource interface {
	ActiveCustomers(ctx context.Context, tenantID uint) ([]model.Customer, error)
	UpdateLastActivity(ctx context.Context, tenantID, customerID uint, lastActivityAt time.Time) error
}

// ActivitySource is the external activity aggregation collaborator.
type ActivitySource interface {
	LastActivity(ctx context.Context, tenantID uint, customerIDs []uint) (map[uint]time.Time, error)
}

// Detector scans for customers whose inactivity exceeds a threshold.
type Detector struct {
	customers CustomerSource
	activity  ActivitySource
	logger    *zap.Logger
	now       func() time.Time
}

// NewDetector creates a dormancy detector. The activity source is optional;
// without it the scan uses the stored last-activity stamps only.
func NewDetector(customers CustomerSource, activity ActivitySource, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		customers: customers,
		activity:  activity,
		logger:    logger,
		now:       time.Now,
	}
}

// FindCandidates returns the ACTIVE customers whose days since last activity
// meet or exceed thresholdDays. A customer with no recorded activity is
// measured from its creation date. When an activity source is configured the
// stored stamps are refreshed from it first; a refresh failure degrades to
// the stored stamps rather than failing the scan.
func (d *Detector) FindCandidates(ctx context.Context, tenantID uint, thresholdDays int) ([]Candidate, error) {
	if thresholdDays < 1 {
		return nil, fmt.Errorf("threshold days must be positive, got %d", thresholdDays)
	}

	customers, err := d.customers.ActiveCustomers(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing active customers: %w", err)
	}

	if d.activity != nil && len(customers) > 0 {
		d.refresh(ctx, tenantID, customers)
	}

	now := d.now()
	candidates := make([]Candidate, 0)
	for _, c := range customers {
		reference := c.CreatedAt
		if c.LastActivityAt != nil {
			reference = *c.LastActivityAt
		}
		days := int(now.Sub(reference).Hours() / 24)
		if days < thresholdDays {
			continue
		}
		candidates = append(candidates, Candidate{
			CustomerID:        c.ID,
			Name:              c.Name,
			LastActivityAt:    c.LastActivityAt,
			DaysSinceActivity: days,
			Severe:            days > SevereDormancyDays,
		})
	}

	d.logger.Info("dormancy scan finished",
		zap.Uint("tenant_id", tenantID),
		zap.Int("threshold_days", thresholdDays),
		zap.Int("scanned", len(customers)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

// refresh pulls current activity stamps from the aggregation source and
// persists the ones that moved forward, updating the in-memory copies so the
// scan below sees them.
func (d *Detector) refresh(ctx context.Context, tenantID uint, customers []model.Customer) {
	ids := make([]uint, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}

	latest, err := d.activity.LastActivity(ctx, tenantID, ids)
	if err != nil {
		d.logger.Warn("activity refresh failed, using stored stamps",
			zap.Uint("tenant_id", tenantID), zap.Error(err))
		return
	}

	for i := range customers {
		t, ok := latest[customers[i].ID]
		if !ok {
			continue
		}
		if customers[i].LastActivityAt != nil && !t.After(*customers[i].LastActivityAt) {
			continue
		}
		stamp := t
		if err := d.customers.UpdateLastActivity(ctx, tenantID, customers[i].ID, stamp); err != nil {
			d.logger.Warn("failed to persist refreshed activity stamp",
				zap.Uint("customer_id", customers[i].ID), zap.Error(err))
			continue
		}
		customers[i].LastActivityAt = &stamp
	}
}

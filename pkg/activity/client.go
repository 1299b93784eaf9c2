package activity

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client talks to the activity aggregation service, which derives a
// last-activity timestamp per customer from project, task, time-entry and
// document events. This engine treats it as an external collaborator.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates an activity client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		logger:     logger,
	}
}

type lastActivityEntry struct {
	CustomerID     uint       `json:"customer_id"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

type lastActivityResponse struct {
	Entries []lastActivityEntry `json:"entries"`
}

// LastActivity fetches the latest activity timestamp for the given customers.
// Customers the aggregation source has never seen are absent from the result.
func (c *Client) LastActivity(ctx context.Context, tenantID uint, customerIDs []uint) (map[uint]time.Time, error) {
	if len(customerIDs) == 0 {
		return map[uint]time.Time{}, nil
	}

	ids := make([]string, 0, len(customerIDs))
	for _, id := range customerIDs {
		ids = append(ids, strconv.FormatUint(uint64(id), 10))
	}

	var body lastActivityResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("tenant_id", strconv.FormatUint(uint64(tenantID), 10)).
		SetQueryParam("customer_ids", strings.Join(ids, ",")).
		SetResult(&body).
		Get("/activity/last")
	if err != nil {
		return nil, fmt.Errorf("fetching last activity: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("activity source returned error",
			zap.Int("status", resp.StatusCode()),
			zap.Uint("tenant_id", tenantID))
		return nil, fmt.Errorf("activity source returned status %d", resp.StatusCode())
	}

	result := make(map[uint]time.Time, len(body.Entries))
	for _, e := range body.Entries {
		if e.LastActivityAt != nil {
			result[e.CustomerID] = *e.LastActivityAt
		}
	}
	return result, nil
}

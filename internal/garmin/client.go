// Package garmin is a minimal Garmin Connect API client covering what the
// sync pipeline needs: activity discovery, per-dive lap summaries, raw
// metric streams, and daily health summaries.
package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/freedive-data/apnea.report/internal/monitoring"
)

const defaultBaseURL = "https://connectapi.garmin.com"

// Client talks to the Garmin Connect API. Call Login before any data
// method unless a token was supplied up front.
type Client struct {
	baseURL  string
	httpc    *http.Client
	email    string
	password string
	token    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host. Used by tests and
// by self-hosted API proxies.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithToken supplies an existing access token, skipping Login.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient builds a client for the given Garmin account.
func NewClient(email, password string, opts ...Option) *Client {
	c := &Client{
		baseURL:  defaultBaseURL,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		email:    email,
		password: password,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges the account credentials for an access token.
func (c *Client) Login(ctx context.Context) error {
	if c.token != "" {
		return nil
	}
	if c.email == "" || c.password == "" {
		return fmt.Errorf("garmin credentials not set (GARMIN_EMAIL / GARMIN_PASSWORD)")
	}

	body, err := json.Marshal(map[string]string{
		"username": c.email,
		"password": c.password,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("garmin login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("garmin login: unexpected status %s", resp.Status)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("garmin login: decoding token: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("garmin login: empty access token")
	}
	c.token = tok.AccessToken
	monitoring.Logf("garmin: logged in as %s", c.email)
	return nil
}

// ActivitySummary is one entry of the activity search listing.
type ActivitySummary struct {
	ActivityID   int64  `json:"activityId"`
	ActivityName string `json:"activityName"`
	ActivityType struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	StartTimeGMT string   `json:"startTimeGMT"`
	Duration     float64  `json:"duration"`
	AverageHR    *float64 `json:"averageHR,omitempty"`
	MaxHR        *float64 `json:"maxHR,omitempty"`
}

// IsDiving reports whether the activity is a freediving session.
func (a ActivitySummary) IsDiving() bool {
	switch a.ActivityType.TypeKey {
	case "apnea_diving", "apnea_hunting", "single_gas_diving", "free_diving":
		return true
	}
	return false
}

// ActivitiesByDate lists activities between two YYYY-MM-DD dates inclusive.
func (c *Client) ActivitiesByDate(ctx context.Context, startDate, endDate string) ([]ActivitySummary, error) {
	q := url.Values{}
	q.Set("startDate", startDate)
	q.Set("endDate", endDate)

	var out []ActivitySummary
	err := c.getJSON(ctx, "/activitylist-service/activities/search/activities?"+q.Encode(), &out)
	if err != nil {
		return nil, fmt.Errorf("listing activities %s..%s: %w", startDate, endDate, err)
	}
	return out, nil
}

// Splits is the lap breakdown of an activity. For diving activities each
// lap is one dive.
type Splits struct {
	LapDTOs []LapDTO `json:"lapDTOs"`
}

// LapDTO mirrors the Connect API lap record for diving activities.
type LapDTO struct {
	StartTimeGMT    string   `json:"startTimeGMT"`
	Duration        float64  `json:"duration"`
	MaxDepth        float64  `json:"maxDepth"`
	AverageDepth    float64  `json:"averageDepth"`
	BottomTime      float64  `json:"bottomTime"`
	SurfaceInterval float64  `json:"surfaceInterval"`
	AverageHR       *float64 `json:"averageHR,omitempty"`
	MaxHR           *float64 `json:"maxHR,omitempty"`
}

// ActivitySplits fetches the per-dive lap summaries of an activity.
func (c *Client) ActivitySplits(ctx context.Context, activityID int64) (Splits, error) {
	var out Splits
	err := c.getJSON(ctx, fmt.Sprintf("/activity-service/activity/%d/splits", activityID), &out)
	if err != nil {
		return Splits{}, fmt.Errorf("fetching splits for activity %d: %w", activityID, err)
	}
	return out, nil
}

// MetricDescriptor names one column of the detail metric matrix.
type MetricDescriptor struct {
	MetricsIndex int    `json:"metricsIndex"`
	Key          string `json:"key"`
}

// DetailMetric is one row of the metric matrix. Entries are nil where the
// watch recorded nothing for that channel.
type DetailMetric struct {
	Metrics []*float64 `json:"metrics"`
}

// Details is the raw time-series payload of an activity.
type Details struct {
	MetricDescriptors     []MetricDescriptor `json:"metricDescriptors"`
	ActivityDetailMetrics []DetailMetric     `json:"activityDetailMetrics"`
}

// ActivityDetails fetches the raw metric stream of an activity.
func (c *Client) ActivityDetails(ctx context.Context, activityID int64) (Details, error) {
	var out Details
	err := c.getJSON(ctx, fmt.Sprintf("/activity-service/activity/%d/details", activityID), &out)
	if err != nil {
		return Details{}, fmt.Errorf("fetching details for activity %d: %w", activityID, err)
	}
	return out, nil
}

// DailyStats is the daily health summary slice the calibrator consumes.
type DailyStats struct {
	CalendarDate     string   `json:"calendarDate"`
	RestingHeartRate *float64 `json:"restingHeartRate,omitempty"`
	MinAvgHeartRate  *float64 `json:"minAvgHeartRate,omitempty"`
}

// DailyStatsFor fetches the health summary for one YYYY-MM-DD date.
func (c *Client) DailyStatsFor(ctx context.Context, date string) (DailyStats, error) {
	var out DailyStats
	err := c.getJSON(ctx, "/usersummary-service/usersummary/daily?calendarDate="+url.QueryEscape(date), &out)
	if err != nil {
		return DailyStats{}, fmt.Errorf("fetching daily stats for %s: %w", date, err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, snippet)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

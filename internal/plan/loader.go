package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
)

// SamplePlan is the built-in fallback used when the real plan document cannot
// be loaded. Both sources are treated identically once loaded.
var SamplePlan = []PlanDay{
	{Week: 1, Phase: "Recovery & Base", Date: "2025-08-12", Day: "Tue", Workout: "Run/Walk: 1:2 min x 6–8 rounds (3 mi max)", Warmup: "Dynamic warmup", Cooldown: "Light stretch", WeeklyMileage: 5},
	{Week: 1, Phase: "Recovery & Base", Date: "2025-08-13", Day: "Wed", Workout: "Strength & Mobility (30–40 min)", Warmup: "Dynamic warmup", Cooldown: "Stretch", WeeklyMileage: 5},
	{Week: 1, Phase: "Recovery & Base", Date: "2025-08-14", Day: "Thu", Workout: "Easy Run: 2 mi", Warmup: "Dynamic warmup", Cooldown: "Stretch", WeeklyMileage: 5},
}

// Loader fetches and parses the plan document. A load failure is never fatal:
// the built-in sample plan is substituted and an advisory message is kept for
// the clients to show.
type Loader struct {
	planPath   string
	planURL    string
	httpClient *http.Client
}

func NewLoader(planPath, planURL string, httpClient *http.Client) *Loader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Loader{
		planPath:   planPath,
		planURL:    planURL,
		httpClient: httpClient,
	}
}

// Load returns the plan days and a non-empty advisory when the sample plan
// had to be substituted for the real document.
func (l *Loader) Load(ctx context.Context) (days []PlanDay, advisory string) {
	raw, err := l.fetch(ctx)
	if err == nil {
		days, err = Parse(raw)
	}
	if err != nil {
		log.Warnf("failed to load plan document, using built-in sample: %s", err)
		return SortByDate(SamplePlan), fmt.Sprintf("could not load plan document (%s) - using built-in sample plan", err)
	}
	return days, ""
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	if l.planURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.planURL, nil)
		if err != nil {
			return nil, fmt.Errorf("new plan request: %w", err)
		}
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch plan: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				log.Warnf("close plan response body: %s", err)
			}
		}()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch plan: HTTP %d", resp.StatusCode)
		}
		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read plan response: %w", err)
		}
		return buf, nil
	}

	raw, err := os.ReadFile(l.planPath)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return raw, nil
}

// Parse decodes and validates a plan document: required fields present,
// dates unique. Days are defensively sorted by date.
func Parse(raw []byte) ([]PlanDay, error) {
	var days []PlanDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("parse plan json: %w", err)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("plan document contains no days")
	}

	seen := make(map[string]bool, len(days))
	for _, d := range days {
		if d.Date == "" {
			return nil, fmt.Errorf("plan day without a date")
		}
		if _, err := d.Time(); err != nil {
			return nil, fmt.Errorf("plan day %s: invalid date: %w", d.Date, err)
		}
		if seen[d.Date] {
			return nil, fmt.Errorf("duplicate plan date: %s", d.Date)
		}
		seen[d.Date] = true
	}

	return SortByDate(days), nil
}

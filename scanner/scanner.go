// Package scanner orchestrates availability probes against the portal's
// search endpoint: batched concurrent day scans, suggested-time
// follow-ups, cross-duration lookups and the weekday hour cache.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"itec-bot/parser"
	"itec-bot/session"
	"itec-bot/storage"
	"itec-bot/types"
)

const (
	searchPath = "/court_searches"
	hoursPath  = "/court_searches/valid_hours"

	scanBatchSize = 5
	// Pacing between batches and between suggested-time follow-ups.
	// Pure politeness toward the portal, not a correctness requirement.
	batchDelay     = 200 * time.Millisecond
	followUpDelay  = 100 * time.Millisecond
	requestTimeout = 15 * time.Second
)

// errSessionExpired marks a search call that bounced with a redirect:
// the stored session is no longer accepted.
var errSessionExpired = errors.New("session expired")

type Scanner struct {
	session *session.Manager
	store   storage.Store
	client  *http.Client
	baseURL string
	log     *zap.SugaredLogger
}

func New(sm *session.Manager, store storage.Store, baseURL string, log *zap.SugaredLogger) *Scanner {
	return &Scanner{
		session: sm,
		store:   store,
		client: &http.Client{
			Timeout: requestTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// ScanDay probes every candidate start time of the given date and
// returns one row per time, ordered by time-of-day, with consecutive
// no-courts runs consolidated for display.
func (s *Scanner) ScanDay(ctx context.Context, unitID, date string, creds types.Credentials) ([]types.TimeStatus, error) {
	times, err := s.ValidTimes(ctx, unitID, date, creds)
	if err != nil {
		return nil, err
	}
	times = filterPast(times, date, time.Now())
	if len(times) == 0 {
		return nil, nil
	}

	rows := make([]types.TimeStatus, len(times))
	for batchStart := 0; batchStart < len(times); batchStart += scanBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batchEnd := min(batchStart+scanBatchSize, len(times))

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := s.Search(ctx, types.TimeSlotQuery{
					UnitID: unitID, Date: date, StartHour: times[i], Duration: 1,
				}, creds)
				rows[i] = types.TimeStatus{Time: times[i], Result: res, Err: err}
			}(i)
		}
		wg.Wait()

		// One failed login fails them all; scanning on would just repeat
		// the same doomed login per remaining slot.
		for i := batchStart; i < batchEnd; i++ {
			var authErr *session.AuthError
			if errors.As(rows[i].Err, &authErr) {
				return nil, rows[i].Err
			}
		}

		if batchEnd < len(times) {
			sleep(ctx, batchDelay)
		}
	}

	rows = s.probeSuggested(ctx, unitID, date, creds, rows)
	return consolidate(rows), nil
}

// probeSuggested collects the alternate start times the portal proposed
// across no-courts rows, probes the ones not already scanned, and
// splices them in sorted by time-of-day.
func (s *Scanner) probeSuggested(ctx context.Context, unitID, date string, creds types.Credentials, rows []types.TimeStatus) []types.TimeStatus {
	scanned := make(map[string]bool, len(rows))
	for _, r := range rows {
		scanned[r.Time] = true
	}

	var pending []string
	for _, r := range rows {
		if r.Result == nil || r.Result.Status != types.StatusNoCourts {
			continue
		}
		for _, t := range r.Result.SuggestedTimes {
			if !scanned[t] {
				pending = append(pending, t)
				scanned[t] = true
			}
		}
	}

	for _, t := range pending {
		if ctx.Err() != nil {
			break
		}
		res, err := s.Search(ctx, types.TimeSlotQuery{
			UnitID: unitID, Date: date, StartHour: t, Duration: 1,
		}, creds)
		rows = append(rows, types.TimeStatus{Time: t, Result: res, Err: err})
		sleep(ctx, followUpDelay)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time < rows[j].Time })
	return rows
}

// consolidate folds every run of two or more consecutive no-courts rows
// into its first row, carrying the run's end time. A lone no-courts row
// is left untouched.
func consolidate(rows []types.TimeStatus) []types.TimeStatus {
	out := make([]types.TimeStatus, 0, len(rows))
	for i := 0; i < len(rows); {
		if !isNoCourts(rows[i]) {
			out = append(out, rows[i])
			i++
			continue
		}
		j := i
		for j < len(rows) && isNoCourts(rows[j]) {
			j++
		}
		if j-i >= 2 {
			head := rows[i]
			head.IsRangeStart = true
			head.RangeEnd = rows[j-1].Time
			out = append(out, head)
		} else {
			out = append(out, rows[i])
		}
		i = j
	}
	return out
}

func isNoCourts(r types.TimeStatus) bool {
	return r.Err == nil && r.Result != nil && r.Result.Status == types.StatusNoCourts
}

// ScanDurations probes durations 1, 2 and 3 hours for one chosen start
// time and reports, per court number, the maximum contiguous duration
// confirmed available. Used before committing to a booking.
func (s *Scanner) ScanDurations(ctx context.Context, unitID, date, startHour string, creds types.Credentials) (map[int]float64, error) {
	durations := []float64{1, 2, 3}
	confirmed := make(map[int]float64)
	for i, d := range durations {
		res, err := s.Search(ctx, types.TimeSlotQuery{
			UnitID: unitID, Date: date, StartHour: startHour, Duration: d,
		}, creds)
		if err != nil {
			return confirmed, err
		}
		available := make(map[int]bool, len(res.Courts))
		for _, c := range res.Courts {
			available[c] = true
		}
		extended := false
		for _, c := range res.Courts {
			if i == 0 {
				confirmed[c] = d
				extended = true
			} else if confirmed[c] == durations[i-1] && available[c] {
				confirmed[c] = d
				extended = true
			}
		}
		if !extended {
			break
		}
		if i < len(durations)-1 {
			sleep(ctx, followUpDelay)
		}
	}
	return confirmed, nil
}

// Search issues one availability probe. A redirect response means the
// stored session died mid-scan; the token is force-refreshed once and
// the probe retried.
func (s *Scanner) Search(ctx context.Context, q types.TimeSlotQuery, creds types.Credentials) (*types.AvailabilityResult, error) {
	tok, err := s.session.Acquire(ctx, creds)
	if err != nil {
		return nil, err
	}
	raw, err := s.searchCourts(ctx, tok, q)
	if errors.Is(err, errSessionExpired) {
		s.log.Infow("session bounced mid-scan, refreshing", "time", q.StartHour)
		tok, err = s.session.ForceRefresh(ctx, creds)
		if err != nil {
			return nil, err
		}
		raw, err = s.searchCourts(ctx, tok, q)
	}
	if err != nil {
		return nil, err
	}
	res := parser.ParseAvailability(raw)
	return &res, nil
}

func (s *Scanner) searchCourts(ctx context.Context, tok types.SessionToken, q types.TimeSlotQuery) (string, error) {
	form := url.Values{}
	form.Set("authenticity_token", tok.AuthenticityToken)
	form.Set("court_search[unit_id]", q.UnitID)
	form.Set("court_search[date]", q.Date)
	form.Set("court_search[hour]", q.StartHour)
	form.Set("court_search[duration]", strconv.FormatFloat(q.Duration, 'f', 1, 64))
	return s.post(ctx, searchPath, form, tok)
}

// post submits an authenticated AJAX form. In-flight requests are never
// cancelled mid-request; a cancelled scan simply stops scheduling new
// ones, so the request context deliberately outlives the caller's.
func (s *Scanner) post(ctx context.Context, path string, form url.Values, tok types.SessionToken) (string, error) {
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/javascript")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.AddCookie(&http.Cookie{Name: session.SessionCookie, Value: tok.SessionID})

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return "", errSessionExpired
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// filterPast drops start times already behind us when scanning today.
func filterPast(times []string, date string, now time.Time) []string {
	if date != now.Format("2006-01-02") {
		return times
	}
	cutoff := now.Format("15:04")
	out := make([]string, 0, len(times))
	for _, t := range times {
		if t > cutoff {
			out = append(out, t)
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

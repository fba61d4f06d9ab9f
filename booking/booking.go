// Package booking drives the portal's four-step reservation wizard
// (search, select court, confirm, verify) through a headless browser.
// The lightweight HTTP path cannot finish a purchase: the wizard's
// transitions are wired to client-side scripting after AJAX responses,
// so the runner polls the rendered page state rather than the network.
package booking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"itec-bot/session"
	"itec-bot/types"
)

const (
	wizardPath = "/court_searches/new"

	selUnit     = "#court_search_unit_id"
	selType     = "#court_search_court_type"
	selDate     = "#court_search_date"
	selHour     = "#court_search_hour"
	selDuration = "#court_search_duration"
	selSubmit   = "#court_search_submit"
	selResults  = "#court_search_results"
	selOrder    = "#step_3"
	selOrderAlt = ".order-details"
	selConfirm  = "#step_4"

	hourListTimeout = 15 * time.Second
	submitTimeout   = 5 * time.Second
	resultsTimeout  = 10 * time.Second
	orderTimeout    = 10 * time.Second
	confirmTimeout  = 15 * time.Second

	// After a run the browser stays open briefly so a human can see
	// what the wizard looked like, longer when it went wrong.
	successLinger = 3 * time.Second
	failureLinger = 5 * time.Second
)

var (
	// ErrInFlight rejects a booking requested while another one is
	// running. The wizard is single-session; a concurrent attempt
	// would corrupt its state, so there is no queue.
	ErrInFlight = errors.New("a booking is already in flight")
	// ErrInconclusive means the wizard finished with neither a success
	// nor a failure marker on the confirmation step. Reported as a
	// soft failure, never assumed to be success.
	ErrInconclusive = errors.New("booking outcome inconclusive")
	// ErrRejected means the portal explicitly reported a failure.
	ErrRejected = errors.New("portal rejected the reservation")
)

// StepError names the wizard step that could not complete.
type StepError struct {
	Step Phase
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("booking step %s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// Request describes the slot a booking run should purchase.
type Request struct {
	UnitID    string
	CourtType string
	Date      string // "2006-01-02"
	Hour      string // "15:04"
	Duration  float64
	CourtID   int // preferred court; first offered is the fallback
}

// Runner owns one browser context and one portal session per booking
// attempt. Exactly one attempt runs at a time.
type Runner struct {
	session  *session.Manager
	baseURL  string
	headless bool
	log      *zap.SugaredLogger

	mu sync.Mutex
}

func New(sm *session.Manager, baseURL string, headless bool, log *zap.SugaredLogger) *Runner {
	return &Runner{
		session:  sm,
		baseURL:  strings.TrimRight(baseURL, "/"),
		headless: headless,
		log:      log,
	}
}

// Book runs the wizard to completion for one request, emitting a
// ProgressEvent per phase to notify. The browser is always closed in
// the final cleanup, whatever the outcome.
func (r *Runner) Book(ctx context.Context, req Request, creds types.Credentials, notify Observer) error {
	if !r.mu.TryLock() {
		return ErrInFlight
	}
	defer r.mu.Unlock()
	if notify == nil {
		notify = func(ProgressEvent) {}
	}

	tok, err := r.session.Acquire(ctx, creds)
	if err != nil {
		notify(ProgressEvent{Phase: PhaseAborted, Err: err})
		return err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	err = r.drive(bctx, tok, req, notify)
	if err != nil {
		r.log.Errorw("booking failed", "date", req.Date, "hour", req.Hour, "err", err)
		notify(ProgressEvent{Phase: PhaseAborted, Err: err})
		time.Sleep(failureLinger)
		return err
	}
	r.log.Infow("booking confirmed", "date", req.Date, "hour", req.Hour)
	notify(ProgressEvent{Phase: PhaseVerified, Message: "reservation confirmed"})
	time.Sleep(successLinger)
	return nil
}

func (r *Runner) drive(ctx context.Context, tok types.SessionToken, req Request, notify Observer) error {
	if err := r.openWizard(ctx, tok); err != nil {
		return &StepError{Step: PhaseSearchSubmitted, Err: err}
	}

	// Retrying after a partial failure can land on a page already past
	// the search step; when the results container is there, skip ahead.
	resultsUp, _ := r.visible(ctx, selResults)
	if !resultsUp {
		if err := r.submitSearch(ctx, req); err != nil {
			return &StepError{Step: PhaseSearchSubmitted, Err: err}
		}
	}
	notify(ProgressEvent{Phase: PhaseSearchSubmitted})

	if err := r.selectCourt(ctx, req.CourtID); err != nil {
		return &StepError{Step: PhaseCourtSelected, Err: err}
	}
	notify(ProgressEvent{Phase: PhaseCourtSelected})

	if err := r.confirmOrder(ctx); err != nil {
		return &StepError{Step: PhaseOrderConfirmed, Err: err}
	}
	notify(ProgressEvent{Phase: PhaseOrderConfirmed})

	return r.verify(ctx)
}

func (r *Runner) openWizard(ctx context.Context, tok types.SessionToken) error {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return err
	}
	host := u.Hostname()
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetCookie(session.SessionCookie, tok.SessionID).
				WithDomain(host).
				WithPath("/").
				Do(ctx)
		}),
		chromedp.Navigate(r.baseURL+wizardPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// submitSearch fills the search form. The page populates the hour list
// itself in reaction to change events on unit and date, so those are
// dispatched synthetically and the hour selector polled until enabled.
func (r *Runner) submitSearch(ctx context.Context, req Request) error {
	if err := chromedp.Run(ctx,
		chromedp.SetValue(selUnit, req.UnitID, chromedp.ByQuery),
		dispatch(selUnit, "change"),
		chromedp.SetValue(selType, req.CourtType, chromedp.ByQuery),
		dispatch(selType, "change"),
		chromedp.SetValue(selDate, req.Date, chromedp.ByQuery),
		dispatch(selDate, "change"),
		dispatch(selDate, "blur"),
	); err != nil {
		return fmt.Errorf("filling search form: %w", err)
	}

	if err := r.poll(ctx, hourListTimeout, jsHourListReady); err != nil {
		return fmt.Errorf("hour list never populated: %w", err)
	}
	if err := chromedp.Run(ctx,
		chromedp.Evaluate(fmt.Sprintf(jsPickHour, strconv.Quote(req.Hour)), nil),
		chromedp.SetValue(selDuration, formatDuration(req.Duration), chromedp.ByQuery),
		dispatch(selDuration, "change"),
	); err != nil {
		return fmt.Errorf("selecting hour and duration: %w", err)
	}

	if err := r.poll(ctx, submitTimeout, jsSubmitEnabled); err != nil {
		return fmt.Errorf("submit never enabled: %w", err)
	}
	if err := chromedp.Run(ctx, chromedp.Click(selSubmit, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking submit: %w", err)
	}
	if err := r.poll(ctx, resultsTimeout, visibleJS(selResults)); err != nil {
		return fmt.Errorf("results never rendered: %w", err)
	}
	return nil
}

func (r *Runner) selectCourt(ctx context.Context, courtID int) error {
	var clicked bool
	js := fmt.Sprintf(jsClickCourtLink, selResults, courtID, selResults)
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return errors.New("no booking link in results")
	}
	if err := r.poll(ctx, orderTimeout, orVisibleJS(selOrder, selOrderAlt)); err != nil {
		return fmt.Errorf("order step never appeared: %w", err)
	}
	return nil
}

func (r *Runner) confirmOrder(ctx context.Context) error {
	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(jsClickContinue, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return errors.New("no continue control in order step")
	}
	if err := r.poll(ctx, confirmTimeout, visibleJS(selConfirm)); err != nil {
		return fmt.Errorf("confirmation step never appeared: %w", err)
	}
	return nil
}

func (r *Runner) verify(ctx context.Context) error {
	var content string
	js := fmt.Sprintf(`document.querySelector(%q).outerHTML`, selConfirm)
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &content)); err != nil {
		return &StepError{Step: PhaseVerified, Err: err}
	}
	return verifyOutcome(content)
}

// Confirmation markers. A negative marker wins even when a positive
// one is present on the same page; neither present is a soft failure.
const successPhrase = "בוצעה בהצלחה"

var failureMarkers = []string{"alert-danger", "alert-warning", "שגיאה", "לא ניתן להשלים"}
var successMarkers = []string{"alert-success", successPhrase}

func verifyOutcome(content string) error {
	for _, m := range failureMarkers {
		if strings.Contains(content, m) {
			return ErrRejected
		}
	}
	for _, m := range successMarkers {
		if strings.Contains(content, m) {
			return nil
		}
	}
	return ErrInconclusive
}

// --- browser plumbing ---

func (r *Runner) poll(ctx context.Context, timeout time.Duration, js string) error {
	var ok bool
	return chromedp.Run(ctx, chromedp.Poll(js, &ok,
		chromedp.WithPollingTimeout(timeout),
		chromedp.WithPollingInterval(200*time.Millisecond),
	))
}

func (r *Runner) visible(ctx context.Context, sel string) (bool, error) {
	var ok bool
	err := chromedp.Run(ctx, chromedp.Evaluate(visibleJS(sel), &ok))
	return ok, err
}

func dispatch(sel, event string) chromedp.Action {
	js := fmt.Sprintf(`document.querySelector(%q).dispatchEvent(new Event(%q, {bubbles: true}))`, sel, event)
	return chromedp.Evaluate(js, nil)
}

func visibleJS(sel string) string {
	return fmt.Sprintf(`(function(){var e=document.querySelector(%q);return !!e && e.offsetParent !== null;})()`, sel)
}

func orVisibleJS(a, b string) string {
	return fmt.Sprintf(`(%s || %s)`, visibleJS(a), visibleJS(b))
}

func formatDuration(d float64) string {
	return strconv.FormatFloat(d, 'f', 1, 64)
}

const jsHourListReady = `(function(){
	var s = document.querySelector("#court_search_hour");
	return !!s && !s.disabled && s.options.length > 0;
})()`

const jsSubmitEnabled = `(function(){
	var b = document.querySelector("#court_search_submit");
	return !!b && !b.disabled;
})()`

// jsPickHour selects the requested hour when offered, otherwise the
// earliest one the portal lists.
const jsPickHour = `(function(){
	var s = document.querySelector("#court_search_hour");
	var want = %s;
	var value = s.options[0].value;
	for (var i = 0; i < s.options.length; i++) {
		if (s.options[i].value === want) { value = want; break; }
	}
	s.value = value;
	s.dispatchEvent(new Event("change", {bubbles: true}));
	return value;
})()`

// jsClickCourtLink clicks the booking link of the requested court,
// falling back to the first offered link when that court is gone.
const jsClickCourtLink = `(function(){
	var link = document.querySelector('%s a[href*="court_id=%d"]');
	if (!link) { link = document.querySelector('%s a[href*="court_id="]'); }
	if (!link) { return false; }
	link.scrollIntoView({block: "center"});
	link.click();
	return true;
})()`

// jsClickContinue finds the continue control in whichever order
// container is visible, preferring one whose target matches the
// portal's completion endpoint.
const jsClickContinue = `(function(){
	var box = document.querySelector("#step_3");
	if (!box || box.offsetParent === null) { box = document.querySelector(".order-details"); }
	if (!box || box.offsetParent === null) { return false; }
	var controls = box.querySelectorAll("a, button, input[type=submit]");
	var pick = null;
	for (var i = 0; i < controls.length; i++) {
		var href = controls[i].getAttribute("href") || "";
		if (href.indexOf("complete_order") >= 0) { pick = controls[i]; break; }
	}
	if (!pick) {
		for (var j = 0; j < controls.length; j++) {
			var label = controls[j].textContent || controls[j].value || "";
			if (label.indexOf("המשך") >= 0) { pick = controls[j]; break; }
		}
	}
	if (!pick && controls.length > 0) { pick = controls[0]; }
	if (!pick) { return false; }
	pick.scrollIntoView({block: "center"});
	pick.click();
	return true;
})()`

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"itec-bot/parser"
	"itec-bot/session"
	"itec-bot/types"
)

const (
	rentalsPath = "/my_rentals"
	cancelPath  = "/allocations/cancel"
)

// RentalHistory fetches and parses the personal rental-history page.
func (s *Scanner) RentalHistory(ctx context.Context, creds types.Credentials) ([]types.Rental, error) {
	tok, err := s.session.Acquire(ctx, creds)
	if err != nil {
		return nil, err
	}
	page, err := s.getPage(ctx, rentalsPath, tok)
	if errors.Is(err, errSessionExpired) {
		if tok, err = s.session.ForceRefresh(ctx, creds); err != nil {
			return nil, err
		}
		page, err = s.getPage(ctx, rentalsPath, tok)
	}
	if err != nil {
		return nil, err
	}
	return parser.ParseRentalHistory(page), nil
}

// CancelRental issues the cancellation POST for one allocation. The
// portal only renders the cancellation link while the rental is still
// far enough from its start time, so callers should pass an
// AllocationID taken from a fresh RentalHistory read.
func (s *Scanner) CancelRental(ctx context.Context, allocationID string, creds types.Credentials) error {
	tok, err := s.session.Acquire(ctx, creds)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("authenticity_token", tok.AuthenticityToken)
	form.Set("allocation_id", allocationID)

	_, err = s.post(ctx, cancelPath, form, tok)
	if errors.Is(err, errSessionExpired) {
		if tok, err = s.session.ForceRefresh(ctx, creds); err != nil {
			return err
		}
		form.Set("authenticity_token", tok.AuthenticityToken)
		_, err = s.post(ctx, cancelPath, form, tok)
	}
	return err
}

func (s *Scanner) getPage(ctx context.Context, path string, tok types.SessionToken) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return "", err
	}
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
		return "", fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

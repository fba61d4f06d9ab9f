package parser

import (
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"itec-bot/types"
)

const rentalDateLayout = "02/01/2006"

// ParseRentalHistory walks the rental-history table. Cells are read by
// fixed column order: date, time range, court label. A row gains an
// AllocationID only when it still carries a cancellation-action link;
// its absence means the rental is too close to start time to cancel.
func ParseRentalHistory(page string) []types.Rental {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var rentals []types.Rental
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return // header or malformed row
		}
		r := types.Rental{
			Date:       strings.TrimSpace(cells.Eq(0).Text()),
			TimeRange:  strings.TrimSpace(cells.Eq(1).Text()),
			CourtLabel: strings.TrimSpace(cells.Eq(2).Text()),
		}
		if parsed, err := time.Parse(rentalDateLayout, r.Date); err == nil {
			r.ParsedDate = parsed
		}
		tr.Find(`a[href*="allocation_id="]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			u, err := url.Parse(html.UnescapeString(href))
			if err != nil {
				return true
			}
			if id := u.Query().Get("allocation_id"); id != "" {
				r.AllocationID = id
				return false
			}
			return true
		})
		rentals = append(rentals, r)
	})
	return rentals
}

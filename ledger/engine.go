package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMarginRatio is the fallback gross margin used to estimate profit
// for sales that were recorded without cost data.
var DefaultMarginRatio = decimal.RequireFromString("0.25")

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// Location is the shop's local time zone; sales are stamped and
	// reports cut days in it. Defaults to time.Local.
	Location *time.Location

	// MarginRatio replaces DefaultMarginRatio when set. Zero is a valid
	// ratio: uncosted sales then contribute no profit.
	MarginRatio *decimal.Decimal

	// NewID generates record identifiers. Defaults to uuid.NewString.
	NewID func() string
}

// clock stamps records and cuts calendar days in the shop's time zone.
type clock struct {
	now func() time.Time
	loc *time.Location
}

func (c clock) Now() time.Time { return c.now().In(c.loc) }

// DayBounds returns [start of day, start of next day) for the calendar day
// containing t, in the shop's time zone.
func (c clock) DayBounds(t time.Time) (time.Time, time.Time) {
	return DayBounds(t, c.loc)
}

// DayBounds returns the half-open range covering t's calendar day in loc.
// AddDate handles days that are not 24h long (DST changes).
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Engine bundles the ledger services over one Store.
type Engine struct {
	Store     Store
	Inventory *Inventory
	Credit    *Credit
	Expenses  *Expenses
	Checkout  *Checkout
	Reports   *Reports
}

// New wires every service to the same store and clock.
func New(store Store, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	margin := DefaultMarginRatio
	if opts.MarginRatio != nil {
		margin = *opts.MarginRatio
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	c := clock{now: opts.Now, loc: opts.Location}
	return &Engine{
		Store:     store,
		Inventory: &Inventory{store: store, clock: c, newID: opts.NewID},
		Credit:    &Credit{store: store, clock: c, newID: opts.NewID},
		Expenses:  &Expenses{store: store, clock: c, newID: opts.NewID},
		Checkout:  &Checkout{store: store, clock: c, newID: opts.NewID},
		Reports:   &Reports{store: store, clock: c, marginRatio: margin},
	}
}

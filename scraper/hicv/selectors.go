package hicv

// CSS selectors and text patterns the portal is known to render.
// They change without notice; keep them all here.
const (
	// Login (Okta widget)
	UsernameSelector = `#okta-signin-username`
	PasswordSelector = `#okta-signin-password`
	SubmitSelector   = `#okta-signin-submit`

	BookVacationPattern = `^Book My Vacation$`
	CookieAgreePattern  = `^I Agree$`

	// Booking form
	BookingFormSelector  = `#resorts-dropdown`
	BookingFormFallback  = `Select Check In Date`
	LocationTrigger      = `#resorts-dropdown, button[data-uitest='multi-select-button'], [aria-label='Open multi select.']`
	LocationPanel        = `ul[data-uitest='ul-resorts'][role='listbox'], ul[role='listbox']`
	LocationButtonText   = `#resorts-dropdown .FormFieldButton_text__jmMUQ`
	UnitSizeTrigger      = `#unit-size-dropdown`
	UnitSizePanel        = `ul[data-uitest='ul-unit-sizes']`
	ListOptionSelector   = `li[role='option']`
	GroupLabelClass      = `group-label`
	NightsInput          = `#number-of-nights`
	MonthPicker          = `#month-picker`
	YearPicker           = `#year-picker`
	PickerOptionSelector = `p[role='button']`

	// Occupancy counters; %s is "adults" or "children"
	CounterValueFormat = `[data-uitest='number-of-%s-number-of-guests']`
	CounterMinusFormat = `[data-uitest='number-of-%s-left-icon-button']`
	CounterPlusFormat  = `[data-uitest='number-of-%s-right-icon-button']`

	// Calendar range picker
	CalendarOverlay   = `#range-picker, .rdp`
	MonthBlock        = `div.rdp-month`
	MonthCaption      = `.Calendar_month-text__eEKDO, .rdp-caption_label`
	DayButton         = `button[class*='rdp-day'], button[data-uitest*='calendar-day']`
	DayNumber         = `span[aria-hidden='true']`
	NextMonthSelector = `[data-uitest='next-month']`
	DonePattern       = `^Done$`
	ConfirmSelector   = `button[data-uitest='select-check-in-cta']`
	ConfirmPattern    = `^Confirm Dates$`

	// Results
	ResultsAnchor   = `[data-uitest='availability-results']`
	ResultsHeading  = `^Book a Villa`
	ModifySearchTxt = `Modify Search`
)

// CalendarOpeners are tried in order to open the range picker.
var CalendarOpeners = []string{
	`#date-picker`,
	`button[data-uitest='date-picker']`,
	`button[aria-label*='Check-In Date']`,
}

// UnitSizeOptions maps unit size labels to their checkbox ids.
var UnitSizeOptions = []struct{ Label, ID string }{
	{"Studio", "option-ST-id"},
	{"1 Bedroom", "option-1BD-id"},
	{"2 Bedroom", "option-2BD-id"},
	{"3+ Bedroom", "option-3BDPlus-id"},
}

// utils/dates.go
package utils

import "time"

const InvoiceDateLayout = "02 Jan 2006"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// FormatInvoiceDate renders the calendar date of t in the server's local zone.
func FormatInvoiceDate(t time.Time) string {
	return BeginningOfDay(t.Local()).Format(InvoiceDateLayout)
}

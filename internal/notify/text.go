package notify

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders notification texts with locale aware number formatting.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a Formatter for the given locale tag, e.g. "id" or "en".
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// OrderUpdated summarises a change-bearing order update for coordinators.
func (f *Formatter) OrderUpdated(orderLabel, orderID, actor string, headerUpdated bool, linesUpdated int) string {
	var b strings.Builder
	b.WriteString(f.printer.Sprintf("Sales order %s (id %s) was updated by %s.", orderLabel, orderID, actor))
	if headerUpdated {
		b.WriteString("\nHeader fields changed.")
	}
	if linesUpdated > 0 {
		b.WriteString(f.printer.Sprintf("\n%d line(s) changed.", linesUpdated))
	}
	return b.String()
}

// ReviewRequest asks a department to review an updated order.
func (f *Formatter) ReviewRequest(orderLabel, orderID, actor, department string) string {
	return f.printer.Sprintf("[%s] Sales order %s (id %s) was changed by %s and needs your review.", department, orderLabel, orderID, actor)
}

// OrderSplit announces a new order carved out of a parent.
func (f *Formatter) OrderSplit(parentLabel, newOrderNumber, newOrderID, actor string, lines int, quantity float64) string {
	return f.printer.Sprintf("Sales order %s was split by %s into %s (id %s): %d line(s), total quantity %v.",
		parentLabel, actor, newOrderNumber, newOrderID, lines, quantity)
}

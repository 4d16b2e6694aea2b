// Package translate formats user-facing text for the host locale.
package translate

import (
	"io"
	"log"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/message"
)

var printer = NewPrinter(detectLocales()...)

func detectLocales() []string {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("r32vm: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	return locales
}

// NewPrinter returns a printer for the best match among locales.
func NewPrinter(locales ...string) *message.Printer {
	return message.NewPrinter(message.MatchLanguage(locales...))
}

// From formats an en-US Sprintf() format for the host locale.
func From(key message.Reference, args ...any) string {
	return printer.Sprintf(key, args...)
}

// Fprintf writes a formatted message for the host locale to w.
func Fprintf(w io.Writer, key message.Reference, args ...any) (int, error) {
	return printer.Fprintf(w, key, args...)
}

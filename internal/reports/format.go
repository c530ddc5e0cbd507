package reports

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const descriptionWidth = 40

var printer = message.NewPrinter(language.English)

// number formats v with thousands separators.
func number(v float64, decimals int) string {
	switch decimals {
	case 0:
		return printer.Sprintf("%.0f", v)
	case 1:
		return printer.Sprintf("%.1f", v)
	default:
		return printer.Sprintf("%.2f", v)
	}
}

func signed(v float64) string {
	return printer.Sprintf("%+.1f", v)
}

func usd(v float64) string {
	return "$" + number(v, 2)
}

func percent(ratio float64, decimals int) string {
	return number(ratio*100, decimals) + "%"
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width]) + "..."
}

func upper(s string) string {
	return strings.ToUpper(s)
}

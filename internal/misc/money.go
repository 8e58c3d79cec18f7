package misc

import "fmt"

// currencySymbols maps ISO codes to display symbols; anything else is
// rendered with the code as prefix.
var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// FormatAmount renders a minor-unit amount, e.g. -1250 GBP as "-£12.50".
// Monzo reports all amounts in minor units of the account currency.
func FormatAmount(minor int64, currency string) string {
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, minor/100, minor%100)
}

/**
 * @description
 * Static lookup tables mapping front-end provider selectors to the product
 * codes the billing aggregator expects. The maps are immutable; each vertical
 * exposes a pure normalize function returning (code, ok).
 */

package support

import (
	"regexp"
	"strings"
)

var networkProducts = map[string]string{
	"mtn":      "MTN",
	"airtel":   "Airtel",
	"glo":      "Glo",
	"9mobile":  "9mobile",
	"etisalat": "9mobile",
}

var electricityDiscos = map[string]string{
	"aedc":          "AEDC",
	"abuja":         "AEDC",
	"ikedc":         "IKEDC",
	"ikeja":         "IKEDC",
	"ekedc":         "EKEDC",
	"eko":           "EKEDC",
	"ibedc":         "IBEDC",
	"ibadan":        "IBEDC",
	"bedc":          "BEDC",
	"benin":         "BEDC",
	"eedc":          "EEDC",
	"enugu":         "EEDC",
	"jed":           "JED",
	"jedc":          "JED",
	"jos":           "JED",
	"kedco":         "KEDCO",
	"kano":          "KEDCO",
	"kaedco":        "KAEDCO",
	"kaduna":        "KAEDCO",
	"phed":          "PHED",
	"portharcourt":  "PHED",
	"port-harcourt": "PHED",
}

var cableProducts = map[string]string{
	"dstv":      "DSTV",
	"gotv":      "GOTV",
	"startimes": "STARTIMES",
}

var internetProducts = map[string]string{
	"spectranet": "SPECTRANET",
	"smile":      "SMILE",
	"swift":      "SWIFT",
	"ipnx":       "IPNX",
	"fiberone":   "FIBERONE",
}

var bettingProviders = map[string]string{
	"bet9ja":   "BET9JA",
	"sporty":   "SPORTYBET",
	"1xbet":    "1XBET",
	"betking":  "BETKING",
	"nairabet": "NAIRABET",
	"msport":   "MSPORT",
}

// meterTypeSuffix strips selector ids that carry the meter type, e.g.
// "abuja-electricity-prepaid".
var meterTypeSuffix = regexp.MustCompile(`-(prepaid|postpaid)$`)

func normalizeKey(selector string) string {
	key := strings.ToLower(strings.TrimSpace(selector))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	return key
}

// NetworkProduct maps a mobile network selector to the provider product label.
func NetworkProduct(selector string) (string, bool) {
	code, ok := networkProducts[normalizeKey(selector)]
	return code, ok
}

// ElectricityDisco maps a disco selector to the distribution company code.
// Selectors may carry an "-electricity" and/or meter type suffix.
func ElectricityDisco(selector string) (string, bool) {
	key := normalizeKey(selector)
	key = meterTypeSuffix.ReplaceAllString(key, "")
	key = strings.TrimSuffix(key, "-electricity")
	code, ok := electricityDiscos[key]
	return code, ok
}

// CableProduct maps a TV provider selector to the provider product code.
func CableProduct(selector string) (string, bool) {
	code, ok := cableProducts[normalizeKey(selector)]
	return code, ok
}

// InternetProduct maps an ISP selector to the provider product code.
func InternetProduct(selector string) (string, bool) {
	code, ok := internetProducts[normalizeKey(selector)]
	return code, ok
}

// BettingProvider maps a betting platform selector to the provider code.
func BettingProvider(selector string) (string, bool) {
	code, ok := bettingProviders[normalizeKey(selector)]
	return code, ok
}

package symbols

import "strings"

// quoteAssets lists quote currencies recognised when a pair is written without
// a separator. Longer codes come first so USDT wins over USD.
var quoteAssets = []string{"USDT", "USDC", "USD", "EUR", "GBP", "BTC", "ETH"}

// Separator returns the pair separator used by an exchange. Only Coinbase
// (formerly GDAX) is known; anything else joins without a separator.
func Separator(exchange string) string {
	switch strings.ToLower(exchange) {
	case "coinbase", "gdax":
		return "-"
	default:
		return ""
	}
}

// Join formats a base/quote pair with the exchange's separator, e.g.
// coinbase BTC USD -> BTC-USD.
func Join(exchange, base, quote string) string {
	return strings.ToUpper(base) + Separator(exchange) + strings.ToUpper(quote)
}

// Split breaks a pair string into its base and quote assets. Dash, slash and
// underscore separators are accepted; separator-less pairs are split on a known
// quote suffix. XBT is mapped to BTC for compatibility.
func Split(sym string) (base, quote string, ok bool) {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	if sym == "" {
		return "", "", false
	}

	if i := strings.IndexAny(sym, "-/_"); i >= 0 {
		base, quote = sym[:i], sym[i+1:]
		if strings.ContainsAny(quote, "-/_") {
			return "", "", false
		}
	} else {
		for _, q := range quoteAssets {
			if len(sym) > len(q) && strings.HasSuffix(sym, q) {
				base, quote = strings.TrimSuffix(sym, q), q
				break
			}
		}
	}
	if base == "" || quote == "" {
		return "", "", false
	}
	return normalizeAsset(base), normalizeAsset(quote), true
}

func normalizeAsset(asset string) string {
	if asset == "XBT" {
		return "BTC"
	}
	return asset
}

package transport

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"cryptobridge/models"
)

// Credentials authenticate order entry requests.
type Credentials struct {
	Key        string `env:"API_KEY,required,notEmpty"`
	Secret     string `env:"API_SECRET,required,notEmpty"`
	Passphrase string `env:"API_PASSPHRASE,required,notEmpty"`
}

// String hides the secret parts.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Key:%s Secret:*** Passphrase:***}", c.Key)
}

// CredentialNamespace returns the environment prefix for an exchange and
// trading mode. Live and simulation share one namespace; sandbox uses a
// suffixed one. Backtests never authenticate.
func CredentialNamespace(exchange models.ExchangeType, mode models.TradingMode) (string, error) {
	base := strings.ToUpper(string(exchange))
	switch mode {
	case models.TradingModeLive, models.TradingModeSimulation:
		return base + "_", nil
	case models.TradingModeSandbox:
		return base + "_SANDBOX_", nil
	default:
		return "", fmt.Errorf("%w: no credentials for %s mode", models.ErrUnsupported, mode)
	}
}

// LoadCredentials resolves credentials from the process environment, e.g.
// COINBASE_API_KEY or COINBASE_SANDBOX_API_KEY.
func LoadCredentials(exchange models.ExchangeType, mode models.TradingMode) (Credentials, error) {
	return LoadCredentialsFrom(nil, exchange, mode)
}

// LoadCredentialsFrom is LoadCredentials over an explicit environment; a nil
// map reads the process environment.
func LoadCredentialsFrom(environ map[string]string, exchange models.ExchangeType, mode models.TradingMode) (Credentials, error) {
	prefix, err := CredentialNamespace(exchange, mode)
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if err := env.ParseWithOptions(&creds, env.Options{Prefix: prefix, Environment: environ}); err != nil {
		return Credentials{}, fmt.Errorf("%w: %s: %v", models.ErrCredential, strings.TrimSuffix(prefix, "_"), err)
	}
	return creds, nil
}

package exchangefactory

import (
	"context"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/binance"
	"hermes/internal/adapters/exchanges/bybit"
	"hermes/internal/adapters/exchanges/okx"
	"hermes/internal/adapters/exchanges/ratelimit"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// DefaultEntity is used when a job does not name a trading entity.
const DefaultEntity = "ZN"

// CredentialSource resolves API credentials for a subaccount.
type CredentialSource interface {
	GetCredentials(ctx context.Context, exchange, subAccount, entity string) (*exchanges.Credentials, error)
}

// Factory builds exchange adapters for job legs. Every call returns a fresh
// client: adapters carry per-job market data state and are never shared
// across jobs.
type Factory struct {
	exchangesCfg config.ExchangesConfig
	arbitrageCfg config.ArbitrageConfig
	creds        CredentialSource
	limiters     *ratelimit.ExchangeLimiters
	log          *logger.Logger
}

// New creates a factory. The credential source backs Binance subaccounts;
// Bybit and OKX use the central keys from config.
func New(exchangesCfg config.ExchangesConfig, arbitrageCfg config.ArbitrageConfig, creds CredentialSource) *Factory {
	return &Factory{
		exchangesCfg: exchangesCfg,
		arbitrageCfg: arbitrageCfg,
		creds:        creds,
		limiters:     ratelimit.NewExchangeLimiters(),
		log:          logger.Get().With("component", "exchange_factory"),
	}
}

// CreateClient builds an adapter for one job leg.
func (f *Factory) CreateClient(ctx context.Context, exchange, subAccount, entity string) (exchanges.Exchange, error) {
	if entity == "" {
		entity = DefaultEntity
	}

	var client exchanges.Exchange
	var err error

	switch exchange {
	case "binance":
		client, err = f.createBinanceClient(ctx, subAccount, entity)
	case "bybit":
		client, err = f.createBybitClient()
	case "okx":
		client, err = f.createOKXClient()
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedExchange, "%s", exchange)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s client", exchange)
	}

	f.log.Infof("Created %s client for subaccount %s/%s", exchange, subAccount, entity)

	return client, nil
}

func (f *Factory) createBinanceClient(ctx context.Context, subAccount, entity string) (exchanges.Exchange, error) {
	creds, err := f.creds.GetCredentials(ctx, "binance", subAccount, entity)
	if err != nil {
		return nil, err
	}

	return binance.NewClient(binance.Config{
		APIKey:    creds.APIKey,
		SecretKey: creds.Secret,
		Limiter:   f.limiters.Binance,
	})
}

func (f *Factory) createBybitClient() (exchanges.Exchange, error) {
	return bybit.NewClient(bybit.Config{
		APIKey:         f.exchangesCfg.BybitAPIKey,
		SecretKey:      f.exchangesCfg.BybitSecret,
		Limiter:        f.limiters.Bybit,
		QuoteFreshness: f.arbitrageCfg.QuoteFreshness,
	})
}

func (f *Factory) createOKXClient() (exchanges.Exchange, error) {
	return okx.NewClient(okx.Config{
		APIKey:         f.exchangesCfg.OKXAPIKey,
		SecretKey:      f.exchangesCfg.OKXSecret,
		Passphrase:     f.exchangesCfg.OKXPassphrase,
		Limiter:        f.limiters.OKX,
		QuoteFreshness: f.arbitrageCfg.QuoteFreshness,
	})
}

// ListExchanges returns the list of supported exchanges
func (f *Factory) ListExchanges() []string {
	return []string{"binance", "bybit", "okx"}
}

// jobctl submits arbitrage jobs and stop requests from the command line.
//
// Usage:
//
//	jobctl submit -job-id j1 -symbol BTC -long binance -short bybit -quantity 0.1 -tick 0.01
//	jobctl stop -job-id j1
//	jobctl creds -exchange binance -sub-account sub-a -api-key K -secret S
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/exchangefactory"
	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/postgres"
	redisadapter "hermes/internal/adapters/redis"
	"hermes/internal/domain/subaccount"
	"hermes/internal/events"
	pgrepo "hermes/internal/repository/postgres"
	redisrepo "hermes/internal/repository/redis"
	"hermes/pkg/crypto"
	"hermes/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	if len(os.Args) < 2 {
		usage()
	}

	if err := logger.Init("info", "development"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var cmdErr error
	switch os.Args[1] {
	case "submit":
		cmdErr = submit(ctx, cfg, os.Args[2:])
	case "stop":
		cmdErr = stop(ctx, cfg, os.Args[2:])
	case "creds":
		cmdErr = creds(ctx, cfg, os.Args[2:])
	default:
		usage()
	}

	if cmdErr != nil {
		logger.Fatalf("%v", cmdErr)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jobctl <submit|stop|creds> [flags]")
	os.Exit(2)
}

func submit(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	jobID := fs.String("job-id", uuid.NewString(), "job identifier")
	symbol := fs.String("symbol", "", "base asset, e.g. BTC")
	long := fs.String("long", "", "long leg exchange")
	short := fs.String("short", "", "short leg exchange")
	assetLong := fs.String("asset-long", "USDT", "long leg quote asset")
	assetShort := fs.String("asset-short", "USDT", "short leg quote asset")
	subLong := fs.String("sub-long", "", "long leg sub-account")
	subShort := fs.String("sub-short", "", "short leg sub-account")
	entityLong := fs.String("entity-long", "", "long leg entity")
	entityShort := fs.String("entity-short", "", "short leg entity")
	quantity := fs.String("quantity", "", "total quantity")
	tick := fs.String("tick", "", "per-slot quantity")
	fs.Parse(args)

	qty, err := decimal.NewFromString(*quantity)
	if err != nil {
		return fmt.Errorf("invalid -quantity: %w", err)
	}
	tickQty, err := decimal.NewFromString(*tick)
	if err != nil {
		return fmt.Errorf("invalid -tick: %w", err)
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	publisher := events.NewPublisher(producer, logger.Get())

	event := &events.JobSubmittedEvent{
		JobID:            *jobID,
		Symbol:           *symbol,
		LongExchange:     *long,
		ShortExchange:    *short,
		MarketAssetLong:  *assetLong,
		MarketAssetShort: *assetShort,
		LongSubAccount:   *subLong,
		ShortSubAccount:  *subShort,
		LongEntity:       *entityLong,
		ShortEntity:      *entityShort,
		Quantity:         qty,
		TickQuantity:     tickQty,
	}

	if err := publisher.PublishJob(ctx, event); err != nil {
		return err
	}

	logger.Infof("submitted job %s", *jobID)
	return nil
}

func stop(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	jobID := fs.String("job-id", "", "job identifier")
	fs.Parse(args)

	if *jobID == "" {
		return fmt.Errorf("-job-id is required")
	}

	client, err := redisadapter.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	stopRepo := redisrepo.NewStopSignalRepository(client.Client())
	if err := stopRepo.RequestStop(ctx, *jobID); err != nil {
		return err
	}

	logger.Infof("stop requested for job %s", *jobID)
	return nil
}

func creds(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("creds", flag.ExitOnError)
	exchange := fs.String("exchange", "", "venue name")
	subAccount := fs.String("sub-account", "", "sub-account name")
	entity := fs.String("entity", exchangefactory.DefaultEntity, "owning entity")
	apiKey := fs.String("api-key", "", "API key")
	secret := fs.String("secret", "", "API secret")
	passphrase := fs.String("passphrase", "", "API passphrase (OKX)")
	fs.Parse(args)

	if *exchange == "" || *subAccount == "" || *apiKey == "" || *secret == "" {
		return fmt.Errorf("-exchange, -sub-account, -api-key and -secret are required")
	}

	encryptor, err := crypto.NewEncryptor(cfg.App.EncryptionKey)
	if err != nil {
		return err
	}

	sa := &subaccount.SubAccount{
		ID:        uuid.New(),
		Exchange:  *exchange,
		Name:      *subAccount,
		Entity:    *entity,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if sa.APIKeyEncrypted, err = encryptor.Encrypt(*apiKey); err != nil {
		return err
	}
	if sa.SecretEncrypted, err = encryptor.Encrypt(*secret); err != nil {
		return err
	}
	if *passphrase != "" {
		if sa.PassphraseEncrypted, err = encryptor.Encrypt(*passphrase); err != nil {
			return err
		}
	}

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	repo := pgrepo.NewSubAccountRepository(pgClient.DB(), encryptor)
	if err := repo.Create(ctx, sa); err != nil {
		return err
	}

	logger.Infof("stored credentials for %s/%s", *exchange, *subAccount)
	return nil
}

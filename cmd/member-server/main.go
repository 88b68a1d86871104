package main

import (
	"context"
	"fmt"

	"member-core/internal/handler"
	"member-core/internal/model"
	"member-core/internal/reserve"
	"member-core/internal/server"
	"member-core/internal/service"
	"member-core/internal/service/mq"

	"member-core/pkg/bip32"
	"member-core/pkg/bip39"
	"member-core/pkg/config"
	"member-core/pkg/database"
	"member-core/pkg/logger"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger.Init(cfg.App.Env)
	defer logger.Sync()

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)

	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}

	if cfg.App.Env == "development" {
		logger.Info("development mode: running gorm AutoMigrate")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("auto migration failed", zap.Error(err))
		}
	} else {
		logger.Info("production mode: schema is managed by the migrate tool")
	}

	accountKey, err := loadAccountKey(cfg)
	if err != nil {
		logger.Fatal("failed to load account xpub", zap.Error(err))
	}

	ethClient, err := ethclient.Dial(cfg.Chain.RpcUrl)
	if err != nil {
		logger.Fatal("chain RPC connection failed", zap.Error(err))
	}

	reserveClient := reserve.NewClient(reserve.Config{
		BaseURL: cfg.Reserve.BaseURL,
		APIKey:  cfg.Reserve.APIKey,
		Timeout: cfg.Reserve.Timeout,
	})

	paymentService, err := service.NewPaymentService(db, rdb, accountKey, cfg)
	if err != nil {
		logger.Fatal("payment service init failed", zap.Error(err))
	}
	membershipService := service.NewMembershipService(db, &cfg.Membership)
	commissionService := service.NewCommissionService(&cfg.Commission)

	scanner := service.NewScannerService(db, ethClient, &cfg.Chain)
	sweeper := service.NewSweeperService(db, reserveClient, &cfg.Sweep, cfg.Chain.TokenDecimals)
	settler := service.NewSettlementService(db, membershipService, commissionService)
	pipeline := service.NewPipelineService(scanner, sweeper, settler)

	var producer mq.Producer
	if cfg.Redis.MQType == "kafka" {
		logger.Info("using Kafka for the outbox relay")
		producer = mq.NewKafkaProducer(cfg.Kafka.Brokers)
	} else {
		logger.Info("using Redis Streams for the outbox relay")
		producer = mq.NewRedisProducer(rdb)
	}
	relay := service.NewRelayService(db, producer)
	go relay.Start(context.Background())

	cronService := service.NewCronService(rdb, pipeline, membershipService)
	cronService.Start()
	defer cronService.Stop()

	router := server.NewHTTPRouter(
		handler.NewPaymentHandler(paymentService),
		handler.NewAdminHandler(membershipService),
	)

	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, router)
	app.Run()

	logger.Info("closing connections...")
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	ethClient.Close()
	logger.Info("exited")
}

// loadAccountKey returns the extended public key deposit addresses derive
// from. Production sets wallet.account_xpub; development may set only a
// mnemonic, in which case the xpub is derived in-process and the private
// material is dropped immediately.
func loadAccountKey(cfg *config.Config) (bip32.ExtendedKey, error) {
	if cfg.Wallet.AccountXpub != "" {
		key, err := bip32.ParseKey(cfg.Wallet.AccountXpub, &chaincfg.MainNetParams)
		if err != nil {
			return nil, err
		}
		if key.IsPrivate() {
			return nil, fmt.Errorf("wallet.account_xpub contains a private key")
		}
		return key, nil
	}

	if cfg.Wallet.Mnemonic == "" {
		return nil, fmt.Errorf("neither wallet.account_xpub nor wallet.mnemonic is set")
	}

	logger.Warn("deriving account xpub from mnemonic, do not use this in production")
	seed := bip39.NewMnemonicService().MnemonicToSeed(cfg.Wallet.Mnemonic, "")
	wallet, err := bip32.NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	accountPriv, err := wallet.DerivePath("m/44'/60'/0'")
	if err != nil {
		return nil, err
	}
	return accountPriv.Neuter()
}

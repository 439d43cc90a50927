package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dhis2/certification-app-sub003/internal/config"
	"github.com/dhis2/certification-app-sub003/internal/domain"
	"github.com/dhis2/certification-app-sub003/internal/infra/audithmac"
	"github.com/dhis2/certification-app-sub003/internal/infra/canonical"
	"github.com/dhis2/certification-app-sub003/internal/infra/db"
	"github.com/dhis2/certification-app-sub003/internal/infra/encryption"
	httpinfra "github.com/dhis2/certification-app-sub003/internal/infra/http"
	"github.com/dhis2/certification-app-sub003/internal/infra/keys/local"
	"github.com/dhis2/certification-app-sub003/internal/infra/keys/transit"
	"github.com/dhis2/certification-app-sub003/internal/infra/ratelimit"
	"github.com/dhis2/certification-app-sub003/internal/infra/session"
	"github.com/dhis2/certification-app-sub003/internal/infra/vaultclient"
	"github.com/dhis2/certification-app-sub003/internal/usecase"
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	var vault *vaultclient.Client
	if needsVault(cfg) {
		vault, err = vaultclient.New(vaultclient.Config{
			Addr:     cfg.VaultAddr,
			Token:    cfg.VaultToken,
			RoleID:   cfg.VaultRoleID,
			SecretID: cfg.VaultSecretID,
			Timeout:  cfg.VaultTimeout(),
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("failed to init vault client", zap.Error(err))
		}
		if cfg.VaultToken == "" {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.VaultTimeout())
			if err := vault.Login(ctx); err != nil {
				cancel()
				logger.Fatal("vault login failed", zap.Error(err))
			}
			cancel()
			vault.StartRenewal(cfg.VaultRenewInterval())
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			vault.Close(ctx)
		}()
	}

	signer, rotator := buildSigner(cfg, vault, logger)

	loader, err := canonical.NewContextLoader(cfg.AllowRemoteContexts, logger)
	if err != nil {
		logger.Fatal("failed to init context loader", zap.Error(err))
	}
	docs := canonical.NewDocumentCanonicalizer(loader)

	conn, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := db.AutoMigrate(conn); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	integrity := usecase.NewAuditIntegrity(buildMAC(cfg, vault, logger))
	credentials := db.NewCredentialRepository(conn)
	auditRepo := db.NewAuditEntryRepository(conn, integrity)
	statusRepo := db.NewStatusListRepository(conn)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := session.NewRedisStore(redisClient)

	encryptor := buildEncryptor(cfg, vault, logger)
	breaker := session.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown(), nil)
	blacklist := session.NewBlacklist(session.BlacklistConfig{
		Store:         store,
		Breaker:       breaker,
		CacheMax:      cfg.BlacklistCacheMax,
		SweepInterval: time.Duration(cfg.BlacklistSweepSecs) * time.Second,
		Encryptor:     encryptor,
		Logger:        logger,
	})
	sessions := session.NewRefreshSessions(session.RefreshSessionsConfig{
		Store:      store,
		TTL:        cfg.SessionTTL(),
		MaxPerUser: cfg.SessionMaxPerUser,
		Logger:     logger,
	})

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter, err = ratelimit.NewRedisLimiter(redisClient, nil)
		if err != nil {
			logger.Warn("redis rate limiter unavailable, using in-memory limiter", zap.Error(err))
			limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{})
		}
	}

	srv := httpinfra.NewServerWithDeps(cfg, httpinfra.ServerDeps{
		Issue: &usecase.IssueCredential{
			Signer:      signer,
			Docs:        docs,
			Credentials: credentials,
			IssuerID:    cfg.IssuerID,
			IssuerName:  cfg.IssuerName,
			BaseURL:     cfg.BaseURL,
			TTL:         cfg.CredentialTTL(),
		},
		Verify: &usecase.VerifyCredential{
			Signer:      signer,
			Docs:        docs,
			Credentials: credentials,
			Status:      statusRepo,
			Logger:      logger,
		},
		Signer:      signer,
		Rotator:     rotator,
		Status:      statusRepo,
		Audit:       auditRepo,
		Integrity:   integrity,
		Blacklist:   blacklist,
		Sessions:    sessions,
		RateLimiter: limiter,
		Logger:      logger,
	})

	logger.Info("starting trust core",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("signer_mode", cfg.SignerMode),
		zap.String("issuer", cfg.IssuerID))
	if err := srv.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func needsVault(cfg config.Config) bool {
	return cfg.SignerMode == "transit" || cfg.AuditHMACMode == "transit" || cfg.EncryptionMode == "transit"
}

func buildLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		zapCfg.Level = parsed
	}
	return zapCfg.Build()
}

func buildSigner(cfg config.Config, vault *vaultclient.Client, logger *zap.Logger) (domain.Signer, httpinfra.KeyRotator) {
	if cfg.SignerMode == "transit" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.VaultTimeout())
		defer cancel()
		manager, err := transit.NewManager(ctx, vault, cfg.VaultTransitKey, logger)
		if err != nil {
			logger.Fatal("failed to init transit signer", zap.Error(err))
		}
		// Rotation happens inside the transit service; the manager picks up
		// new versions on its next sign.
		return manager, nil
	}
	manager, err := local.NewManager(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init local signer", zap.Error(err))
	}
	return manager, manager
}

func buildMAC(cfg config.Config, vault *vaultclient.Client, logger *zap.Logger) usecase.MAC {
	if cfg.AuditHMACMode == "transit" {
		return audithmac.NewTransit(vault, cfg.VaultTransitKey)
	}
	mac, err := audithmac.NewLocal(cfg.AuditHMACKeyHex)
	if err != nil {
		logger.Fatal("failed to init audit hmac key", zap.Error(err))
	}
	return mac
}

func buildEncryptor(cfg config.Config, vault *vaultclient.Client, logger *zap.Logger) encryption.Service {
	if cfg.EncryptionMode == "transit" {
		return encryption.NewTransit(vault, cfg.VaultTransitKey)
	}
	enc, err := encryption.NewLocal(cfg.EncryptionKeyHex)
	if err != nil {
		logger.Fatal("failed to init encryption key", zap.Error(err))
	}
	return enc
}

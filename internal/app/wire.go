package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/shikwambipolly/how-is-bloomberg/internal/blob/s3"
	"github.com/shikwambipolly/how-is-bloomberg/internal/cache/redis"
	"github.com/shikwambipolly/how-is-bloomberg/internal/config"
	"github.com/shikwambipolly/how-is-bloomberg/internal/crypto"
	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
	"github.com/shikwambipolly/how-is-bloomberg/internal/notify"
	"github.com/shikwambipolly/how-is-bloomberg/internal/store/postgres"
)

// Dependencies bundles the long-lived resources the collection modes need:
// the bond list, the notifier, and the optional run-history, locking, and
// archival backends. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Bonds is the instrument configuration, loaded once per run.
	Bonds domain.BondList

	// Stores (nil unless postgres is enabled)
	RunStore         domain.RunStore
	ObservationStore domain.ObservationStore

	// LockManager guards against double-fired runs (nil unless redis is
	// enabled).
	LockManager domain.LockManager

	// Archiver copies output files to object storage (nil unless s3 is
	// enabled).
	Archiver domain.Archiver

	// Notifier dispatches failure alerts and run reports.
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Bond configuration (fatal when missing: no workflow can validate
	// its records without it) ---
	bonds, err := config.LoadBonds(cfg.Sources.BondsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: bonds: %w", err)
	}
	deps.Bonds = bonds
	logger.InfoContext(ctx, "bond configuration loaded",
		slog.String("path", cfg.Sources.BondsPath),
		slog.Int("bonds", bonds.Len()),
	)

	// --- PostgreSQL (optional run history + observation archive) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.RunStore = postgres.NewRunStore(pool)
		deps.ObservationStore = postgres.NewObservationStore(pool)
	}

	// --- Redis (optional run lock) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage (optional output archive) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), logger)
	}

	// --- Notifications ---
	// The mail password may live in an encrypted secret file so the plain
	// credential never sits in the TOML.
	password, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:     cfg.Mail.Password,
		EncryptedPath: cfg.Mail.EncryptedPasswordPath,
		Password:      cfg.Mail.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: mail password: %w", err)
	}

	senders := []notify.Sender{
		notify.NewMailSender(
			cfg.Mail.SMTPHost,
			cfg.Mail.SMTPPort,
			cfg.Mail.Sender,
			password,
			cfg.Notify.ErrorRecipients,
		),
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

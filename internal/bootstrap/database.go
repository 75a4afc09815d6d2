package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/croutons-ai/precog/config"
	"github.com/croutons-ai/precog/internal/migrate"
)

// connectProbeTimeout bounds the startup ping against Postgres and Redis.
const connectProbeTimeout = 5 * time.Second

// ConnectDB opens the PostgreSQL pool described by cfg and verifies it
// responds before handing it back.
func ConnectDB(cfg config.DBConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		err = fmt.Errorf("ping postgres: %w", err)
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}

	if logger != nil {
		logger.Info("postgres pool ready",
			"host", cfg.Host,
			"database", cfg.Name,
			"max_open_conns", cfg.MaxOpenConns,
		)
	}

	return db, nil
}

// redisDial pairs a constructed client with a credential-free description
// of what it points at, suitable for logging.
type redisDial struct {
	client redis.UniversalClient
	target string
}

// ConnectRedis dials the Redis stream bus in direct, sentinel, or cluster
// mode depending on cfg, and verifies the connection with a ping.
//
//nolint:ireturn // redis.UniversalClient is the common surface of the three client kinds.
func ConnectRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	var (
		dial redisDial
		err  error
	)

	switch {
	case cfg.UseCluster:
		dial, err = dialCluster(cfg)
	case cfg.UseSentinel:
		dial, err = dialSentinel(cfg)
	default:
		dial, err = dialDirect(cfg)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectProbeTimeout)
	defer cancel()

	if err := dial.client.Ping(ctx).Err(); err != nil {
		err = fmt.Errorf("ping redis: %w", err)
		if closeErr := dial.client.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}

	if logger != nil {
		logger.Info("redis bus ready", "target", stripCredentials(dial.target))
	}

	return dial.client, nil
}

func dialCluster(cfg config.RedisConfig) (redisDial, error) {
	opts := &redis.ClusterOptions{Password: cfg.Password}
	for _, node := range cfg.ClusterNodes {
		if node = strings.TrimSpace(node); node != "" {
			opts.Addrs = append(opts.Addrs, node)
		}
	}

	// A deployment that only sets REDIS_URI can still run in cluster mode;
	// the single URI seeds topology discovery.
	if len(opts.Addrs) == 0 {
		if err := seedClusterFromURI(opts, cfg.URI); err != nil {
			return redisDial{}, err
		}
	}
	if len(opts.Addrs) == 0 {
		return redisDial{}, errors.New("redis cluster mode needs REDIS_CLUSTER_NODES or REDIS_URI")
	}

	return redisDial{
		client: redis.NewClusterClient(opts),
		target: "cluster[" + strings.Join(opts.Addrs, " ") + "]",
	}, nil
}

func seedClusterFromURI(opts *redis.ClusterOptions, uri string) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil
	}
	if !hasRedisScheme(uri) {
		opts.Addrs = []string{uri}
		return nil
	}

	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return fmt.Errorf("parse redis uri: %w", err)
	}
	opts.Addrs = []string{parsed.Addr}
	opts.Username = parsed.Username
	if parsed.Password != "" {
		opts.Password = parsed.Password
	}
	opts.TLSConfig = parsed.TLSConfig
	return nil
}

func dialSentinel(cfg config.RedisConfig) (redisDial, error) {
	if len(cfg.SentinelNodes) == 0 {
		return redisDial{}, errors.New("redis sentinel mode needs at least one sentinel address")
	}

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       cfg.SentinelMasterName,
		SentinelAddrs:    cfg.SentinelNodes,
		Password:         cfg.Password,
		SentinelPassword: cfg.SentinelPassword,
	})
	return redisDial{client: client, target: "sentinel[" + cfg.SentinelMasterName + "]"}, nil
}

func dialDirect(cfg config.RedisConfig) (redisDial, error) {
	uri := strings.TrimSpace(cfg.URI)
	switch {
	case uri == "":
		return redisDial{}, errors.New("redis requires REDIS_URI")
	case hasRedisScheme(uri):
		opts, err := redis.ParseURL(uri)
		if err != nil {
			return redisDial{}, fmt.Errorf("parse redis uri: %w", err)
		}
		return redisDial{client: redis.NewClient(opts), target: opts.Addr}, nil
	default:
		client := redis.NewClient(&redis.Options{Addr: uri, Password: cfg.Password})
		return redisDial{client: client, target: uri}, nil
	}
}

func hasRedisScheme(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// stripCredentials drops everything before an @ so raw user:pass@host URIs
// never reach the logs.
func stripCredentials(target string) string {
	if at := strings.LastIndexByte(target, '@'); at >= 0 {
		return target[at+1:]
	}
	return target
}

// RunMigrations applies any schema migrations not yet recorded in the
// migrations table.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "schema migrations applied")
	}

	return nil
}

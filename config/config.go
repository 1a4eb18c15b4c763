package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Session   SessionConfig
	Discovery DiscoveryConfig
	TLS       TLSConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
}

// SessionConfig holds the collaborative session host settings.
type SessionConfig struct {
	Port                int    // listening port for the encrypted session endpoint
	PublicAddress       string // address advertised to the registry; empty = detect
	HostUsername        string // identity of the hosting participant
	MaxParticipants     int
	HandshakeTimeoutSec int
}

// DiscoveryConfig holds the well-known discovery listener settings.
type DiscoveryConfig struct {
	Port       int
	TimeoutSec int // client-side resolve timeout
}

// TLSConfig holds paths to the key/certificate pair for the encrypted transport.
type TLSConfig struct {
	KeyPath  string
	CertPath string
}

// DatabaseConfig holds PostgreSQL connection settings for the credential store.
// Empty URL means the in-memory store is used instead.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis connection settings for the shared host registry.
// Empty Addr means the in-memory registry is used instead.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds credentials and the bucket for board snapshot uploads.
// SnapshotKey names an object to seed the board from at startup.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SnapshotsBucket string
	SnapshotKey     string
}

// Load reads configuration from environment, with optional .env file.
// The SSL key and certificate paths are mandatory and must resolve to
// existing files; anything else falls back to a default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Session: SessionConfig{
			Port:                getEnvInt("SESSION_PORT", 5050),
			PublicAddress:       getEnv("PUBLIC_ADDRESS", ""),
			HostUsername:        getEnv("HOST_USERNAME", ""),
			MaxParticipants:     getEnvInt("MAX_PARTICIPANTS", 32),
			HandshakeTimeoutSec: getEnvInt("HANDSHAKE_TIMEOUT_SEC", 10),
		},
		Discovery: DiscoveryConfig{
			Port:       getEnvInt("DISCOVERY_PORT", 9000),
			TimeoutSec: getEnvInt("DISCOVERY_TIMEOUT_SEC", 5),
		},
		TLS: TLSConfig{
			KeyPath:  getEnv("SSL_KEY_PATH", "ssl/server.key"),
			CertPath: getEnv("SSL_CERT_PATH", "ssl/server.crt"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SnapshotsBucket: getEnv("AWS_S3_SNAPSHOTS_BUCKET", "whiteboard-snapshots"),
			SnapshotKey:     getEnv("AWS_S3_SNAPSHOT_KEY", ""),
		},
	}

	if err := cfg.TLS.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that both TLS material files exist on disk. Networking must
// not start without them.
func (t TLSConfig) Validate() error {
	for name, p := range map[string]string{"SSL_KEY_PATH": t.KeyPath, "SSL_CERT_PATH": t.CertPath} {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%s is required", name)
		}
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", name, p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s: %s is a directory", name, p)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

package config

import (
	"errors"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/careloop/careloop/internal/errs"
)

var (
	ErrConfigurationValuesError = errors.New("configuration value error")
	ErrSessionTTLOutsideRange   = errors.New("session token TTL must be between 1 minute and 24 hours")
	ErrBatchSizeInvalid         = errors.New("migration batch size must be positive")
	ErrVersionOrderInvalid      = errors.New("constraint-tighten migration version must come after the prepare version")
	ErrEnvironmentMissing       = errors.New("migration environment name must be specified")
)

// Config holds all application configuration parameters
type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash"`

	Database  Database   `yaml:"database"`
	Redis     Redis      `yaml:"redis"`
	Blob      Blob       `yaml:"blob"`
	Session   Session    `yaml:"session"`
	Migration Migration  `yaml:"migration"`
	HTTP      HTTPServer `yaml:"http"`
	Audit     Audit      `yaml:"audit"`
}

func (c *Config) Validate() error {
	err := c.Session.Validate()
	if err != nil {
		return errs.Wrap(ErrConfigurationValuesError, err)
	}

	err = c.Migration.Validate()
	if err != nil {
		return errs.Wrap(ErrConfigurationValuesError, err)
	}

	return nil
}

// Database holds database config
type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Secret   commoncfg.SourceRef `yaml:"secret"`
	Migrator Migrator            `yaml:"migrator"`
}

// Migrator holds the goose migration directory.
type Migrator struct {
	Schema string `yaml:"schema" default:"migrations/schema"`
}

// Redis holds Redis client config, shared by the document store, the audit
// task queue and the migration runner lock.
type Redis struct {
	Host commoncfg.SourceRef `yaml:"host"`
	Port string              `yaml:"port"`
	ACL  RedisACL            `yaml:"acl"`
}

type RedisACL struct {
	Enabled  bool                `yaml:"enabled"`
	Password commoncfg.SourceRef `yaml:"password"`
	Username commoncfg.SourceRef `yaml:"username"`
}

// Blob holds object storage config
type Blob struct {
	Endpoint  string              `yaml:"endpoint"`
	Bucket    string              `yaml:"bucket"`
	UseSSL    bool                `yaml:"useSSL"`
	AccessKey commoncfg.SourceRef `yaml:"accessKey"`
	SecretKey commoncfg.SourceRef `yaml:"secretKey"`
}

// Session holds session token and context resolution config.
type Session struct {
	// SigningKey signs org-switch session tokens.
	SigningKey commoncfg.SourceRef `yaml:"signingKey"`

	// TokenTTL bounds the lifetime of issued session tokens.
	TokenTTL time.Duration `yaml:"tokenTTL" default:"15m"`

	// DirectoryTimeout bounds membership re-validation. A slow directory
	// fails closed, it never silently grants access.
	DirectoryTimeout time.Duration `yaml:"directoryTimeout" default:"2s"`
}

const (
	MinSessionTokenTTL = time.Minute
	MaxSessionTokenTTL = 24 * time.Hour
)

func (s *Session) Validate() error {
	if s.TokenTTL < MinSessionTokenTTL || s.TokenTTL > MaxSessionTokenTTL {
		return ErrSessionTTLOutsideRange
	}

	return nil
}

// Migration holds tenant migration coordinator config.
type Migration struct {
	// Environment names the deployment the single-runner lock is scoped to.
	Environment string `yaml:"environment"`

	// RootOrgName names the organization all pre-tenancy data is assigned
	// to during the relational backfill.
	RootOrgName string `yaml:"rootOrgName" default:"Primary Care Organization"`

	BatchSize int           `yaml:"batchSize" default:"100"`
	LockTTL   time.Duration `yaml:"lockTTL" default:"10m"`

	// PrepareVersion is the goose version at which nullable tenant id
	// columns exist; TightenVersion makes them non-nullable.
	PrepareVersion int64 `yaml:"prepareVersion" default:"2"`
	TightenVersion int64 `yaml:"tightenVersion" default:"3"`
}

func (m *Migration) Validate() error {
	if m.Environment == "" {
		return ErrEnvironmentMissing
	}

	if m.BatchSize <= 0 {
		return ErrBatchSizeInvalid
	}

	if m.TightenVersion <= m.PrepareVersion {
		return ErrVersionOrderInvalid
	}

	return nil
}

// HTTPServer holds http server config
type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Audit holds audit event delivery config.
type Audit struct {
	QueueName string `yaml:"queueName" default:"audit"`
}

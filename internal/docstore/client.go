package docstore

import (
	"errors"
	"net"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/redis/go-redis/v9"

	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/errs"
)

var (
	ErrLoadingRedisHost     = errors.New("error loading redis host")
	ErrLoadingRedisUsername = errors.New("error loading redis username")
	ErrLoadingRedisPassword = errors.New("error loading redis password")
)

// NewClient builds the shared Redis client. The document store, the audit
// sink and the migration runner lock all ride on the same connection options.
func NewClient(cfg config.Redis) (*redis.Client, error) {
	host, err := commoncfg.LoadValueFromSourceRef(cfg.Host)
	if err != nil {
		return nil, errs.Wrap(ErrLoadingRedisHost, err)
	}

	opts := &redis.Options{
		Addr: net.JoinHostPort(string(host), cfg.Port),
	}

	if cfg.ACL.Enabled {
		username, err := commoncfg.LoadValueFromSourceRef(cfg.ACL.Username)
		if err != nil {
			return nil, errs.Wrap(ErrLoadingRedisUsername, err)
		}

		password, err := commoncfg.LoadValueFromSourceRef(cfg.ACL.Password)
		if err != nil {
			return nil, errs.Wrap(ErrLoadingRedisPassword, err)
		}

		opts.Username = string(username)
		opts.Password = string(password)
	}

	return redis.NewClient(opts), nil
}

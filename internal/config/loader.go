package config

import (
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/samber/oops"
)

const (
	DefaultConfigPath1 = "/etc/careloop"
	DefaultConfigPath2 = "$HOME/.careloop"
)

func LoadConfig(opts ...commoncfg.Option) (*Config, error) {
	cfg := &Config{}

	options := make([]commoncfg.Option, 0, len(opts)+1)
	options = append(options,
		commoncfg.WithPaths(
			DefaultConfigPath1,
			DefaultConfigPath2,
			".",
		),
	)

	options = append(options, opts...)

	loader := commoncfg.NewLoader(
		cfg,
		options...,
	)

	err := loader.LoadConfig()
	if err != nil {
		return nil, oops.Wrapf(err, "failed to load config")
	}

	err = cfg.Validate()
	if err != nil {
		return nil, oops.Wrapf(err, "failed to validate config")
	}

	return cfg, nil
}

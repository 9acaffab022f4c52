package main

import (
	"context"
	"fmt"
	"sync"

	"mangadownloader/shared/infrastructure/config"
	"mangadownloader/shared/infrastructure/observability"
)

type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	configErr  error

	loadConfig func() (*config.Config, error)
}

func newCommandContext() *commandContext {
	return &commandContext{loadConfig: config.Load}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = c.loadConfig()
	})
	return c.config, c.configErr
}

func (c *commandContext) observability(ctx context.Context) (*observability.Observability, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	obs, err := observability.CreateObservability(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return obs, nil
}

package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"arcam/internal/api"
	"arcam/internal/config"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	verbose      *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		verbose:      verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiClient returns a client for the configured daemon bind.
func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	return client, nil
}

func (c *commandContext) resolvedLogLevel(cfg *config.Config) string {
	if c.verbose != nil && *c.verbose {
		return "debug"
	}
	if c.logLevelFlag != nil {
		if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
			return level
		}
	}
	if cfg != nil && strings.TrimSpace(cfg.Logging.Level) != "" {
		return cfg.Logging.Level
	}
	return "info"
}

func (c *commandContext) logDevelopment(cfg *config.Config) bool {
	return c.resolvedLogLevel(cfg) == "debug"
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dubsync/internal/api"
	"dubsync/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) apiBind() string {
	if c.apiFlag != nil {
		if bind := strings.TrimSpace(*c.apiFlag); bind != "" {
			return bind
		}
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	bind := c.apiBind()
	client, err := api.NewClient(bind, cfg.Paths.APIToken)
	if err != nil {
		return fmt.Errorf("daemon api address %q: %w", bind, err)
	}
	return wrapAPIError(fn(client), bind)
}

func wrapAPIError(err error, bind string) error {
	if err == nil {
		return nil
	}
	if api.IsAPIUnavailable(err) {
		return fmt.Errorf("connect to daemon at %s: not reachable; start it with `dubsync serve`", bind)
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return errors.New(statusErr.Message)
	}
	return err
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

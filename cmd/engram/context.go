package main

import (
	"strings"
	"sync"

	"engram/internal/config"
)

// commandContext lazily loads configuration once per CLI invocation and
// derives the daemon's API address from it, the way the daemon itself
// resolves its bind address.
type commandContext struct {
	bindFlag   *string
	configFlag *string
	jsonOutput *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(bindFlag, configFlag *string, jsonOutput *bool) *commandContext {
	return &commandContext{bindFlag: bindFlag, configFlag: configFlag, jsonOutput: jsonOutput}
}

// JSONMode returns true when the user passed --json.
func (c *commandContext) JSONMode() bool {
	return c != nil && c.jsonOutput != nil && *c.jsonOutput
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// apiBind resolves the daemon address: --bind flag, else the loaded config's
// api_bind, else the package default.
func (c *commandContext) apiBind() string {
	if c.bindFlag != nil {
		if bind := strings.TrimSpace(*c.bindFlag); bind != "" {
			return bind
		}
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		if bind := strings.TrimSpace(cfg.APIBind); bind != "" {
			return bind
		}
	}
	return "127.0.0.1:7487"
}

func (c *commandContext) client() *apiClient {
	return newAPIClient(c.apiBind())
}

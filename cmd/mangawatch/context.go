package main

import (
	"strings"
	"sync"

	"mangawatch/internal/api"
	"mangawatch/internal/config"
)

type commandContext struct {
	configFlag  *string
	addressFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, addressFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		addressFlag: addressFlag,
	}
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

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiAddress resolves the daemon address: the --address flag wins, otherwise
// the configured api_bind value.
func (c *commandContext) apiAddress() string {
	if c.addressFlag != nil {
		if addr := strings.TrimSpace(*c.addressFlag); addr != "" {
			return addr
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) apiClient() *api.Client {
	token := ""
	if cfg := c.configValue(); cfg != nil {
		token = cfg.Paths.APIToken
	}
	return api.NewClient(c.apiAddress(), token)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

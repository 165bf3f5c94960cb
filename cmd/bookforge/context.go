package main

import (
	"strings"
	"sync"

	"bookforge/internal/config"
	"bookforge/internal/daemonrun"
	"bookforge/internal/ipc"
)

type ipcClient = ipc.Client

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
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

func (c *commandContext) socketPath() (string, error) {
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) != "" {
		return strings.TrimSpace(*c.socketFlag), nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return daemonrun.SocketPath(cfg), nil
}

// dial connects to the running daemon. Callers own closing the client.
func (c *commandContext) dial() (*ipc.Client, error) {
	path, err := c.socketPath()
	if err != nil {
		return nil, err
	}
	return ipc.Dial(path)
}

// withClient runs fn against a daemon connection and handles cleanup.
func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"pmxfactory/internal/config"
	"pmxfactory/internal/ipc"
)

type globalFlags struct {
	socket string
	config string
	json   bool
}

// commandContext is shared by every subcommand. The config is loaded at most
// once per invocation.
type commandContext struct {
	flags globalFlags

	loadOnce sync.Once
	cfg      *config.Config
	loadErr  error
}

func (c *commandContext) configPath() string {
	return strings.TrimSpace(c.flags.config)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.loadOnce.Do(func() {
		c.cfg, _, _, c.loadErr = config.Load(c.configPath())
	})
	return c.cfg, c.loadErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags.json
}

// socketPath prefers --socket, then the loaded config, then the default
// log directory.
func (c *commandContext) socketPath() string {
	if socket := strings.TrimSpace(c.flags.socket); socket != "" {
		return socket
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.SocketPath()
	}
	fallback := config.Default()
	if dir, err := config.ExpandPath(fallback.Paths.LogDir); err == nil {
		fallback.Paths.LogDir = dir
	}
	return fallback.SocketPath()
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return wrapDialError(err, socket)
	}
	defer client.Close()
	return fn(client)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOENT):
		return fmt.Errorf("connect to daemon: socket %s not found; run `pmxfactory daemon` first", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; is the daemon still running?", filepath.Base(socket))
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

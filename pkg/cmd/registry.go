// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	switchnode "github.com/dukex/flowroute/pkg/nodes/switch"
	"github.com/dukex/flowroute/pkg/registry"
)

func registerComponentPlugins(reg *registry.Registry, pluginsPath string) error {
	components, err := reg.LoadComponentPlugins(pluginsPath)
	if err != nil {
		return fmt.Errorf("failed to load component plugins: %w", err)
	}

	for _, plugin := range components {
		reg.RegisterComponent(plugin.Namespace(), plugin)
	}

	return nil
}

// NewRegistry creates a registry with the built-in components, the switch factory and
// every component plugin found under pluginsPath. Plugins may replace built-ins.
func NewRegistry(log *slog.Logger, pluginsPath string, opts ...switchnode.Option) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	reg.RegisterDefaultNodes(opts...)

	if pluginsPath == "" {
		return reg, nil
	}

	if err := registerComponentPlugins(reg, pluginsPath); err != nil {
		return nil, err
	}

	return reg, nil
}

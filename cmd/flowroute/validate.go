package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dukex/flowroute/pkg/cmd"
	"github.com/dukex/flowroute/pkg/log"
	"github.com/dukex/flowroute/pkg/models"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate a switch configuration and print its signature",
		Flags:   commonFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("flowroute").With("action", "validate")

			fileConfig, err := LoadConfig(command.String("config"))
			if err != nil {
				return err
			}

			reg, err := cmd.NewRegistry(logger, command.String("plugins-path"))
			if err != nil {
				return err
			}

			_, sig, err := prepareSwitch(ctx, reg, fileConfig)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Configuration is valid", "id", fileConfig.ID)

			return printSignature(os.Stdout, sig)
		},
	}
}

func printSignature(w io.Writer, sig models.OperationSignature) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(sig); err != nil {
		return fmt.Errorf("failed to encode signature: %w", err)
	}

	return encoder.Close()
}

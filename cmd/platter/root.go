package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"platter/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
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

func newRootCommand() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "platter",
		Short:         "Vinyl catalog client",
		Long:          "platter manages a vinyl record catalog served by the platterd daemon: records, tracklists, cover embeddings, and photo-based cover matching.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to configuration file")

	ctx := &commandContext{configFlag: &configFlag}

	root.AddCommand(newStatusCommand(ctx))
	root.AddCommand(newRecordsCommand(ctx))
	root.AddCommand(newEmbeddingsCommand(ctx))
	root.AddCommand(newMatchCommand(ctx))
	root.AddCommand(newConfigCommand())

	return root
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aydenstechdungeon/clicker"
	"github.com/aydenstechdungeon/clicker/logging"
	"github.com/aydenstechdungeon/clicker/plugin"
	"github.com/aydenstechdungeon/clicker/plugin/tailwind"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// cli carries state shared by every command once flags are parsed.
type cli struct {
	v        *viper.Viper
	config   clicker.Config
	logger   *logrus.Logger
	registry *plugin.Registry
	tailwind *tailwind.TailwindPlugin
}

func newRootCommand() *cobra.Command {
	c := &cli{v: viper.New(), registry: plugin.NewRegistry()}

	root := &cobra.Command{
		Use:               "clicker",
		Short:             "htmx click counter",
		Version:           clicker.Version,
		PersistentPreRunE: c.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetVersionTemplate("clicker v{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is ./clicker.yaml)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	c.bind("config", flags.Lookup("config"))
	c.bind("log.level", flags.Lookup("log-level"))
	c.bind("log.format", flags.Lookup("log-format"))

	root.AddCommand(c.serveCommand(), c.buildCommand(), c.watchCommand(), c.versionCommand())
	for _, cmd := range c.pluginCommands() {
		root.AddCommand(cmd)
	}
	return root
}

// setup loads configuration and registers the built-in plugins.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := clicker.LoadConfig(c.v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	cfg.Logger = logger
	c.config = cfg
	c.logger = logger

	c.tailwind = tailwind.NewWithConfig(&cfg.Tailwind, logger)
	return c.registry.Register(c.tailwind)
}

func (c *cli) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.String("addr", ":8000", "listen address")
	flags.String("static-dir", "./static", "directory served under the static prefix")
	flags.Bool("dev", false, "development mode: stack traces and stylesheet watcher")
	flags.Bool("live-updates", true, "push counter changes to open pages")
	flags.String("pubsub", clicker.BackendMemory, "counter event backend: memory or redis")
	flags.String("redis-addr", "localhost:6379", "redis address for the redis backend")
	c.bind("addr", flags.Lookup("addr"))
	c.bind("static_dir", flags.Lookup("static-dir"))
	c.bind("dev", flags.Lookup("dev"))
	c.bind("live_updates", flags.Lookup("live-updates"))
	c.bind("pubsub.backend", flags.Lookup("pubsub"))
	c.bind("pubsub.redis_addr", flags.Lookup("redis-addr"))
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	hookData := map[string]interface{}{"dev": c.config.DevMode}
	if err := c.registry.TriggerHook(ctx, plugin.BeforeServe, hookData); err != nil {
		return err
	}
	defer func() {
		if err := c.registry.TriggerHook(context.Background(), plugin.AfterServe, hookData); err != nil {
			c.logger.WithError(err).Warn("after serve hook failed")
		}
	}()

	app, err := clicker.New(c.config)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run() }()

	select {
	case err := <-errCh:
		c.logger.WithError(err).WithField("addr", c.config.Addr).Error("server failed")
		return fmt.Errorf("listen on %s: %w", c.config.Addr, err)
	case <-ctx.Done():
	}

	c.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func (c *cli) buildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Compile the stylesheet; fails when the compiler does",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			data := map[string]interface{}{"config": c.config}
			if err := c.registry.TriggerHook(ctx, plugin.BeforeBuild, data); err != nil {
				var compileErr *tailwind.CompileError
				if errors.As(err, &compileErr) {
					c.logger.WithField("exit_code", compileErr.ExitCode).Error("stylesheet compilation failed")
				}
				return err
			}
			if err := c.registry.TriggerHook(ctx, plugin.AfterBuild, data); err != nil {
				return err
			}
			c.logger.Info("build complete")
			return nil
		},
	}
}

func (c *cli) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Compile the stylesheet and recompile on changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := c.tailwind.Compile(ctx); err != nil {
				c.logger.WithError(err).Error("initial compile failed")
			}
			return c.tailwind.Watch(ctx)
		},
	}
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the clicker version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "clicker v%s\n", clicker.Version)
			return err
		},
	}
}

// pluginCommands exposes plugin commands as subcommands. Names come from a
// default-configured plugin; execution goes through the registry so the
// loaded configuration applies.
func (c *cli) pluginCommands() []*cobra.Command {
	var cmds []*cobra.Command
	for _, pc := range tailwind.New(nil).Commands() {
		name := pc.Name
		cmd := &cobra.Command{
			Use:   name,
			Short: pc.Description,
			RunE: func(cmd *cobra.Command, args []string) error {
				found, err := c.registry.RunCommand(cmd.Context(), name, args)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("unknown command %s", name)
				}
				return nil
			},
		}
		if pc.Alias != "" {
			cmd.Aliases = []string{pc.Alias}
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// bind ties a flag to a config key. Lookup results come from flags defined
// just above, so a nil flag is a programming error.
func (c *cli) bind(key string, flag *pflag.Flag) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

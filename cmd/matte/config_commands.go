package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"matte/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPathFlag())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			source := "defaults"
			if exists {
				source = "file"
			}
			fmt.Fprintf(out, "Config path: %s (%s)\n\n", path, source)

			fmt.Fprintln(out, "[paths]")
			fmt.Fprintf(out, "  log_dir      = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "  journal_path = %s\n", cfg.Paths.JournalPath)
			fmt.Fprintf(out, "  lock_dir     = %s\n", cfg.Paths.LockDir)

			fmt.Fprintln(out, "[processing]")
			fmt.Fprintf(out, "  recursive      = %s\n", yesNo(cfg.Processing.Recursive))
			fmt.Fprintf(out, "  keep_structure = %s\n", yesNo(cfg.Processing.KeepStructure))
			fmt.Fprintf(out, "  force          = %s\n", yesNo(cfg.Processing.Force))
			fmt.Fprintf(out, "  jobs           = %s\n", jobsLabel(cfg.Processing.Jobs))
			fmt.Fprintf(out, "  max_size       = %s\n", maxSizeLabel(cfg.Processing.MaxSize))

			fmt.Fprintln(out, "[backend]")
			fmt.Fprintf(out, "  kind            = %s\n", cfg.Backend.Kind)
			fmt.Fprintf(out, "  binary          = %s\n", cfg.Backend.Binary)
			fmt.Fprintf(out, "  model           = %s\n", cfg.Backend.Model)
			if cfg.Backend.ServerURL != "" {
				fmt.Fprintf(out, "  server_url      = %s\n", cfg.Backend.ServerURL)
			}
			fmt.Fprintf(out, "  timeout_seconds = %d\n", cfg.Backend.TimeoutSeconds)

			fmt.Fprintln(out, "[notifications]")
			fmt.Fprintf(out, "  ntfy_topic configured = %s\n", yesNo(strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""))

			fmt.Fprintln(out, "[watch]")
			fmt.Fprintf(out, "  debounce_ms = %d\n", cfg.Watch.DebounceMS)

			fmt.Fprintln(out, "[logging]")
			fmt.Fprintf(out, "  format = %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "  level  = %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

func jobsLabel(jobs int) string {
	if jobs <= 0 {
		return "auto (min(8, CPU count))"
	}
	return strconv.Itoa(jobs)
}

func maxSizeLabel(maxSize int) string {
	if maxSize <= 0 {
		return "disabled"
	}
	return strconv.Itoa(maxSize)
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.configPathFlag())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to choose a backend and model before running matte.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

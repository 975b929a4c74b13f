package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexviet/mdconvert/convcache"
	"github.com/lexviet/mdconvert/convert"
	"github.com/lexviet/mdconvert/history"
	"github.com/lexviet/mdconvert/vnlegal"
)

const version = "0.3.0"

// CLI wires the cobra command tree.
type CLI struct {
	rootCmd *cobra.Command
}

func newCLI() *CLI {
	rootCmd := &cobra.Command{
		Use:           "mdconvert",
		Short:         "Convert documents to Markdown with Vietnamese legal normalization",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	c := &CLI{rootCmd: rootCmd}
	rootCmd.AddCommand(c.newConvertCmd())
	rootCmd.AddCommand(c.newLintCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

func (c *CLI) loadConfig(cmd *cobra.Command) (*convert.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := convert.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.Logger = newLogger(verbose)
	return cfg, nil
}

func (c *CLI) newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [files or directories...]",
		Short: "Convert documents to Markdown",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			noCache, _ := cmd.Flags().GetBool("no-cache")
			if out, _ := cmd.Flags().GetString("output"); out != "" {
				cfg.OutputDir = out
			}

			paths, err := collectInputs(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no supported documents found")
			}

			var opts []convert.Option
			if !noCache {
				opts = append(opts, convert.WithCache(convcache.New(cfg.CacheDir, cfg.Logger)))
			}
			if cfg.HistoryDB != "" {
				log, err := history.Open(cfg.HistoryDB, cfg.Logger)
				if err != nil {
					cfg.Logger.Warn("history disabled", "error", err)
				} else {
					defer log.Close()
					opts = append(opts, convert.WithRecorder(log))
				}
			}

			conv := convert.New(cfg, convert.DefaultProviders(cfg), opts...)
			results := conv.ConvertAll(cmd.Context(), paths)

			failed := 0
			for _, res := range results {
				switch res.Status {
				case convert.StatusFailed:
					failed++
					fmt.Printf("FAIL    %s: %s\n", res.SourcePath, res.Error)
				case convert.StatusPartial:
					fmt.Printf("PARTIAL %s -> %s (%s, score %d)\n",
						res.SourcePath, res.OutputPath, res.ToolUsed, res.QualityScore)
				default:
					fmt.Printf("OK      %s -> %s (%s, score %d)\n",
						res.SourcePath, res.OutputPath, res.ToolUsed, res.QualityScore)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d conversions failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output directory (default: beside each source)")
	cmd.Flags().Bool("no-cache", false, "Bypass the conversion cache")
	return cmd
}

func (c *CLI) newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint [files or directories...]",
		Short: "Lint Markdown against the Vietnamese legal structure rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fix, _ := cmd.Flags().GetBool("fix")

			files, err := collectMarkdown(args)
			if err != nil {
				return err
			}

			total := 0
			for _, file := range files {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}

				var issues []vnlegal.Issue
				if fix {
					fixed, found := vnlegal.LintFix(string(data))
					issues = found
					if fixed != string(data) {
						if err := os.WriteFile(file, []byte(fixed), 0o644); err != nil {
							return fmt.Errorf("write %s: %w", file, err)
						}
					}
				} else {
					issues = vnlegal.Lint(string(data))
				}

				for _, issue := range issues {
					fmt.Printf("%s:%d: %s [%s]\n", file, issue.Line, issue.Message, issue.Rule)
				}
				total += len(issues)
			}

			if total > 0 && !fix {
				return fmt.Errorf("%d issues found", total)
			}
			return nil
		},
	}
	cmd.Flags().Bool("fix", false, "Apply auto-fixes where rules allow it")
	return cmd
}

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the conversion cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			s := convcache.New(cfg.CacheDir, cfg.Logger).Stats()
			fmt.Printf("entries: %d\nsize: %d bytes\ndir: %s\n", s.Entries, s.TotalSizeBytes, s.Dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached conversion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			n := convcache.New(cfg.CacheDir, cfg.Logger).Clear()
			fmt.Printf("cleared %d entries\n", n)
			return nil
		},
	})

	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mdconvert version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "mdconvert "+version)
		},
	}
}

// collectInputs expands files and directories into supported document paths.
func collectInputs(args []string) ([]string, error) {
	return collect(args, convert.SupportedExtensions())
}

// collectMarkdown expands files and directories into .md paths.
func collectMarkdown(args []string) ([]string, error) {
	return collect(args, []string{".md", ".markdown"})
}

func collect(args, exts []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

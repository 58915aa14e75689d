package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"schemaextract/internal/db"
	_ "schemaextract/internal/db/extractors"
	"schemaextract/internal/engine"
	"schemaextract/internal/logger"
	"schemaextract/internal/schema"
	"schemaextract/pkg/config"
)

var (
	cfgPath string
	appCfg  config.AppConfig

	ocr bool

	override config.Descriptor
)

// result is what parse and introspect print.
type result struct {
	Structure schema.DatabaseStructure `json:"structure"`
	Warnings  []schema.Warning         `json:"warnings"`
}

var rootCmd = &cobra.Command{
	Use:           "schemaextract",
	Short:         "Extract database structures from text or live databases",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if c, err := config.LoadFile(cfgPath); err == nil {
			appCfg = c
		} else {
			if cmd.Flags().Changed("config") {
				logger.Error("error reading config file: %v", err)
			}
			appCfg = config.Default()
		}
		appCfg.ApplyEnv(".env")
		logger.SetLevel(appCfg.Log.Level)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a textual description (stdin when no file is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if len(args) == 1 {
			raw, err = os.ReadFile(args[0])
		} else {
			raw, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		e := engine.New(appCfg)
		parse := e.FromText
		if ocr {
			parse = e.FromOCR
		}
		s, warnings, err := parse(string(raw))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result{Structure: s, Warnings: warnings})
	},
}

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Read the structure of a live database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()
		s, warnings, err := engine.New(appCfg).FromDatabase(ctx, descriptor(cmd))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result{Structure: s, Warnings: warnings})
	},
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that a database is reachable and count its tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()
		res := engine.New(appCfg).TestConnection(ctx, descriptor(cmd))
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("connection test failed")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", filepath.Join(".", "configs", "example.yaml"), "path to config YAML")

	parseCmd.Flags().BoolVar(&ocr, "ocr", false, "input was produced by OCR")

	for _, c := range []*cobra.Command{introspectCmd, testConnectionCmd} {
		c.Flags().StringVar(&override.DBType, "db-type", "", fmt.Sprintf("database type %v", db.RegisteredDialects()))
		c.Flags().StringVar(&override.Host, "host", "", "database host")
		c.Flags().IntVar(&override.Port, "port", 0, "database port (default: the dialect's port)")
		c.Flags().StringVar(&override.Username, "user", "", "database user")
		c.Flags().StringVar(&override.Password, "password", "", "database password")
		c.Flags().StringVar(&override.Database, "database", "", "database name, or file path for sqlite")
		c.Flags().IntVar(&override.ConnectionTimeout, "timeout", 0, "connect timeout in seconds")
		c.Flags().StringToStringVar(&override.AdditionalParams, "param", nil, "additional driver parameter key=value")
	}

	rootCmd.AddCommand(parseCmd, introspectCmd, testConnectionCmd)
}

// interruptible derives a context from the command's that is cancelled on
// Ctrl-C, so running catalog queries are abandoned.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt)
}

// descriptor returns the configured database with flag overrides applied.
func descriptor(cmd *cobra.Command) config.Descriptor {
	d := appCfg.Database
	f := cmd.Flags()
	if f.Changed("db-type") {
		d.DBType = override.DBType
	}
	if f.Changed("host") {
		d.Host = override.Host
	}
	if f.Changed("port") {
		d.Port = override.Port
	}
	if f.Changed("user") {
		d.Username = override.Username
	}
	if f.Changed("password") {
		d.Password = override.Password
	}
	if f.Changed("database") {
		d.Database = override.Database
	}
	if f.Changed("timeout") {
		d.ConnectionTimeout = override.ConnectionTimeout
	}
	if f.Changed("param") {
		params := make(map[string]string, len(d.AdditionalParams)+len(override.AdditionalParams))
		for k, v := range d.AdditionalParams {
			params[k] = v
		}
		for k, v := range override.AdditionalParams {
			params[k] = v
		}
		d.AdditionalParams = params
	}
	return d
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

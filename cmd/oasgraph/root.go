package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hanpama/oasgraph/internal/bridge"
	"github.com/hanpama/oasgraph/internal/config"
	"github.com/hanpama/oasgraph/internal/oas"
)

const programName = "oasgraph"

var ErrUsage = errors.New("usage error")

type usageError struct{ msg string }

func (e usageError) Error() string        { return e.msg }
func (e usageError) Is(target error) bool { return target == ErrUsage }

// NewRootCmd builds the command tree. Tests drive it through SetArgs.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           programName,
		Short:         "Serve an OpenAPI or Swagger described API as GraphQL",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	flagErrors := func(c *cobra.Command, err error) error {
		return usageError{msg: fmt.Sprintf("%v\n\n%s", err, c.UsageString())}
	}
	cmd.SetFlagErrorFunc(flagErrors)

	pf := cmd.PersistentFlags()
	pf.StringP("config", "c", "", "YAML config file (env "+config.EnvPrefix(programName)+"_CONFIG_FILE)")
	pf.StringP("document", "d", "", "Path or URL of the OpenAPI/Swagger document")
	pf.Bool("strict", false, "Fail on document validation errors")
	pf.String("backend-url", "", "Base URL of the API, overriding the document servers")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")

	for _, sub := range []*cobra.Command{newServeCmd(), newSDLCmd()} {
		sub.SetFlagErrorFunc(flagErrors)
		cmd.AddCommand(sub)
	}
	return cmd
}

// resolveConfig loads file and environment settings, then applies flags the
// user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(programName, strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError{msg: err.Error()}
	}
	return cfg, nil
}

func applyFlagOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	strs := map[string]*string{
		"document":      &cfg.Document,
		"backend-url":   &cfg.BackendBaseURL,
		"log-level":     &cfg.LogLevel,
		"addr":          &cfg.ListenAddr,
		"otel-endpoint": &cfg.OtelEndpoint,
	}
	for name, dst := range strs {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(v)
	}
	bools := map[string]*bool{
		"strict":        &cfg.StrictValidate,
		"pretty":        &cfg.Pretty,
		"introspection": &cfg.Introspection,
	}
	for name, dst := range bools {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		v, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.RequestTimeout = v
	}
	if flags.Lookup("forward-header") != nil && flags.Changed("forward-header") {
		v, err := flags.GetStringSlice("forward-header")
		if err != nil {
			return err
		}
		cfg.ForwardHeaders = v
	}
	return nil
}

// buildSchema loads the document and generates the executable schema.
func buildSchema(ctx context.Context, cfg *config.Config, backend bridge.Backend, logger *slog.Logger) (*bridge.Executable, error) {
	doc, err := oas.Load(ctx, cfg.Document,
		oas.WithStrictValidation(cfg.StrictValidate),
		oas.WithFetchRetry(cfg.RetryAttempts, cfg.RetryDelay),
		oas.WithLoadLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	extract := []oas.ExtractOption{oas.WithExtractLogger(logger)}
	if cfg.BackendBaseURL != "" {
		extract = append(extract, oas.WithBaseURL(cfg.BackendBaseURL))
	}
	ops := oas.Operations(doc, extract...)

	description := ""
	if doc.Info != nil {
		description = doc.Info.Description
	}
	exe, err := bridge.CreateSchema(ops, backend, bridge.WithLogger(logger), bridge.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Info("schema ready", "document", cfg.Document, "queries", exe.Queries.Len(), "mutations", exe.Mutations.Len())
	return exe, nil
}

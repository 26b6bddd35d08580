package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/schema"
)

func newSDLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sdl",
		Short: "Print the generated GraphQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			exe, err := buildSchema(ctx, cfg, unavailable, newLogger(cfg))
			if err != nil {
				return err
			}
			sdl := schema.Render(exe.Schema)
			if out == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), sdl)
				return err
			}
			return os.WriteFile(out, []byte(sdl), 0o644)
		},
	}
	cmd.Flags().StringP("out", "o", "", "Write the SDL to a file instead of stdout")
	return cmd
}

// unavailable backs schemas that are only rendered, never executed.
func unavailable(ctx context.Context, req *oas.RequestOptions) (any, error) {
	return nil, fmt.Errorf("%s %s: no backend configured", req.Method, req.Path)
}

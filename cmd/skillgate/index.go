package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/agent/tools"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed the product catalog for vector search",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := ai.NewConfigFromProfile(instanceProfile)
			if !cfg.Embedding.Enabled {
				return errors.New("embedding is disabled; set --embedding-enabled")
			}
			embedder, err := ai.NewEmbeddingService(&cfg.Embedding)
			if err != nil {
				return errors.Wrap(err, "failed to create embedding service")
			}

			storeInstance, err := openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()

			n, err := tools.IndexProducts(ctx, storeInstance, embedder, cfg.Embedding.Model)
			if err != nil {
				return errors.Wrapf(err, "indexed %d products before failing", n)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d products with %s\n", n, cfg.Embedding.Model)
			return nil
		},
	}
}

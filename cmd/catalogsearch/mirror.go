package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/catalogsearch/internal/index"
	"github.com/kailas-cloud/catalogsearch/internal/repository/vectors"
)

func newMirrorCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Publish the index snapshot into the Valkey/Redis vector index",
		Long: `mirror reads meta.json and faiss.index or vectors.npy from index.dir and writes the vectors
into the FT index used by the valkey backend. It is a no-op when the stored
fingerprint and document count already match the snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, root.env)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store == nil {
				return errors.New("mirror requires database.addrs")
			}
			if !a.store.SupportsVectorSearch(ctx) {
				return errors.New("database does not support FT vector search")
			}

			art, err := index.ReadArtifacts(a.cfg.Index.Dir, a.logger)
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			repo := a.vectors
			if repo == nil {
				repo = vectors.New(a.store, a.cfg.Index.KeyPrefix, a.logger)
			}
			wrote, err := repo.Mirror(ctx, art)
			if err != nil {
				return fmt.Errorf("mirror snapshot: %w", err)
			}

			a.logger.Info("mirror finished",
				zap.String("index", repo.IndexName()),
				zap.Int("vectors", art.Vectors.Rows),
				zap.Bool("written", wrote),
			)
			state := "up to date"
			if wrote {
				state = "written"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d vectors %s\n", repo.IndexName(), art.Vectors.Rows, state)
			return nil
		},
	}
}

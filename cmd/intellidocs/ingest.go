package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rutvikswami/Intellidocs/config"
	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/document"
	"github.com/rutvikswami/Intellidocs/internal/store"
	"github.com/rutvikswami/Intellidocs/provider"
)

// newIngestCmd batch-loads files into the Postgres vector backend so a
// corpus survives restarts without going through the HTTP API.
func newIngestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Embed documents into the postgres vector backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(*configPath)
			if !cfg.Storage.Postgres.Configured() {
				return fmt.Errorf("ingest requires storage.postgres configuration")
			}
			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			defer st.Close()

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			ck, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
			if err != nil {
				return err
			}
			loader := document.NewLoader()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				doc, err := loader.Load(filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				chunks := ck.Split(doc.Name, doc.Text)
				texts := make([]string, len(chunks))
				for i, c := range chunks {
					texts[i] = c.Text
				}
				vectors, err := llm.CreateEmbedding(ctx, texts)
				if err != nil {
					return fmt.Errorf("embed %s: %w", path, err)
				}
				records := make([]store.ChunkRecord, len(chunks))
				for i, c := range chunks {
					records[i] = store.ChunkRecord{
						ID:       c.ID,
						Document: c.Document,
						Index:    c.Index,
						Text:     c.Text,
						Vector:   vectors[i],
					}
				}
				if err := st.InsertDocumentChunks(ctx, doc.Name, records); err != nil {
					return fmt.Errorf("store %s: %w", path, err)
				}
				fmt.Printf("ingested %s: %d chunks\n", doc.Name, len(chunks))
			}
			return nil
		},
	}
}

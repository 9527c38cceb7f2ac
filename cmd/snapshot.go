package main

import (
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"labourlaw-rag/internal/helper"
	"labourlaw-rag/internal/jurisdiction"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a jurisdiction's index to a snapshot file",
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a snapshot file into a jurisdiction's index",
	RunE:  runImport,
}

var (
	snapshotJurisdiction string
	snapshotFile         string
)

func init() {
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVarP(&snapshotJurisdiction, "jurisdiction", "j", "", "Jurisdiction of the index")
		c.Flags().StringVarP(&snapshotFile, "file", "f", "", "Snapshot file path")
		_ = c.MarkFlagRequired("jurisdiction")
		_ = c.MarkFlagRequired("file")
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	j, err := jurisdiction.Parse(snapshotJurisdiction)
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	if err := helper.CreateFolder(filepath.Dir(snapshotFile)); err != nil {
		return err
	}
	if err := store.Export(j, snapshotFile); err != nil {
		return err
	}
	log.Info().Str("index", j.IndexName()).Str("file", snapshotFile).Msg("Exported snapshot")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	j, err := jurisdiction.Parse(snapshotJurisdiction)
	if err != nil {
		return err
	}
	if err := helper.CreateFolder(cfg.RAG.IndexDir); err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	n, err := store.Import(cmd.Context(), j, snapshotFile)
	if err != nil {
		return err
	}
	log.Info().Str("index", j.IndexName()).Int("documents", n).Msg("Import complete")
	return nil
}

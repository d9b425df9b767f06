package subcmd

import (
	"context"
	"fmt"
	"time"

	"toymanifest/impl/config"
	"toymanifest/impl/importer"
	"toymanifest/impl/store"
)

// Import validates and stores the manifest file, or each manifest file in the directory,
// named by the import path. The server should not be running against the same data path.
func Import(ctx context.Context) error {
	st, err := store.Open(ctx, config.GetStoreType(), config.GetDataPath(), int(config.GetPartitionHorizon()))
	if err != nil {
		return err
	}
	defer st.Close()
	if _, err := st.EnsurePartitions(ctx, time.Now()); err != nil {
		return err
	}
	cnt, err := importer.ImportDir(ctx, config.GetImportPath(), st)
	fmt.Printf("imported %d manifest(s) from %s\n", cnt, config.GetImportPath())
	return err
}

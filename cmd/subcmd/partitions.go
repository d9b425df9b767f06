package subcmd

import (
	"context"
	"fmt"
	"time"

	"toymanifest/impl/config"
	"toymanifest/impl/store"
)

// dateFormat is how partition bounds are listed
const dateFormat = "2006-01-02"

// Partitions creates the partitions for the current week and the configured horizon, then
// lists every partition with its record count. The server should not be running against
// the same data path since the database file is locked by the server.
func Partitions(ctx context.Context) error {
	st, err := store.Open(ctx, config.GetStoreType(), config.GetDataPath(), int(config.GetPartitionHorizon()))
	if err != nil {
		return err
	}
	defer st.Close()
	created, err := st.EnsurePartitions(ctx, time.Now())
	if err != nil {
		return err
	}
	stats, err := st.Partitions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("created %d partition(s)\n", len(created))
	for _, p := range stats {
		fmt.Printf("%-24s %s %s %d\n", p.Name, p.Start.Format(dateFormat), p.End.Format(dateFormat), p.Records)
	}
	return nil
}

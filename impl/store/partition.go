package store

import (
	"fmt"
	"time"
)

// DefaultHorizon is the number of weeks after the current one that
// EnsurePartitions creates partitions for.
const DefaultHorizon = 12

const week = 7 * 24 * time.Hour

// Partition is one week of records: [Start, End) with Start a Monday 00:00 UTC.
// The name is the primary key.
type Partition struct {
	Name  string
	Start time.Time `bstore:"nonzero,index"`
	End   time.Time `bstore:"nonzero"`
}

// PartitionStats is a partition with the number of records assigned to it.
type PartitionStats struct {
	Partition
	Records int
}

// Contains reports whether t falls in the partition.
func (p Partition) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// WeekStart returns Monday 00:00 UTC of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// PartitionName returns the name of the partition covering t, which is
// manifest_layers_<iso week>_<iso year>.
func PartitionName(t time.Time) string {
	year, wk := t.UTC().ISOWeek()
	return fmt.Sprintf("manifest_layers_%d_%d", wk, year)
}

// PartitionFor returns the partition covering t.
func PartitionFor(t time.Time) Partition {
	start := WeekStart(t)
	return Partition{
		Name:  PartitionName(start),
		Start: start,
		End:   start.Add(week),
	}
}

// partitionWindow returns the partition covering now followed by horizon more.
func partitionWindow(now time.Time, horizon int) []Partition {
	if horizon < 0 {
		horizon = 0
	}
	start := WeekStart(now)
	parts := make([]Partition, 0, horizon+1)
	for i := 0; i <= horizon; i++ {
		parts = append(parts, PartitionFor(start.Add(time.Duration(i)*week)))
	}
	return parts
}

func missingPartition(t time.Time) error {
	return &StorageError{
		Op:  "insert",
		Err: fmt.Errorf("%w: %s (%s) does not exist", ErrNoPartition, PartitionName(t), WeekStart(t).Format(time.DateOnly)),
	}
}

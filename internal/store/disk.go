package store

import "os"

// DiskUsageBytes returns the on-disk footprint of the database, including the
// WAL and shared-memory sidecar files when present. Missing files contribute 0.
func (s *SQLiteStore) DiskUsageBytes() int64 {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total
}

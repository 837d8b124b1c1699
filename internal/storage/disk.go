package storage

import "os"

// DiskUsage returns the on-disk footprint of the database: the main file plus
// the -wal and -shm sidecars that WAL journal mode keeps next to it. Sidecars
// that have not been created yet contribute zero.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	var total int64
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

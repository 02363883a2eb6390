package store

import (
	"fmt"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/config"
)

// Ensure both drivers implement Repository.
var (
	_ Repository = (*SQLiteStore)(nil)
	_ Repository = (*BoltStore)(nil)
)

// Open returns the repository selected by driver.
func Open(driver, path string) (Repository, error) {
	switch driver {
	case config.StoreDriverSQLite:
		s, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreDriverBolt:
		s, err := NewBolt(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

package config

import "fmt"

// MigrateEntry upgrades e in place to EntryVersionCurrent and reports whether
// anything changed. Version 1 entries predate API v2 support and only ever
// talked to API v1. Entries with no version are treated the same unless they
// already name an API version.
func MigrateEntry(e *EntryData) (bool, error) {
	switch {
	case e.Version == EntryVersionCurrent:
		return false, nil
	case e.Version > EntryVersionCurrent:
		return false, fmt.Errorf("entry version %d is newer than supported version %d", e.Version, EntryVersionCurrent)
	case e.Version == EntryVersionLegacy || e.APIVersion == "":
		e.APIVersion = APIVersionV1
	}
	e.Version = EntryVersionCurrent
	return true, nil
}

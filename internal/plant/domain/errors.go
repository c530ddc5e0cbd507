package plant

import "errors"

var (
	// ErrNoData is returned when required plant, history or ticket data is not loaded.
	ErrNoData = errors.New("plant: no data")
	// ErrDataFolderNotConfigured is returned when a reload runs before a folder is set.
	ErrDataFolderNotConfigured = errors.New("plant: data folder not configured")
	// ErrMissingColumns is returned when a source file lacks required columns.
	ErrMissingColumns = errors.New("plant: missing columns")
)

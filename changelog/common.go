package changelog

import (
	"errors"
)

var ErrEmptyTableNameSupplied = errors.New("empty change log table name supplied")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrQueryingChangeRecordsFailed = errors.New("querying change records failed")
var ErrScanningDBRowFailed = errors.New("scanning db row failed")
var ErrBuildingQueryFailed = errors.New("building query failed")

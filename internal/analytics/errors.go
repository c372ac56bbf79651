package analytics

import "codeberg.org/mutker/dustctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("analytics_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("analytics_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("analytics_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("analytics_schema_migration_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("analytics_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// Record Errors
	ErrInvalidRecord = errors.ErrorCode("analytics_invalid_record")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)

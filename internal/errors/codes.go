package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrUnknownProfile  ErrorCode = "unknown_profile"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Hardware errors
	ErrFanCommandFailed  ErrorCode = "fan_command_failed"
	ErrFanInvalidCommand ErrorCode = "fan_invalid_command"
	ErrSensorStale       ErrorCode = "sensor_stale"

	// Control loop errors
	ErrPollPanic       ErrorCode = "poll_panic"
	ErrHandlerPanic    ErrorCode = "handler_panic"
	ErrTrailingAborted ErrorCode = "trailing_extraction_aborted"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Codes whose failures are expected to recover without intervention.
var transientCodes = map[ErrorCode]bool{
	ErrFanCommandFailed: true,
	ErrSensorStale:      true,
	ErrUnavailable:      true,
	ErrTimeout:          true,
}

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrReadConfig:        "Failed to read configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrInvalidInterval:   "Invalid interval value",
	ErrUnknownProfile:    "Unknown device profile",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrFanCommandFailed:  "Fan command failed after retries",
	ErrFanInvalidCommand: "Invalid fan command",
	ErrSensorStale:       "Can't read dust value",
	ErrPollPanic:         "Unexpected failure in dust poll",
	ErrHandlerPanic:      "Unexpected failure in event handler",
	ErrTrailingAborted:   "Trailing extraction aborted",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

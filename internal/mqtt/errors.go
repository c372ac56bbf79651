package mqtt

import "codeberg.org/mutker/dustctl/internal/errors"

const (
	ErrConnect       = errors.ErrorCode("mqtt_connect_failed")
	ErrSubscribe     = errors.ErrorCode("mqtt_subscribe_failed")
	ErrPublish       = errors.ErrorCode("mqtt_publish_failed")
	ErrInvalidConfig = errors.ErrorCode("mqtt_invalid_config")
)

package status

import "codeberg.org/mutker/dustctl/internal/errors"

const (
	ErrEncode        = errors.ErrorCode("status_encode_failed")
	ErrPublishFailed = errors.ErrorCode("status_publish_failed")
)

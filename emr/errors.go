package emr

import (
	"errors"

	"github.com/aws/smithy-go"
)

// IsInvalidRequest reports whether the service rejected the call outright,
// which for this API almost always means the cluster id no longer exists.
// Transport failures and throttling do not match; retrying those is the
// invoking layer's business.
func IsInvalidRequest(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRequestException"
}

package reading

import "errors"

var (
	ErrUnmarshalFailed  = errors.New("failed to unmarshal reading JSON")
	ErrMarshalFailed    = errors.New("failed to marshal reading JSON")
	ErrMissingDeviceID  = errors.New("reading is missing device_id")
	ErrMissingTimestamp = errors.New("reading is missing timestamp")
	ErrMissingLevel     = errors.New("reading is missing level")
	ErrLevelOutOfRange  = errors.New("reading level outside [0,1]")
)

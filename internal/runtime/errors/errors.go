package errors

import sterrors "errors"

var (
	ErrMessengerRequired   = sterrors.New("simflow: messenger is required")
	ErrReceiverRequired    = sterrors.New("simflow: receiver module is required")
	ErrHandlerRequired     = sterrors.New("simflow: handler function is required")
	ErrBindTargetRequired  = sterrors.New("simflow: bind target is required")
	ErrMessageRequired     = sterrors.New("simflow: message is required")
	ErrMessengerRunning    = sterrors.New("simflow: messenger is already running")
	ErrMessengerNotRunning = sterrors.New("simflow: messenger is not running")
	ErrModuleRequired      = sterrors.New("simflow: module is required")
	ErrModuleNameEmpty     = sterrors.New("simflow: module name cannot be empty")
	ErrDetectorRequired    = sterrors.New("simflow: detector is required")
	ErrDetectorNameEmpty   = sterrors.New("simflow: detector name cannot be empty")
	ErrPublisherRequired   = sterrors.New("simflow: publisher is required")
	ErrTopicRequired       = sterrors.New("simflow: topic is required")
	ErrStorePathRequired   = sterrors.New("simflow: store path is required")
	ErrConfigRequired      = sterrors.New("simflow: configuration is required")
)

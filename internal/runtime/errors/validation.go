package errors

import "fmt"

// ConfigValidationError wraps the validation failures of a framework
// configuration.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return "simflow: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil for a nil err.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// MissingInputError reports a required message binding that no registered
// producer can feed. It is raised during wiring validation, before any
// event is processed, and names everything needed to fix the setup.
type MissingInputError struct {
	Module      string
	MessageType string
	Channel     string
}

func (e MissingInputError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("simflow: module %q requires messages of type %s but no producer is registered", e.Module, e.MessageType)
	}
	return fmt.Sprintf("simflow: module %q requires messages of type %s on channel %q but no producer is registered", e.Module, e.MessageType, e.Channel)
}

// MissingKeyError reports a configuration key that was requested but never
// set in its section.
type MissingKeyError struct {
	Section string
	Key     string
}

func (e MissingKeyError) Error() string {
	return fmt.Sprintf("simflow: section %q has no key %q", e.Section, e.Key)
}

// InvalidValueError reports a configuration value that could not be coerced
// to the requested shape.
type InvalidValueError struct {
	Section string
	Key     string
	Reason  string
}

func (e InvalidValueError) Error() string {
	return fmt.Sprintf("simflow: invalid value for key %q in section %q: %s", e.Key, e.Section, e.Reason)
}

// DuplicateDetectorError reports a second detector registered under a name
// that is already taken.
type DuplicateDetectorError struct {
	Name string
}

func (e DuplicateDetectorError) Error() string {
	return fmt.Sprintf("simflow: detector %q is already registered", e.Name)
}

// DuplicateModuleError reports a second module added to a pipeline under a
// name that is already taken.
type DuplicateModuleError struct {
	Name string
}

func (e DuplicateModuleError) Error() string {
	return fmt.Sprintf("simflow: module %q is already added", e.Name)
}

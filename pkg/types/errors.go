package types

import (
	"errors"
	"fmt"
)

// Code is a short opaque tag identifying the failure site of a backend error.
// Codes are part of the public API contract and must not change.
type Code string

// Code values, one per failure site.
const (
	CodeRegister            Code = "TSC_1"
	CodeReport              Code = "TSC_2"
	CodeListDevices         Code = "TSC_3"
	CodeMissingDeviceID     Code = "TCS_4" // historical tag, kept verbatim
	CodeDeviceDetails       Code = "TSC_5"
	CodeDeviceNotFound      Code = "TSC_6"
	CodeDeviceHistory       Code = "TSC_7"
	CodeRegisterTransaction Code = "TSC_8"
)

// Client-facing messages for each backend failure site.
const (
	MsgRegister            = "Something went wrong registering the device!"
	MsgReport              = "Something went wrong reporting the device status!"
	MsgListDevices         = "Something went wrong fetching the devices data."
	MsgMissingDeviceID     = "Something went wrong fetching the device id."
	MsgDeviceDetails       = "An error occurred finding the device details."
	MsgDeviceNotFound      = "There was no device status information available."
	MsgDeviceHistory       = "An error occurred retrieving the sensor's historical data."
	MsgRegisterTransaction = "An error occurred saving the device data."
)

// Client-facing messages for rejected input.
const (
	MsgDeviceIDRequired   = "The parameter 'deviceId' is required."
	MsgTotalLevelsInvalid = "The parameter 'totalLevels' is required and must be an integer."
	MsgFillLevelInvalid   = "The parameter 'fillLevel' is required and must be an integer."
)

// ErrDeviceNotFound is wrapped by the error returned when a device has no details row.
var ErrDeviceNotFound = errors.New("device not found")

// Error is a backend failure carrying a stable code and a client-safe message.
// Err holds the underlying cause and is never shown to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// NewError creates an Error for the given failure site.
func NewError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code carried by err, or fallback when err carries none.
func CodeOf(err error, fallback Code) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fallback
}

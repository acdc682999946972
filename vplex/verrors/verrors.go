// Copyright 2020 Dell Inc. or its subsidiaries.

package verrors

import (
	"fmt"
	"net/http"
	"strconv"

	log "github.com/dell-storage/vplex-host-libs/logger"
)

type VplexErrorCode uint32

const (
	OK                 VplexErrorCode = 0
	Canceled           VplexErrorCode = 1
	Unknown            VplexErrorCode = 2
	InvalidArgument    VplexErrorCode = 3
	NotFound           VplexErrorCode = 4
	AlreadyExists      VplexErrorCode = 5
	PermissionDenied   VplexErrorCode = 6
	FailedPrecondition VplexErrorCode = 7
	Aborted            VplexErrorCode = 8
	OutOfRange         VplexErrorCode = 9
	Internal           VplexErrorCode = 10
	Unavailable        VplexErrorCode = 11
	Unauthenticated    VplexErrorCode = 12
	Timeout            VplexErrorCode = 13
	ConnectionFailed   VplexErrorCode = 14
	_maxCode           VplexErrorCode = 15
)

const (
	errorMessageInvalidInputParameters = "invalid input parameters"
)

// VplexError carries a coarse error code alongside the message so callers can
// branch on the kind of failure instead of matching message substrings.
type VplexError struct {
	Code VplexErrorCode `json:"code"`
	Text string         `json:"text,omitempty"`
}

// NewVplexError takes an array of objects and returns a pointer to a VplexError object.  The
// following input parameters, in any order, are supported:
//     VplexError     - VplexError object
//     error          - All other error objects
//     VplexErrorCode - error code
//     string         - error text
// This routine parses the input data to create and return a new VplexError object
func NewVplexError(args ...interface{}) *VplexError {

	// These are the optional parameters we support
	var vplexError *VplexError
	var otherError *error
	errorCode := _maxCode
	errorMessage := ""

	// Parse the input parameters and populate local variables
	for _, arg := range args {
		switch v := arg.(type) {
		case VplexErrorCode:
			errorCode = v
		case string:
			errorMessage = v
		case VplexError:
			err := v
			vplexError = &err
		case *VplexError:
			vplexError = v
		case error:
			err := v
			otherError = &err
		}
	}

	// Create a new initial VplexError object
	err := &VplexError{Code: _maxCode, Text: ""}

	// Populate the VplexError Text property
	if vplexError != nil {
		err = vplexError
	} else if otherError != nil {
		err.Text = (*otherError).Error()
	} else if errorMessage != "" {
		err.Text = errorMessage
	}

	// Populate the VplexError Code property
	if errorCode < _maxCode {
		err.Code = errorCode
	}

	// If neither an error message or an error code were provided, fail with generic error
	if (err.Code == _maxCode) && (err.Text == "") {
		return &VplexError{Code: Internal, Text: errorMessageInvalidInputParameters}
	}

	// Handle condition where VplexError Code property is still empty
	if err.Code == _maxCode {
		err.Code = Unknown
	}

	// Handle condition where VplexError text property is still empty
	if err.Text == "" {
		err.Text = err.Code.String()
	}

	return err
}

func NewVplexErrorf(c VplexErrorCode, format string, a ...interface{}) *VplexError {
	return &VplexError{Code: c, Text: fmt.Sprintf(format, a...)}
}

func (e *VplexError) Error() string {
	return fmt.Sprintf("status: %d msg: %s", e.Code, e.Text)
}

func (e *VplexError) LogAndError() VplexError {
	log.Error(e.Error())
	return *e
}

// ErrorCode returns the status code contained in VplexError
func (e *VplexError) ErrorCode() VplexErrorCode {
	if e == nil {
		return OK
	}
	return e.Code
}

// ErrorText returns the text contained in VplexError
func (e *VplexError) ErrorText() string {
	if e == nil {
		return ""
	}
	return e.Text
}

// CodeOf extracts the VplexErrorCode from any error. Foreign errors map to
// Unknown, nil maps to OK.
func CodeOf(err error) VplexErrorCode {
	if err == nil {
		return OK
	}
	if verr, ok := err.(*VplexError); ok {
		return verr.ErrorCode()
	}
	return Unknown
}

// IsNotFound reports whether the error represents resource absence.
func IsNotFound(err error) bool {
	return CodeOf(err) == NotFound
}

// FromHTTPStatus maps an HTTP response status to a VplexErrorCode.
func FromHTTPStatus(status int) VplexErrorCode {
	switch {
	case status >= 200 && status <= 299:
		return OK
	case status == http.StatusBadRequest:
		return InvalidArgument
	case status == http.StatusUnauthorized:
		return Unauthenticated
	case status == http.StatusForbidden:
		return PermissionDenied
	case status == http.StatusNotFound:
		return NotFound
	case status == http.StatusConflict:
		return AlreadyExists
	case status == http.StatusPreconditionFailed:
		return FailedPrecondition
	case status == http.StatusServiceUnavailable:
		return Unavailable
	case status == http.StatusGatewayTimeout:
		return Timeout
	default:
		return Internal
	}
}

func (c VplexErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Canceled:
		return "Canceled"
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case PermissionDenied:
		return "PermissionDenied"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Aborted:
		return "Aborted"
	case OutOfRange:
		return "OutOfRange"
	case Internal:
		return "Internal"
	case Unavailable:
		return "Unavailable"
	case Unauthenticated:
		return "Unauthenticated"
	case Timeout:
		return "Timeout"
	case ConnectionFailed:
		return "ConnectionFailed"
	default:
		return "Code(" + strconv.FormatInt(int64(c), 10) + ")"
	}
}

// Package cerr is the closed error taxonomy for the capture store and the
// protocol adapter built on top of it.
//
// Fallible operations in pkg/capture and pkg/protocol report failure as an
// error value of one of these kinds, never a panic. The one other code is
// capture.New's errors.CodeInvalidArgument for a non-positive capacity.
package cerr

import "github.com/mockbus/pubsub-capture/pkg/errors"

// Error codes for capture-store and protocol-adapter operations.
const (
	CodeNullMessage   = "CAPTURE_NULL_MESSAGE"
	CodeNullTopic     = "CAPTURE_NULL_TOPIC"
	CodeNullMessageID = "CAPTURE_NULL_MESSAGE_ID"
	CodeNotFound      = "CAPTURE_NOT_FOUND"
	CodeMissingAction = "CAPTURE_MISSING_ACTION"
	CodeInvalidAction = "CAPTURE_INVALID_ACTION"
	CodeInvalidParam  = "CAPTURE_INVALID_PARAMETER"
	CodeInternal      = "CAPTURE_INTERNAL"
)

// NullMessage reports that Add was called with no record.
func NullMessage() *errors.AppError {
	return errors.New(CodeNullMessage, "message record must not be nil", nil)
}

// NullTopic reports that a topic-scoped query was called with an empty topic.
func NullTopic() *errors.AppError {
	return errors.New(CodeNullTopic, "topic must not be empty", nil)
}

// NullMessageID reports that GetByID was called with an empty id.
func NullMessageID() *errors.AppError {
	return errors.New(CodeNullMessageID, "message id must not be empty", nil)
}

// NotFound reports that no record exists with the given id.
func NotFound(id string) *errors.AppError {
	return errors.New(CodeNotFound, "no message found with id: "+id, nil)
}

// MissingAction reports that the adapter could not determine which action
// the caller wanted performed.
func MissingAction() *errors.AppError {
	return errors.New(CodeMissingAction, "Could not find operation to perform.", nil)
}

// InvalidAction reports that action names a real field but not one the
// adapter supports.
func InvalidAction(action string) *errors.AppError {
	return errors.New(CodeInvalidAction, "unsupported action: "+action, nil)
}

// InvalidParameter reports that field is missing or malformed for the
// requested action.
func InvalidParameter(field string) *errors.AppError {
	return errors.New(CodeInvalidParam, "invalid or missing parameter: "+field, nil)
}

// Internal wraps any other unexpected failure encountered while handling a
// request.
func Internal(cause error) *errors.AppError {
	return errors.New(CodeInternal, "internal error", cause)
}

// wireCodes maps each internal Code to the AWS-style wire code the adapter
// layer puts in an XML/JSON error envelope. NullMessage/NullTopic/
// NullMessageId have no entry: they are not reachable via HTTP (see §7).
var wireCodes = map[string]string{
	CodeMissingAction: "MissingAction",
	CodeInvalidAction: "InvalidAction",
	CodeInvalidParam:  "InvalidParameter",
	CodeNotFound:      "NotFound",
	CodeInternal:      "InternalError",
}

// WireCode returns the AWS-style wire code for an internal error code, or
// "InternalError" if code is unrecognized.
func WireCode(code string) string {
	if wc, ok := wireCodes[code]; ok {
		return wc
	}
	return "InternalError"
}

// HTTPStatus returns the HTTP status the adapter layer maps an internal
// error code to, per §7's mapping table.
func HTTPStatus(code string) int {
	switch code {
	case CodeMissingAction, CodeInvalidAction, CodeInvalidParam:
		return 400
	case CodeNotFound:
		return 404
	default:
		return 500
	}
}

package errors

import (
	"errors"
	"fmt"
)

// ErrorDump is a log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`

	Chain []string `json:"chain,omitempty"`

	HTTPStatus int    `json:"http_status,omitempty"`
	Operation  string `json:"operation,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// RemoteDetails is attached to errors produced from an API response.
type RemoteDetails struct {
	Operation  string `json:"operation"`
	HTTPStatus int    `json:"http_status"`
	RequestID  string `json:"request_id,omitempty"`
	RemoteCode string `json:"remote_code,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Message = te.Message()
		switch details := te.Details().(type) {
		case RemoteDetails:
			d.HTTPStatus = details.HTTPStatus
			d.Operation = details.Operation
			d.RequestID = details.RequestID
		case *RemoteDetails:
			if details != nil {
				d.HTTPStatus = details.HTTPStatus
				d.Operation = details.Operation
				d.RequestID = details.RequestID
			}
		}
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	return d
}

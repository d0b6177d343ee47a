/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package restapi contains helpers for writing JSON responses and errors of the admission HTTP API.
package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/windowlimit/go-windowlimit/log"
)

// ContentTypeAppJSON represents MIME media type for JSON.
const ContentTypeAppJSON = "application/json"

// jsonMarshal marshals v with disabled HTML escaping.
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

// RespondJSON sends response with 200 HTTP status code, does JSON marshaling of data and writes result in response's body.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger log.FieldLogger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondCodeAndJSON sends a response with the passed status code and sets the "Content-Type"
// to "application/json" if it's not already set.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger log.FieldLogger) {
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}

	respJSON, err := jsonMarshal(respData)
	if err != nil {
		if logger != nil {
			logger.Error("error while marshaling json for response body", log.Error(err))
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	if rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", ContentTypeAppJSON)
	}
	rw.WriteHeader(statusCode)
	if _, err = rw.Write(respJSON); err != nil && logger != nil {
		logger.Error("error while writing response body", log.Error(err))
	}
}

// ErrorResponseData is used for answer on requests with error.
type ErrorResponseData struct {
	Err *Error `json:"error"`
}

func (e *ErrorResponseData) Error() string {
	return fmt.Sprintf("HTTP error occurs: %v", e.Err)
}

// RespondError sets HTTP status code in response and writes error wrapped into {"error": ...} in JSON format.
// Server-side errors (5xx) are logged at the error level, client-side ones at the warn level.
func RespondError(rw http.ResponseWriter, httpStatusCode int, err *Error, logger log.FieldLogger) {
	if logger != nil {
		logError(httpStatusCode, err, logger)
	}
	RespondCodeAndJSON(rw, httpStatusCode, ErrorResponseData{err}, logger)
}

// RespondInternalError sends response with 500 HTTP status code and internal error in body in JSON format.
func RespondInternalError(rw http.ResponseWriter, domain string, logger log.FieldLogger) {
	RespondError(rw, http.StatusInternalServerError, NewInternalError(domain), logger)
}

func logError(httpStatusCode int, err *Error, logger log.FieldLogger) {
	fields := []log.Field{log.String("error_code", err.Code), log.String("error_message", err.Message)}
	if len(err.Context) != 0 {
		ctxLines := make([]string, 0, len(err.Context))
		for k, v := range err.Context {
			ctxLines = append(ctxLines, fmt.Sprintf("%s: %v", k, v))
		}
		sort.Strings(ctxLines)
		fields = append(fields, log.Strings("error_context", ctxLines))
	}
	if httpStatusCode >= http.StatusInternalServerError {
		logger.Error("error in response", fields...)
		return
	}
	logger.Warn("error in response", fields...)
}

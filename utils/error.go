package utils

import "errors"

// ErrorRecordNotFound hides the storage layer's not-found sentinel from
// handlers.
var ErrorRecordNotFound = errors.New("record not found")

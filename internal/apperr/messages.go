package apperr

// # Error Codes Reference
//
// User-facing messages carry a code that can be quoted to support.
//
// # Configuration (CFG001-CFG099)
//
//	CFG001 - Input file not found
//	         Action: Check the file name and the --file_path directory
//	         Patterns: "unable to find given"
//
//	CFG002 - Invalid option value
//	         Action: Run with --help to see accepted values
//	         Patterns: "invalid option"
//
// # Reading (READ001-READ099)
//
//	READ001 - File has no data rows
//	          Action: Provide a CSV file with a header and at least one row
//	          Patterns: "no data row", "empty file"
//
//	READ002 - File is not a valid CSV
//	          Action: Ensure the file is comma-separated with consistent columns
//	          Patterns: "wrong number of fields", "parse error", "invalid csv"
//
//	READ003 - File too large
//	          Action: Split the file or raise UPLOAD_MAX_FILE_SIZE
//	          Patterns: "file too large"
//
//	READ004 - No file provided
//	          Action: Attach both the barcodes and the orders file
//	          Patterns: "no file provided"
//
//	READ005 - File could not be read
//	          Action: Check the file exists and is readable
//	          Patterns: "unable to read file"
//
//	READ006 - Id column holds a non-integer value
//	          Action: order_id and customer_id must be whole numbers
//	          Patterns: "invalid integer"
//
// # Processing (PROC001-PROC099)
//
//	PROC001 - Expected column missing
//	          Action: Barcodes need barcode,order_id and orders need order_id,customer_id
//	          Patterns: "column not found"
//
//	PROC002 - Validation could not complete
//	          Action: Check the input files for malformed rows
//	          Patterns: "error occured during validation"
//
//	PROC003 - Nothing to aggregate
//	          Action: Ensure both input files were read successfully
//	          Patterns: "no merged data", "no barcodes data"
//
// # Runs (RUN001-RUN099)
//
//	RUN001 - System busy
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent runs"
//
//	RUN002 - Run not found
//	         Action: Verify the run id
//	         Patterns: "run not found"
//
//	RUN003 - Request cancelled
//	         Patterns: "context canceled"
//
//	RUN004 - Request timed out
//	         Patterns: "context deadline exceeded"
//
// # Storage (STORE001-STORE099)
//
//	STORE001 - Run history unavailable
//	           Action: Check DATABASE_URL or STORE_DRIVER
//	           Patterns: "connection refused", "failed to connect"
//
// # Default (ERR000)
//
//	ERR000 - An unexpected error occurred
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Configuration
	{"unable to find given", UserMessage{"Input file not found", "Check the file name and the --file_path directory", "CFG001"}},
	{"invalid option", UserMessage{"Invalid option value", "Run with --help to see accepted values", "CFG002"}},

	// Reading
	{"no data row", UserMessage{"File has no data rows", "Provide a CSV file with a header and at least one row", "READ001"}},
	{"empty file", UserMessage{"File has no data rows", "Provide a CSV file with a header and at least one row", "READ001"}},
	{"wrong number of fields", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "READ002"}},
	{"parse error", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "READ002"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "READ002"}},
	{"file too large", UserMessage{"File exceeds the maximum size", "Split the file or raise UPLOAD_MAX_FILE_SIZE", "READ003"}},
	{"no file provided", UserMessage{"No file was provided", "Attach both the barcodes and the orders file", "READ004"}},
	{"invalid integer", UserMessage{"Id column holds a non-integer value", "order_id and customer_id must be whole numbers", "READ006"}},

	// Processing. Column errors can surface from inside a read error
	// message, so these come before the generic read pattern.
	{"column not found", UserMessage{"Expected column missing", "Barcodes need barcode,order_id and orders need order_id,customer_id", "PROC001"}},
	{"error occured during validation", UserMessage{"Validation could not complete", "Check the input files for malformed rows", "PROC002"}},
	{"no merged data", UserMessage{"Nothing to aggregate", "Ensure both input files were read successfully", "PROC003"}},
	{"no barcodes data", UserMessage{"Nothing to aggregate", "Ensure both input files were read successfully", "PROC003"}},

	{"unable to read file", UserMessage{"File could not be read", "Check the file exists and is readable", "READ005"}},

	// Runs
	{"too many concurrent runs", UserMessage{"System is busy processing other runs", "Please wait a moment and try again", "RUN001"}},
	{"run not found", UserMessage{"Run not found", "Verify the run id", "RUN002"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "RUN003"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try smaller files or try again later", "RUN004"}},

	// Storage
	{"connection refused", UserMessage{"Run history unavailable", "Check DATABASE_URL or STORE_DRIVER", "STORE001"}},
	{"failed to connect", UserMessage{"Run history unavailable", "Check DATABASE_URL or STORE_DRIVER", "STORE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// Map converts a technical error to a user-friendly message. If no pattern
// matches, the ERR000 fallback is returned.
func Map(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// Format renders err as "Message (Code: XXX). Action".
func Format(err error) string {
	msg := Map(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return Map(err).Code != defaultMessage.Code
}

package main

import (
	"fmt"
	"os"

	"github.com/fedbook/fedbook/internal/audit"
)

// exitOnError logs the error to audit and stderr, then exits.
func exitOnError(event *audit.Event, err error) {
	auditLogger.LogError(event, err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// fail prints an error and exits without an audit event.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// requireDB exits when the event graph is not connected.
func requireDB() {
	if db == nil {
		fmt.Fprintln(os.Stderr, "Error: Not connected to graph")
		os.Exit(1)
	}
}

// truncateStr truncates a string to n characters with ellipsis.
func truncateStr(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

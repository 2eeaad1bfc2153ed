// Package logs reads the daemon log file for the CLI: the last lines of the
// file and, optionally, lines appended afterwards.
package logs

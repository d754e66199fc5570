// Package logger builds the zerolog application logger and owns the
// optional New Relic application that APM, log forwarding and the
// database and Redis integrations hang off.
package logger

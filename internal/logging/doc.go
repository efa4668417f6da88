// Package logging provides structured logging for fleetsync.
//
// This package wraps zap with convenience functions for the logging
// patterns used across the client, the event stream and the simulator.
//
// # Log Levels
//
//   - Debug: request and response bodies, verification attempts
//   - Info: status cycle transitions, connections, server startup
//   - Warn: rollbacks, unconfirmed updates, session read failures
//   - Error: unexpected failures
//
// # Specialized Logging
//
//	logging.LogHTTPRequest("PUT", url, body)
//	logging.LogHTTPResponse("PUT", url, 200, elapsed, body)
//	logging.LogCycleEvent(devID, cycleID, "converged")
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//
// # Configuration
//
// Logging is silent unless FLEETSYNC_LOG_LEVEL (or the level passed to
// Initialize) is set, so CLI output stays clean by default:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Log lines go to stderr in zap's console format.
package logging

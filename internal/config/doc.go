// Package config loads fleetsync client settings.
//
// Settings come from three layers, later ones winning: built-in defaults,
// a YAML file, and FLEETSYNC_* environment variables (dots become
// underscores, so api.base_url is FLEETSYNC_API_BASE_URL).
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/fleetsync/config.yaml or $HOME/.config/fleetsync/config.yaml
//   - macOS: $HOME/.config/fleetsync/config.yaml
//   - Windows: %LOCALAPPDATA%\fleetsync\config.yaml
//
// A missing file is not an error; defaults apply.
//
// # Example
//
//	api:
//	  base_url: http://fleet.local:8080
//	  timeout: 10s
//	session:
//	  backend: sqlite
//	  path: /var/lib/fleetsync/session.db
//	reconcile:
//	  initial_delay: 1s
//	  delay_increment: 1s
//	  max_attempts: 3
//	log:
//	  level: info
//
// # Security
//
// The config file never holds credentials. The bearer token lives in the
// session store, whose file is written with 0600 permissions.
package config

// Package urls names the fleet REST endpoints and related addresses so the
// client, the simulator and the CLI agree on them.
//
// Usage:
//
//	import "github.com/muurk/fleetsync/internal/urls"
//
//	res := client.Do(ctx, http.MethodGet, urls.Devices, params.Query(), nil)
package urls

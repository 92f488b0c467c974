// Package cli implements the node-monitor command line.
//
// There is a root command plus "version" and "doctor". The root command:
//
//  1. Loads the configuration (defaults, ~/.config/node-monitor/config.yaml
//     or --config, NODE_MONITOR_* variables, then flags) and validates it.
//  2. Resolves the nodes: --nodes or the config's node list, expanded as a
//     hostlist, or Slurm discovery when there is none. --pick offers the
//     result in an interactive picker; --save writes it back to the file.
//  3. Builds the SSH pool, the node poller and the scheduler.
//  4. Runs the dashboard, or a single poll with --once.
//
// Configuration and discovery failures are returned as *errors.Error before
// any poll, and Execute turns them into exit status 1. Quitting the
// dashboard, with q or an interrupt, exits 0.
//
// doctor runs the checks in package doctor against the same configuration
// and polls each node once. It exits 1 when a check fails.
//
// # Flag Handling
//
// Flags that are also config keys (nodes, interval, workers, timeout,
// compact, processes, color) are not read directly; config.Load binds them
// so that a flag only overrides the file and environment when it was set.
// The rest (--once, --pick, --config, ...) live in rootOptions.
package cli

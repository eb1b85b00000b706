// Package cmd provides the command-line interface for kbatch-proxy.
//
// This package implements a Cobra-based CLI with two subcommands:
//   - serve: Starts the HTTP server (default behavior when no subcommand is provided)
//   - version: Displays the application version
//
// The CLI runs the serve command when no subcommand is specified.
//
// Command Structure:
//
//	kbatch-proxy [flags]            # Starts the HTTP server (default)
//	kbatch-proxy serve [flags]      # Explicitly starts the HTTP server
//	kbatch-proxy version            # Shows version information
//	kbatch-proxy help [command]     # Shows help information
//
// The serve command supports flags for the listen address, the identity
// service URL, the required OAuth scope, admin job-template and
// profile-map files, and Kubernetes client behavior (in-cluster vs
// kubeconfig, QPS/burst limits).
package cmd

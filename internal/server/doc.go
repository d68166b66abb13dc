// Package server wires the csvexport components into a running process.
//
// New opens the database, registers the configured models on an admin
// site, installs the CSV export action, and mounts the web admin, health,
// and metrics endpoints on one mux. Run serves it on server.http_addr or on
// a tailscale node until the context is canceled.
package server

/*
Package server wires the HTTP surface of the service.

It exposes instance discovery, script execution, property listings, the
command reference, and Prometheus metrics over a Gin router with CORS and
per-IP rate limiting.

Routes:

	GET  /                   service identity
	GET  /health             health and instance count
	GET  /instances          connected instances
	POST /instances/rescan   re-probe the discovery port range
	POST /execute            run a script
	GET  /properties/:port   property definitions of one instance
	GET  /docs               command reference search
	GET  /metrics            Prometheus exposition
*/
package server

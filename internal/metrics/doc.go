// Package metrics declares the Prometheus collectors shared across the launcher.
package metrics

// Package e2e drives the assembled HTTP router against in-memory stores.
package e2e

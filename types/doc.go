// Package types defines the shared error taxonomy used across the service.
package types

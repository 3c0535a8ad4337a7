//go:build cgo

package store

// go-libsql requires cgo; registering the driver here keeps the rest of the
// package buildable when cgo is disabled.
import _ "github.com/tursodatabase/go-libsql"

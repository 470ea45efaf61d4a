// Package model defines the value types shared across the relay:
// account credentials, normalized price ticks, and exchange orders.
package model

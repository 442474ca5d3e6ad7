// Package control sends the four device toggles to the backend.
package control

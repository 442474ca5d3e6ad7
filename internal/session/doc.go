// Package session holds the user identity and bearer token of one run.
package session

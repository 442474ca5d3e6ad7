// Package remote is the REST client for the HomyTech backend.
//
// It covers the snapshot reads, log pages, hourly usage, device commands
// and login. Every request carries a fresh X-Request-ID and the bearer
// token when one is set. Non-2xx answers come back as *StatusError, which
// matches ErrUnexpectedStatus under errors.Is.
//
// GETs are bounded by Config.ReadTimeout. Commands use only the caller's
// context and the transport defaults.
package remote

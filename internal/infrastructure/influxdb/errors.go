package influxdb

import "errors"

var (
	// ErrConnectionFailed means the start-up ping failed or the server
	// reported itself unhealthy.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)

// Package influxdb writes HomySync device telemetry to InfluxDB 2.x.
//
// It wraps the official influxdb-client-go v2 library. Every device update
// becomes a device_state point and every door alert a door_alert point,
// which gives a long-running history beyond the backend's paged logs.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDeviceState("door", "door", "Bo", true, ts)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according
// to batch_size and flush_interval. Close may be called more than once;
// points written after it are counted in Stats().Dropped.
package influxdb

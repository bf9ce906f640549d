// Package influxdb writes printer command metrics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The client is an
// optional observer of the command bridge: when influxdb.enabled is set,
// every execution becomes a point in the printer_commands measurement,
// tagged by serial, command and outcome.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	bridge.AddObserver(client)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval); their
// failures arrive on the SetOnError callback. Connection and health check
// errors are returned directly.
package influxdb

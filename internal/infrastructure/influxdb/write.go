package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/canny86/FilaCore/internal/command"
)

// measurementCommands holds one point per printer command execution.
const measurementCommands = "printer_commands"

// WriteCommandMetric records one command execution.
//
// Tags are the printer serial, the command name and the outcome; fields are
// the duration and a success flag. The write is non-blocking.
//
// Example:
//
//	client.WriteCommandMetric("01S00C123456789", "query_state", "ok", 180*time.Millisecond, time.Now())
func (c *Client) WriteCommandMetric(serial, name, outcome string, duration time.Duration, ts time.Time) {
	c.WritePointWithTime(measurementCommands,
		map[string]string{
			"serial":  serial,
			"command": name,
			"outcome": outcome,
		},
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"success":     outcome == "ok",
		},
		ts,
	)
}

// CommandExecuted implements command.Observer.
func (c *Client) CommandExecuted(_ context.Context, exec command.Execution) {
	c.WriteCommandMetric(exec.Serial, exec.Command, exec.Outcome(), exec.Duration, exec.Started)
}

// WritePoint writes a point stamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. Dropped
// silently once the client is closed.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsOpen() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

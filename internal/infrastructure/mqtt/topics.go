package mqtt

import "fmt"

// Topic layout of the broker embedded in each printer.
const (
	// TopicPrefixDevice is the base for all printer topics.
	TopicPrefixDevice = "device"
)

// Topics provides builders for printer MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceReport("01P00A000000000") // "device/01P00A000000000/report"
type Topics struct{}

// DeviceReport returns the topic the printer publishes state and
// acknowledgements on.
func (Topics) DeviceReport(serial string) string {
	return fmt.Sprintf("%s/%s/report", TopicPrefixDevice, serial)
}

// DeviceRequest returns the topic the printer accepts commands on.
func (Topics) DeviceRequest(serial string) string {
	return fmt.Sprintf("%s/%s/request", TopicPrefixDevice, serial)
}

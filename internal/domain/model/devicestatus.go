package model

// ConnectionType names the transport of the active network.
type ConnectionType string

const (
	ConnectionWiFi         ConnectionType = "WiFi"
	ConnectionCellular     ConnectionType = "Cellular"
	ConnectionEthernet     ConnectionType = "Ethernet"
	ConnectionNotConnected ConnectionType = "NotConnected"
)

// UnknownLevel is the battery level reported when the battery cannot be read.
const UnknownLevel = -1

// BatteryStatus is the charge state of the device battery.
type BatteryStatus struct {
	LevelPercent int
	IsCharging   bool
}

// NetworkStatus describes connectivity of the device.
type NetworkStatus struct {
	IsConnected    bool
	ConnectionType ConnectionType
}

// StorageStatus holds capacity in gigabytes, already rendered with two
// fractional digits.
type StorageStatus struct {
	AvailableGB string
	TotalGB     string
}

// HostInfo describes the platform the daemon runs on.
type HostInfo struct {
	OSVersion   string
	DeviceModel string
	Platform    string
}

// DeviceStatus is a point-in-time telemetry snapshot. It is never persisted.
type DeviceStatus struct {
	Battery BatteryStatus
	Network NetworkStatus
	Storage StorageStatus
	Host    HostInfo
}

// Sentinel values used when a telemetry source fails.
var (
	UnknownBattery = BatteryStatus{LevelPercent: UnknownLevel, IsCharging: false}
	UnknownNetwork = NetworkStatus{IsConnected: false, ConnectionType: ConnectionNotConnected}
	UnknownStorage = StorageStatus{AvailableGB: "0.00", TotalGB: "0.00"}
	UnknownHost    = HostInfo{OSVersion: "unknown", DeviceModel: "unknown", Platform: "unknown"}
)

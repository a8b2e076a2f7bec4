package httphandler

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ReadingResponse is the JSON representation of a stored reading.
type ReadingResponse struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
	DeviceID  string  `json:"deviceId"`
}

// BatteryResponse is the battery part of the device status.
type BatteryResponse struct {
	LevelPercent int  `json:"levelPercent"`
	IsCharging   bool `json:"isCharging"`
}

// NetworkResponse is the network part of the device status.
type NetworkResponse struct {
	IsConnected    bool   `json:"isConnected"`
	ConnectionType string `json:"connectionType"`
}

// StorageResponse is the storage part of the device status.
type StorageResponse struct {
	AvailableGB string `json:"availableGB"`
	TotalGB     string `json:"totalGB"`
}

// DeviceStatusResponse is the JSON representation of a telemetry snapshot.
type DeviceStatusResponse struct {
	Battery     BatteryResponse `json:"battery"`
	Network     NetworkResponse `json:"network"`
	Storage     StorageResponse `json:"storage"`
	OSVersion   string          `json:"osVersion"`
	DeviceModel string          `json:"deviceModel"`
	Platform    string          `json:"platform"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

func toReadingResponse(r model.Reading) ReadingResponse {
	return ReadingResponse{
		ID:        r.ID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timestamp: r.CapturedAtMillis,
		DeviceID:  r.DeviceID,
	}
}

func toDeviceStatusResponse(s model.DeviceStatus) DeviceStatusResponse {
	return DeviceStatusResponse{
		Battery: BatteryResponse{
			LevelPercent: s.Battery.LevelPercent,
			IsCharging:   s.Battery.IsCharging,
		},
		Network: NetworkResponse{
			IsConnected:    s.Network.IsConnected,
			ConnectionType: string(s.Network.ConnectionType),
		},
		Storage: StorageResponse{
			AvailableGB: s.Storage.AvailableGB,
			TotalGB:     s.Storage.TotalGB,
		},
		OSVersion:   s.Host.OSVersion,
		DeviceModel: s.Host.DeviceModel,
		Platform:    s.Host.Platform,
	}
}

func toHealthResponse(now time.Time) HealthResponse {
	return HealthResponse{Status: "ok", Time: now.UTC().Format(time.RFC3339)}
}

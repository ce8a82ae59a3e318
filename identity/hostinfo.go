package identity

import (
	"os"
	"runtime"
	"strconv"
)

// Host kinds
const (
	KindNative = "native"
	KindWeb    = "web"
)

// HostInfo is the platform device-info capability queried during device-ID
// bootstrap: a best-effort stable hardware identifier plus descriptive
// metadata.
type HostInfo interface {
	Kind() string
	HardwareID() (string, error)
	Attributes() map[string]string
}

// NativeHost describes the packaged runtime the daemon runs on.
type NativeHost struct {
	// MachineIDPath overrides the hardware-ID source, mainly for tests.
	MachineIDPath string
}

func (NativeHost) Kind() string { return KindNative }

// HardwareID reads the OS machine ID. An empty result with nil error means
// "unavailable"; the caller falls back to attribute hashing.
func (h NativeHost) HardwareID() (string, error) {
	path := h.MachineIDPath
	if path == "" {
		path = "/etc/machine-id"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := string(data)
	for len(id) > 0 && (id[len(id)-1] == '\n' || id[len(id)-1] == '\r') {
		id = id[:len(id)-1]
	}
	return id, nil
}

func (NativeHost) Attributes() map[string]string {
	hostname, _ := os.Hostname()
	return map[string]string{
		"platform": runtime.GOOS,
		"arch":     runtime.GOARCH,
		"hostname": hostname,
		"cpus":     strconv.Itoa(runtime.NumCPU()),
	}
}

// WebHost describes an embedded-webview deployment where only browser-surface
// hints are available.
type WebHost struct {
	UserAgent      string
	Language       string
	ScreenGeometry string
	TimezoneOffset string
	Concurrency    string
}

func (WebHost) Kind() string { return KindWeb }

// HardwareID is never available in a browser runtime.
func (WebHost) HardwareID() (string, error) { return "", nil }

func (h WebHost) Attributes() map[string]string {
	return map[string]string{
		"user_agent":  h.UserAgent,
		"language":    h.Language,
		"screen":      h.ScreenGeometry,
		"tz_offset":   h.TimezoneOffset,
		"concurrency": h.Concurrency,
	}
}

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

const (
	// ProdBackendURL is the production dashboard API URL.
	ProdBackendURL = "https://dashboard.reportdash.io"

	// DefaultBackendPort is where `reportctl dev-server` listens unless told
	// otherwise.
	DefaultBackendPort = "6173"

	portCheckTimeout = 100 * time.Millisecond
)

// fallbackPorts are probed, in order, when nothing listens on the
// configured dev port.
var fallbackPorts = []string{DefaultBackendPort, "8080", "8000", "3000"}

// envFileCandidates are the .env files, relative to the working directory,
// that may name the backend PORT.
var envFileCandidates = []string{".env", filepath.Join("backend", ".env")}

func readPortFromEnv(path string) string {
	values, err := godotenv.Read(path)
	if err != nil {
		return ""
	}
	return values["PORT"]
}

// portOverride returns REPORTCTL_BACKEND_PORT, or "".
func portOverride() string {
	return os.Getenv(EnvPrefix + "BACKEND_PORT")
}

// GetBackendPort returns the dev backend port: REPORTCTL_BACKEND_PORT, else
// PORT from the first .env candidate that sets it, else DefaultBackendPort.
func GetBackendPort() string {
	if port := portOverride(); port != "" {
		return port
	}
	dir, err := os.Getwd()
	if err != nil {
		return DefaultBackendPort
	}
	for _, name := range envFileCandidates {
		if port := readPortFromEnv(filepath.Join(dir, name)); port != "" {
			return port
		}
	}
	return DefaultBackendPort
}

// GetBackendPortWithAutoDetect is GetBackendPort, except that a configured
// port with no listener gives way to the first fallback port that has one.
// An explicit REPORTCTL_BACKEND_PORT is never second-guessed.
//
// Returns:
//   - string: The port to connect to
func GetBackendPortWithAutoDetect() string {
	if port := portOverride(); port != "" {
		return port
	}
	configured := GetBackendPort()
	if isPortOpen("localhost", configured) {
		return configured
	}
	for _, port := range fallbackPorts {
		if port != configured && isPortOpen("localhost", port) {
			return port
		}
	}
	// Nothing answers; keep the configured port so the request error names it.
	return configured
}

func isPortOpen(host, port string) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), portCheckTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// GetBackendURL returns the production URL, or in dev mode a localhost URL
// on the detected port.
func GetBackendURL(devMode bool) string {
	if !devMode {
		return ProdBackendURL
	}
	return fmt.Sprintf("http://localhost:%s", GetBackendPortWithAutoDetect())
}

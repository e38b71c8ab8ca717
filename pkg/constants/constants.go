// Package constants defines magic numbers and default values used throughout
// relaysuite.
package constants

import "time"

// Default ports per spec.md §6's invocation modes.
const (
	DefaultFileServerPort = 5000
	DefaultBinaryProxyPort = 5000
	DefaultHTTPProxyPort   = 8080
)

// Connection timeouts and limits.
const (
	DefaultConnTimeout = 10 * time.Second
	DefaultReadTimeout = 30 * time.Second
)

// HTTP limits.
const (
	// MaxHeaderBytes bounds how much header data a single request/response
	// may carry before the parser gives up (mirrors go-rawhttp's
	// maxHeaderBytes constant in pkg/client/client.go).
	MaxHeaderBytes = 64 * 1024

	// MaxContentLength bounds a single Content-Length value relaysuite will
	// honor.
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
)

// Buffer limits.
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024   // 4MB before disk spill
	MaxRawBufferSize    = 100 * 1024 * 1024 // 100MB; not applied by any reader, raw buffers are uncapped
)

// Tunnel pump.
const (
	// TunnelChunkSize is the read/write size used by the CONNECT and binary
	// proxy byte pumps, per spec.md §4.H.
	TunnelChunkSize = 8 * 1024
)

// ProxyHeaderSize is the fixed size of the binary transport proxy's header
// (4-byte IPv4 address + 2-byte port, network byte order), per spec.md §3.
const ProxyHeaderSize = 6

//go:build linux || darwin

package ipc

// defaultLocalEndpoint returns the unix-domain-socket default for platforms
// with AF_UNIX, mirroring path.rs's cfg(unix) branch.
func defaultLocalEndpoint() (Endpoint, bool) {
	return Endpoint{Kind: EndpointLocal, Path: defaultSocketPath()}, true
}

// Command goxades verifies the XAdES qualifying properties of signed XML
// documents.
//
// Usage:
//
//	goxades <command> [options] <args>
//
// Commands:
//
//	verify   Verify the XAdES signature(s) of an XML document
//	version  Show version information
//
// Examples:
//
//	# Verify against a trust anchor
//	goxades verify --root root.pem signed.xml
//
//	# Verify with a profile and JSON output
//	goxades verify --config goxades.yaml --json signed.xml
package main

import (
	"github.com/georgepadayatti/goxades/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/goxades
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime
	cli.Main()
}

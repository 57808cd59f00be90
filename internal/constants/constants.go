// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// AppName is used for the logger name and the HTTP Server header
const AppName = "autocal"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

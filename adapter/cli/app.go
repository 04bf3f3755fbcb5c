package cli

import (
	"github.com/goalpost-app/goalpost/internal/app"
)

var container *app.Container

// SetApp installs the wired application for command handlers.
func SetApp(c *app.Container) {
	container = c
}

// GetApp returns the wired application, or nil when wiring failed.
func GetApp() *app.Container {
	return container
}

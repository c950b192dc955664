// Package launch parses the command line the host application starts a
// plugin with:
//
//	plugin -port 28196 -pluginUUID <uuid> -registerEvent registerPlugin -info '{...}'
//
// Any problem here is fatal: the plugin exits before connecting.
package launch

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
)

// Environment overrides for the endpoint, used by tests and local tools.
const (
	EnvScheme = "SD_WS_SCHEME"
	EnvHost   = "SD_WS_HOST"
)

var (
	ErrMissingPort          = errors.New("missing -port")
	ErrMissingPluginUUID    = errors.New("missing -pluginUUID")
	ErrMissingRegisterEvent = errors.New("missing -registerEvent")
	ErrInvalidPort          = errors.New("invalid port")
	ErrInvalidInfo          = errors.New("invalid -info")
)

// Error is a malformed or incomplete launch command line.
type Error struct {
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "launch: " + e.Err.Error()
	}

	return fmt.Sprintf("launch: %v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Args are the values supplied by the host.
type Args struct {
	Port          int
	PluginUUID    string
	RegisterEvent string
	Info          Info
	RawInfo       string
}

// Info is the host and environment description passed with -info.
type Info struct {
	Application      ApplicationInfo   `json:"application"`
	Plugin           PluginInfo        `json:"plugin"`
	DevicePixelRatio int               `json:"devicePixelRatio"`
	Colors           map[string]string `json:"colors,omitempty"`
	Devices          []DeviceInfo      `json:"devices"`
}

type ApplicationInfo struct {
	Font            string `json:"font,omitempty"`
	Language        string `json:"language"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platformVersion,omitempty"`
	Version         string `json:"version"`
}

type PluginInfo struct {
	UUID    string `json:"uuid"`
	Version string `json:"version"`
}

type DeviceInfo struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type int        `json:"type"`
	Size DeviceSize `json:"size"`
}

type DeviceSize struct {
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
}

// Parse parses the plugin command line, without the program name.
func Parse(args []string) (Args, error) {
	fs := flag.NewFlagSet("plugin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	port := fs.String("port", "", "host websocket port")
	uuid := fs.String("pluginUUID", "", "plugin instance identifier")
	event := fs.String("registerEvent", "", "registration event name")
	info := fs.String("info", "", "host information JSON")

	if err := fs.Parse(args); err != nil {
		return Args{}, &Error{Err: err}
	}

	switch {
	case *port == "":
		return Args{}, &Error{Err: ErrMissingPort}
	case *uuid == "":
		return Args{}, &Error{Err: ErrMissingPluginUUID}
	case *event == "":
		return Args{}, &Error{Err: ErrMissingRegisterEvent}
	}

	p, err := strconv.ParseUint(*port, 10, 16)
	if err != nil || p == 0 {
		return Args{}, &Error{Err: ErrInvalidPort, Detail: *port}
	}

	out := Args{
		Port:          int(p),
		PluginUUID:    *uuid,
		RegisterEvent: *event,
		RawInfo:       *info,
	}

	if *info != "" {
		if err := json.Unmarshal([]byte(*info), &out.Info); err != nil {
			return Args{}, &Error{Err: ErrInvalidInfo, Detail: err.Error()}
		}
	}

	return out, nil
}

// URL returns the websocket endpoint for a. The scheme and host default to
// ws and 127.0.0.1 and can be overridden through SD_WS_SCHEME and SD_WS_HOST.
func (a Args) URL() string {
	return a.URLFor(os.Getenv(EnvScheme), os.Getenv(EnvHost))
}

// URLFor returns the endpoint on the given scheme and host. Empty values
// take the defaults.
func (a Args) URLFor(scheme, host string) string {
	if scheme == "" {
		scheme = "ws"
	}
	if host == "" {
		host = "127.0.0.1"
	}

	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(a.Port))
}

// Argv renders a back into the command line a host would pass. Tools that
// launch plugins use it.
func (a Args) Argv() []string {
	argv := []string{
		"-port", strconv.Itoa(a.Port),
		"-pluginUUID", a.PluginUUID,
		"-registerEvent", a.RegisterEvent,
	}

	if a.RawInfo != "" {
		argv = append(argv, "-info", a.RawInfo)
	}

	return argv
}

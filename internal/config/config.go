// Package config defines the Config document gcfeeder loads from
// JSON/YAML/TOML: which profile feeds each adapter port, and the named
// profiles themselves (bridge backend, layer pipeline settings). The kong
// CLI command tree that surfaces it lives in internal/cmd; this package
// only holds data. A Config is immutable for the lifetime of a running
// session; changing it means stopping and rebuilding the affected
// feeder(s).
package config

import (
	"time"

	"github.com/sticks-io/gcfeeder/internal/calibration"
)

// Config is the full runtime document: which profile feeds each adapter
// port, and the named profiles themselves.
type Config struct {
	// Rumble globally enables writing rumble state back to the listener.
	// It is the single switch for all four ports; profiles have no rumble
	// setting of their own.
	Rumble bool `json:"rumble" yaml:"rumble" toml:"rumble" default:"true"`

	// DefaultProfile names the profile substituted for any port whose
	// configured profile name is missing from Profiles (the "config
	// defect" case: logged, never fatal).
	DefaultProfile string `json:"defaultProfile" yaml:"defaultProfile" toml:"defaultProfile" default:"default"`

	// Ports assigns a profile name to each of the four adapter ports, in
	// order (index 0 = port one).
	Ports [4]string `json:"ports" yaml:"ports" toml:"ports"`

	// Profiles is keyed by profile name; "default" should always exist.
	Profiles map[string]Profile `json:"profiles" yaml:"profiles" toml:"profiles"`
}

// Profile configures one feeder: its bridge backend and its layer
// pipeline.
type Profile struct {
	// Driver selects the bridge backend: "xbox360" (USB/IP virtual Xbox
	// 360 pad) or "uinput" (native Linux joypad).
	Driver string `json:"driver" yaml:"driver" toml:"driver" default:"xbox360"`

	// TriggerMode selects how analog trigger bytes and L/R digital
	// buttons combine: "analog", "digital", "combination", "stick_click".
	TriggerMode string `json:"triggerMode" yaml:"triggerMode" toml:"triggerMode" default:"analog"`

	// AnalogScale rescales both sticks about center. 1.0 is identity and
	// is skipped entirely by the pipeline (see mapping.ScaleEpsilon).
	AnalogScale float64 `json:"analogScale" yaml:"analogScale" toml:"analogScale" default:"1.0"`

	// Ess, if non-empty, enables ESS stick inversion for the named N64
	// title profile: "ootvc", "mmvc", or "z64gc".
	Ess string `json:"ess" yaml:"ess" toml:"ess"`

	Calibration CalibrationProfile `json:"calibration" yaml:"calibration" toml:"calibration" embed:"" prefix:"calibration."`

	Xbox360 Xbox360Profile `json:"xbox360" yaml:"xbox360" toml:"xbox360" embed:"" prefix:"xbox360."`
}

// Xbox360Profile configures the USB/IP Xbox-360-style bridge backend.
type Xbox360Profile struct {
	// Addr is the loopback listen address for the USB/IP host. Empty
	// picks an ephemeral port.
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
}

// CalibrationProfile carries the user-captured notch/trigger calibration,
// loaded from a config file (the on-screen calibration wizard that
// produces these values is out of the core's scope).
type CalibrationProfile struct {
	Enabled      bool                `json:"enabled" yaml:"enabled" toml:"enabled"`
	MainStick    *StickCalibration   `json:"mainStick,omitempty" yaml:"mainStick,omitempty" toml:"mainStick,omitempty"`
	CStick       *StickCalibration   `json:"cStick,omitempty" yaml:"cStick,omitempty" toml:"cStick,omitempty"`
	LeftTrigger  *TriggerCalibration `json:"leftTrigger,omitempty" yaml:"leftTrigger,omitempty" toml:"leftTrigger,omitempty"`
	RightTrigger *TriggerCalibration `json:"rightTrigger,omitempty" yaml:"rightTrigger,omitempty" toml:"rightTrigger,omitempty"`
}

// StickCalibration is the wire-format mirror of calibration.StickCalibration.
type StickCalibration struct {
	Notches [8][2]uint8 `json:"notches" yaml:"notches" toml:"notches"`
	Center  [2]uint8    `json:"center" yaml:"center" toml:"center"`
}

// ToCalibration converts the config document shape into the calibration
// package's working type.
func (s StickCalibration) ToCalibration() calibration.StickCalibration {
	var out calibration.StickCalibration
	for i, n := range s.Notches {
		out.Notches[i] = calibration.Point{X: n[0], Y: n[1]}
	}
	out.Center = calibration.Point{X: s.Center[0], Y: s.Center[1]}
	return out
}

// TriggerCalibration is the wire-format mirror of calibration.TriggerCalibration.
type TriggerCalibration struct {
	Min uint8 `json:"min" yaml:"min" toml:"min"`
	Max uint8 `json:"max" yaml:"max" toml:"max"`
}

// ToCalibration converts the config document shape into the calibration
// package's working type.
func (t TriggerCalibration) ToCalibration() calibration.TriggerCalibration {
	return calibration.TriggerCalibration{Min: t.Min, Max: t.Max}
}

// ConnectionTimeout is a fixed, not user-configurable per-USB-IP-connection
// deadline value. The xbox360 bridge's server does not read it and sets no
// read/write deadline on its connections.
const ConnectionTimeout = 5 * time.Second

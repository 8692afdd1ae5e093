// Package audio finds PulseAudio input sources and captures 16 kHz mono PCM
// from them.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device is one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

func (d Device) usable() bool { return d.Available && !d.Muted }

func (d Device) problem() string {
	if d.Muted {
		return "muted"
	}
	return "unavailable"
}

// Selection is the source chosen for capture. Warning is set when the
// preferred source could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("meddoc"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices reports the server's input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceState(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// SelectDevice resolves the audio.input and audio.fallback preferences
// against the live device list.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return choose(devices, input, fallback)
}

// preference is a normalized audio.input/audio.fallback term. The empty
// term and "default" both mean the server's default source.
type preference string

func newPreference(raw string) preference {
	return preference(strings.ToLower(strings.TrimSpace(raw)))
}

func (p preference) isDefault() bool { return p == "" || p == "default" }

func (p preference) resolve(devices []Device) (*Device, error) {
	for i := range devices {
		if p.isDefault() && devices[i].Default {
			return &devices[i], nil
		}
		if !p.isDefault() && deviceMatches(devices[i], string(p)) {
			return &devices[i], nil
		}
	}
	if p.isDefault() {
		return nil, errors.New("default audio source is unavailable")
	}
	return nil, fmt.Errorf("audio source %q did not match any device", string(p))
}

// choose prefers the input source when usable; otherwise it falls back and
// explains why in the selection warning.
func choose(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := newPreference(input).resolve(devices)
	if err != nil {
		return Selection{}, err
	}
	if primary.usable() {
		return Selection{Device: *primary}, nil
	}

	backup, err := newPreference(fallback).resolve(devices)
	if err != nil {
		return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, primary.problem(), err)
	}
	if !backup.usable() {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", backup.ID, backup.problem())
	}

	return Selection{
		Device:   *backup,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primary.problem(), backup.ID),
		Fallback: primary.ID != backup.ID,
	}, nil
}

// deviceMatches reports whether term occurs in the device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceState(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable checks the active port's availability. Pulse encodes it
// as unknown=0, no=1, yes=2; sources without ports are always available.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}

package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/mqtt2broadlink/internal/broadlink"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt2broadlink/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt2broadlink/internal/pronto"
	"github.com/nerrad567/mqtt2broadlink/internal/registry"
	"github.com/nerrad567/mqtt2broadlink/internal/store"
)

// Handler names.
const (
	HandlerSend           = "send"
	HandlerLearn          = "learn"
	HandlerDeviceAdd      = "device-add"
	HandlerDeviceRemove   = "device-remove"
	HandlerDeviceDiscover = "device-discover"
	HandlerCommandAdd     = "command-add"
	HandlerCommandPronto  = "command-add-from-pronto"
	HandlerCommandRemove  = "command-remove"
	HandlerLogLevel       = "log-level-set"
)

// routes returns the bridge's route table in match order.
//
// command/<name>/add_pronto precedes command/<name>/add because the add
// pattern, anchored only at the start, also matches add_pronto topics.
func (r *Router) routes(topics mqtt.Topics) []Route {
	prefix := regexp.QuoteMeta(topics.Prefix())
	const sample = "x"

	device := func(name, action string, h HandlerFunc) Route {
		return Route{
			Name:    name,
			Pattern: regexp.MustCompile("^" + prefix + "device/([^/]+)/" + regexp.QuoteMeta(action)),
			Sample:  topics.DeviceAction(sample, action),
			Handler: h,
		}
	}
	command := func(name, action string, h HandlerFunc) Route {
		return Route{
			Name:    name,
			Pattern: regexp.MustCompile("^" + prefix + "command/([^/]+)/" + regexp.QuoteMeta(action)),
			Sample:  topics.CommandAction(sample, action),
			Handler: h,
		}
	}

	return []Route{
		device(HandlerSend, "send", r.send),
		device(HandlerLearn, "learn", r.learn),
		device(HandlerDeviceAdd, "add", r.addDevice),
		device(HandlerDeviceRemove, "remove", r.removeDevice),
		device(HandlerDeviceDiscover, "discover", r.discoverDevice),
		command(HandlerCommandPronto, "add_pronto", r.addPronto),
		command(HandlerCommandAdd, "add", r.addCommand),
		command(HandlerCommandRemove, "remove", r.removeCommand),
		{
			Name:    HandlerLogLevel,
			Pattern: regexp.MustCompile("^" + prefix + "log/(level)"),
			Sample:  topics.LogLevel(),
			Handler: r.setLogLevel,
		},
	}
}

// send transmits the command named by payload on device subject.
func (r *Router) send(ctx context.Context, subject, payload string) error {
	name := strings.TrimSpace(payload)
	code, ok, err := r.deps.Commands.Command(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: command %q", ErrUnknownSubject, name)
	}

	dev, ok := r.deps.Devices.Get(ctx, subject)
	if !ok {
		return fmt.Errorf("%w: %q", ErrDeviceUnreachable, subject)
	}

	if err := dev.SendData(ctx, code); err != nil {
		// The session may be stale after a unit reboot; reopen next time.
		r.deps.Devices.Forget(subject)
		return fmt.Errorf("sending %q to %q: %w", name, subject, err)
	}

	r.log.Info("command sent", "device", subject, "command", name)
	return nil
}

// learn captures a code on device subject and stores it under payload.
func (r *Router) learn(ctx context.Context, subject, payload string) error {
	name := strings.TrimSpace(payload)
	if name == "" {
		return fmt.Errorf("%w: learn needs a command name", ErrInvalidPayload)
	}
	// Refuse names the store would reject before holding the device in
	// learning mode.
	if err := store.ValidateName(name); err != nil {
		return err
	}

	dev, ok := r.deps.Devices.Get(ctx, subject)
	if !ok {
		return fmt.Errorf("%w: %q", ErrDeviceUnreachable, subject)
	}

	r.log.Info("learning, press a button on the remote", "device", subject, "command", name)
	code, err := r.deps.Learner.Learn(ctx, dev)
	if err != nil {
		return fmt.Errorf("learning %q on %q: %w", name, subject, err)
	}

	if err := r.deps.Commands.PutCommand(name, code); err != nil {
		return err
	}
	r.log.Info("command learned", "device", subject, "command", name, "bytes", len(code))
	return nil
}

// addDevice registers "<type> <host> <mac>" under subject.
func (r *Router) addDevice(ctx context.Context, subject, payload string) error {
	id, err := registry.ParseIdentity(subject, payload)
	if err != nil {
		return err
	}

	_, ok, err := r.deps.Devices.Add(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		r.log.Warn("device registered but not reachable yet", "device", subject, "host", id.Host)
	}
	return nil
}

func (r *Router) removeDevice(ctx context.Context, subject, _ string) error {
	removed, err := r.deps.Devices.Remove(ctx, subject)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: device %q", ErrUnknownSubject, subject)
	}
	return nil
}

// discoverDevice probes the address in payload (broadcast when empty) and
// registers the first unit that authenticates under subject.
func (r *Router) discoverDevice(ctx context.Context, subject, payload string) error {
	target := strings.TrimSpace(payload)
	if target == "" {
		target = broadlink.BroadcastAddress
	}

	found, err := r.deps.Discover(ctx, broadlink.DiscoverOptions{
		Target:  target,
		LocalIP: r.deps.LocalIP,
		Timeout: r.deps.DiscoverTimeout,
	})
	if err != nil {
		return fmt.Errorf("discovering %s: %w", target, err)
	}

	for _, d := range found {
		if !broadlink.IsSupported(d.Type) {
			r.log.Info("skipping unsupported unit", "host", d.Host, "type", fmt.Sprintf("0x%04x", d.Type))
			continue
		}
		if d.Locked {
			r.log.Warn("skipping locked unit, unlock it in the vendor app", "host", d.Host, "mac", d.MAC.String())
			continue
		}

		id := registry.Identity{Name: subject, Type: d.Type, Host: d.Host, MAC: d.MAC}
		if err := r.deps.Devices.Adopt(ctx, id); err != nil {
			r.log.Warn("discovered unit did not authenticate", "host", d.Host, "model", d.Model(), "error", err)
			continue
		}

		r.log.Info("device discovered", "device", subject, "model", d.Model(), "identity", id.String())
		return nil
	}

	return fmt.Errorf("%w: no authenticated unit at %s (%d replies)", ErrDeviceUnreachable, target, len(found))
}

func (r *Router) addCommand(_ context.Context, subject, payload string) error {
	if err := r.deps.Commands.PutCommandHex(subject, payload); err != nil {
		return err
	}
	r.log.Info("command stored", "command", subject)
	return nil
}

// addPronto converts a Pronto code and stores it. Nothing is stored when
// conversion fails.
func (r *Router) addPronto(_ context.Context, subject, payload string) error {
	code, err := pronto.ToBroadlink(payload)
	if err != nil {
		return fmt.Errorf("converting %q: %w", subject, err)
	}
	if err := r.deps.Commands.PutCommand(subject, code); err != nil {
		return err
	}
	r.log.Info("pronto command stored", "command", subject, "bytes", len(code))
	return nil
}

func (r *Router) removeCommand(_ context.Context, subject, _ string) error {
	removed, err := r.deps.Commands.RemoveCommand(subject)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: command %q", ErrUnknownSubject, subject)
	}
	r.log.Info("command removed", "command", subject)
	return nil
}

// setLogLevel applies the level keyword in payload and persists it.
func (r *Router) setLogLevel(_ context.Context, _, payload string) error {
	if err := r.deps.Levels.SetLevel(payload); err != nil {
		return err
	}

	name := logging.LevelName(r.deps.Levels.Level())
	if err := r.deps.Commands.SetLogLevel(name); err != nil {
		return err
	}
	r.log.Info("log level changed", "level", name)
	return nil
}

package control

import (
	"context"
	"fmt"

	"github.com/nerrad567/homytech-sync/internal/device"
	"github.com/nerrad567/homytech-sync/internal/remote"
)

// Command targets, as reported to the Observer and accepted by Toggle.
const (
	TargetLight           = "light"
	TargetDoor            = "door"
	TargetClothesline     = "clothesline"
	TargetClotheslineMode = "mode"
)

// Backend sends device commands. *remote.Client satisfies it.
type Backend interface {
	SetLight(ctx context.Context, id int, cmd remote.Command) (remote.Ack, error)
	SetDoor(ctx context.Context, cmd remote.Command) (remote.Ack, error)
	SetClothesline(ctx context.Context, cmd remote.Command) (remote.Ack, error)
	SetClotheslineMode(ctx context.Context, mode string) (remote.Ack, error)
}

// Identity supplies the user name sent with commands. *session.Session
// satisfies it.
type Identity interface {
	User() string
}

// Observer is told the outcome of every command.
type Observer interface {
	CommandSent(target string, err error)
}

// Logger is the logging interface used by the Commander.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Commander turns toggle requests into backend commands.
//
// The desired action is the inverse of the current local state. Device
// state is never changed optimistically: the new value arrives later on
// the push channel. Only the clothesline mode is local and flips once the
// backend has accepted it.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Commander struct {
	backend  Backend
	store    *device.Store
	identity Identity
	logger   Logger
	observer Observer
}

// NewCommander creates a Commander.
func NewCommander(backend Backend, store *device.Store, identity Identity) *Commander {
	return &Commander{
		backend:  backend,
		store:    store,
		identity: identity,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *Commander) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// SetObserver sets the command observer.
func (c *Commander) SetObserver(observer Observer) {
	c.observer = observer
}

// Toggle dispatches by target name. index is used for TargetLight only.
func (c *Commander) Toggle(ctx context.Context, target string, index int) (remote.Ack, error) {
	switch target {
	case TargetLight:
		return c.ToggleLight(ctx, index)
	case TargetDoor:
		return c.ToggleDoor(ctx)
	case TargetClothesline:
		return c.ToggleClothesline(ctx)
	case TargetClotheslineMode:
		return c.ToggleClotheslineMode(ctx)
	default:
		return remote.Ack{}, fmt.Errorf("%w: unknown target %q", ErrCommandFailed, target)
	}
}

// ToggleLight switches light index (0-based) to the opposite of its
// current state.
func (c *Commander) ToggleLight(ctx context.Context, index int) (remote.Ack, error) {
	if index < 0 || index >= device.LightCount {
		return remote.Ack{}, fmt.Errorf("%w: index %d", device.ErrLightOutOfRange, index)
	}
	state, err := c.current()
	if err != nil {
		return remote.Ack{}, err
	}

	action := device.ActionOn
	if state.Lights[index] {
		action = device.ActionOff
	}
	ack, err := c.backend.SetLight(ctx, index+1, remote.Command{User: c.identity.User(), Action: action})
	return c.finish(TargetLight, action, ack, err)
}

// ToggleDoor opens a closed door or closes an open one.
func (c *Commander) ToggleDoor(ctx context.Context) (remote.Ack, error) {
	state, err := c.current()
	if err != nil {
		return remote.Ack{}, err
	}

	action := device.ActionOpen
	if state.Door {
		action = device.ActionClose
	}
	ack, err := c.backend.SetDoor(ctx, remote.Command{User: c.identity.User(), Action: action})
	return c.finish(TargetDoor, action, ack, err)
}

// ToggleClothesline extends a retracted clothesline or retracts an
// extended one.
func (c *Commander) ToggleClothesline(ctx context.Context) (remote.Ack, error) {
	state, err := c.current()
	if err != nil {
		return remote.Ack{}, err
	}

	action := device.ActionExtend
	if state.Clothesline.Extended {
		action = device.ActionRetract
	}
	ack, err := c.backend.SetClothesline(ctx, remote.Command{User: c.identity.User(), Action: action})
	return c.finish(TargetClothesline, action, ack, err)
}

// ToggleClotheslineMode switches between manual and auto. The local
// manual flag flips only after the backend accepts the change.
func (c *Commander) ToggleClotheslineMode(ctx context.Context) (remote.Ack, error) {
	state, err := c.current()
	if err != nil {
		return remote.Ack{}, err
	}

	manual := !state.Clothesline.ManualMode
	mode := device.ModeAuto
	if manual {
		mode = device.ModeManual
	}
	ack, err := c.backend.SetClotheslineMode(ctx, mode)
	ack, err = c.finish(TargetClotheslineMode, mode, ack, err)
	if err != nil {
		return ack, err
	}

	if _, err := c.store.SetManualMode(manual); err != nil {
		return ack, err
	}
	return ack, nil
}

// current returns the known state or ErrStateUnknown. A toggle relative
// to an unknown state would be a guess.
func (c *Commander) current() (device.State, error) {
	state, known := c.store.State()
	if !known {
		return device.State{}, device.ErrStateUnknown
	}
	return state, nil
}

func (c *Commander) finish(target, action string, ack remote.Ack, err error) (remote.Ack, error) {
	if c.observer != nil {
		c.observer.CommandSent(target, err)
	}
	if err != nil {
		c.logger.Error("device command failed", "target", target, "action", action, "error", err)
		return remote.Ack{}, fmt.Errorf("%w: %s %s: %w", ErrCommandFailed, target, action, err)
	}
	c.logger.Info("device command sent", "target", target, "action", action, "message", ack.Message)
	return ack, nil
}

package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spance/devoverlay/overlay/definitions"
)

// ElementSource produces the elements of the current device screen together
// with the resolution their bounds are expressed in.
type ElementSource interface {
	Dump(ctx context.Context) ([]definitions.SourceElement, definitions.Size, error)
}

// DeviceSource dumps a locally attached device.
type DeviceSource struct {
	Device   DeviceOperator
	DeviceID string
}

func (s DeviceSource) Dump(ctx context.Context) ([]definitions.SourceElement, definitions.Size, error) {
	elements, err := s.Device.DumpUI(ctx, s.DeviceID)
	if err != nil {
		return nil, definitions.Size{}, fmt.Errorf("dump ui failed: %w", err)
	}
	size, err := s.Device.GetScreenSize(ctx, s.DeviceID)
	if err != nil {
		return nil, definitions.Size{}, fmt.Errorf("get screen size failed: %w", err)
	}
	return elements, size, nil
}

// Session keeps an Overlay in sync with one device: elements come from
// Refresh, geometry from Resize, and Disconnect clears what was dumped.
type Session struct {
	Overlay *Overlay
	Source  ElementSource

	mu        sync.Mutex
	props     Props
	refreshes int
}

func NewSession(host definitions.HostCapability, source ElementSource, forwarder TapForwarder, config *definitions.OverlayConfig) *Session {
	s := &Session{
		Overlay: New(host, forwarder, config),
		Source:  source,
		props:   Props{Visible: true},
	}
	s.Overlay.Update(s.props)
	return s
}

// Refresh dumps the device and pushes the new elements and source resolution.
func (s *Session) Refresh(ctx context.Context) (int, error) {
	elements, resolution, err := s.Source.Dump(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to dump UI")
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshes++
	s.props.Elements = elements
	if resolution.Valid() {
		s.props.Geometry.SourceResolution = resolution
	}
	s.Overlay.Update(s.props)

	log.Debug().Int("refresh", s.refreshes).Int("elements", len(elements)).
		Float64("width", resolution.Width).Float64("height", resolution.Height).Msg("UI refreshed")
	return len(elements), nil
}

// Refreshes counts successful dumps.
func (s *Session) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Resize moves the panel. Returns whether the overlay changed.
func (s *Session) Resize(position definitions.Point, size definitions.Size) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.Geometry.ScreenPosition = position
	s.props.Geometry.ScreenSize = size
	return s.Overlay.Update(s.props)
}

// SetGeometry replaces the whole panel geometry, scale overrides included.
func (s *Session) SetGeometry(g definitions.PanelGeometry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.Geometry = g
	return s.Overlay.Update(s.props)
}

func (s *Session) SetVisible(visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.Visible = visible
	return s.Overlay.Update(s.props)
}

func (s *Session) SetOnElementClick(fn ElementClickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.OnElementClick = fn
	s.Overlay.Update(s.props)
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.props.Elements = nil
	s.Overlay.Clear()
}

// Disconnect drops the dumped elements; geometry and visibility are kept for
// the next device.
func (s *Session) Disconnect() {
	s.Clear()
	log.Info().Msg("session disconnected, elements cleared")
}

// ConnectDevice attaches a device through manager and dumps its elements.
// A failed dump is logged; the connection itself still succeeded.
func (s *Session) ConnectDevice(ctx context.Context, manager DeviceManager, address string) (string, error) {
	msg, err := manager.Connect(ctx, address)
	if err != nil {
		return msg, err
	}
	if _, err := s.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("address", address).Msg("connected, but the first dump failed")
	}
	return msg, nil
}

// DisconnectDevice detaches the device and drops its elements. Elements are
// cleared even when the manager reports an error, since the device state is
// unknown by then.
func (s *Session) DisconnectDevice(ctx context.Context, manager DeviceManager, address string) (string, error) {
	msg, err := manager.Disconnect(ctx, address)
	s.Disconnect()
	return msg, err
}

func (s *Session) Click(viewport definitions.Point) ClickResult {
	return s.Overlay.HandleClick(viewport)
}

func (s *Session) Render() *Frame {
	return s.Overlay.Render()
}

func (s *Session) Close() {
	s.Overlay.Close()
}

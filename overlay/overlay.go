package overlay

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/geometry"
	"github.com/spance/devoverlay/overlay/helper"
)

// TapForwarder delivers a tap to the device behind the panel.
type TapForwarder interface {
	Tap(ctx context.Context, req definitions.TapRequest) (*definitions.TapResponse, error)
}

// ElementClickFunc receives the element the user clicked.
type ElementClickFunc func(el definitions.ScaledElement)

// Props is everything the caller pushes into an Overlay.
type Props struct {
	Elements       []definitions.SourceElement
	Geometry       definitions.PanelGeometry
	Visible        bool
	OnElementClick ElementClickFunc
}

type ClickKind int

const (
	ClickIgnored ClickKind = iota
	ClickRejected
	ClickElement
	ClickBase
)

func (k ClickKind) String() string {
	switch k {
	case ClickRejected:
		return "rejected"
	case ClickElement:
		return "element"
	case ClickBase:
		return "base"
	default:
		return "ignored"
	}
}

type ClickResult struct {
	Kind      ClickKind
	Element   *definitions.ScaledElement
	Source    definitions.DevicePoint
	Forwarded bool
	PulseID   string
	ReadoutID string
}

// Pulse is the short ring drawn where the user clicked.
type Pulse struct {
	ID        string            `json:"id"`
	Center    definitions.Point `json:"center"`
	Radius    float64           `json:"radius"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Readout shows the device coordinates a click resolved to.
type Readout struct {
	ID        string            `json:"id"`
	Position  definitions.Point `json:"position"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Frame is a render snapshot. Positions are panel-local; Origin places the
// panel in the viewport.
type Frame struct {
	Origin   definitions.Point           `json:"origin"`
	Size     definitions.Size            `json:"size"`
	Content  geometry.ContentRect        `json:"content"`
	Elements []definitions.ScaledElement `json:"elements"`
	Pulses   []Pulse                     `json:"pulses"`
	Readouts []Readout                   `json:"readouts"`
}

type Overlay struct {
	mu sync.Mutex

	host      definitions.HostCapability
	forwarder TapForwarder
	config    *definitions.OverlayConfig
	style     constants.Style

	props       Props
	initialized bool
	projector   *geometry.Projector
	scaled      []definitions.ScaledElement

	pulses   []Pulse
	readouts []Readout
	timers   map[string]*time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// New creates an overlay bound to one host. forwarder may be nil, in which
// case clicks are resolved but never forwarded.
func New(host definitions.HostCapability, forwarder TapForwarder, config *definitions.OverlayConfig) *Overlay {
	ctx, cancel := context.WithCancel(context.Background())
	return &Overlay{
		host:      host,
		forwarder: forwarder,
		config:    config.WithDefaults(),
		style:     constants.MustStyle(),
		timers:    map[string]*time.Timer{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Update replaces the props and reports whether anything changed. Projection
// is recomputed only when elements, visibility, geometry or the click
// callback differ from the previous props.
func (o *Overlay) Update(props Props) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}

	changed := !o.initialized ||
		props.Visible != o.props.Visible ||
		!props.Geometry.Equal(o.props.Geometry) ||
		funcID(props.OnElementClick) != funcID(o.props.OnElementClick) ||
		!reflect.DeepEqual(props.Elements, o.props.Elements)

	props.Elements = slices.Clone(props.Elements)
	o.props = props
	o.initialized = true

	if changed {
		o.reprojectLocked()
	}
	return changed
}

// Clear drops all elements, for example after the device disconnects.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.props.Elements = nil
	o.scaled = nil
}

func (o *Overlay) reprojectLocked() {
	o.projector = nil
	o.scaled = nil

	if !o.props.Visible {
		return
	}

	p, scaled, err := Project(o.props.Elements, o.props.Geometry, o.style)
	if err != nil {
		log.Warn().Str("host", o.host.HostName).Err(err).Msg(helper.GetMessage("invalid_geometry", o.config.Lang))
		return
	}
	o.projector = p
	o.scaled = scaled
}

// Project validates g and projects the usable elements into panel space.
// Colors follow the position in the filtered list.
func Project(elements []definitions.SourceElement, g definitions.PanelGeometry, style constants.Style) (*geometry.Projector, []definitions.ScaledElement, error) {
	p, err := geometry.NewProjector(g)
	if err != nil {
		return nil, nil, err
	}

	usable := lo.Filter(elements, func(el definitions.SourceElement, _ int) bool {
		if !el.Bounds.Valid() {
			log.Warn().Str("id", el.ID).Interface("bounds", el.Bounds).Msg("dropping element with unusable bounds")
			return false
		}
		return true
	})

	scaled := lo.Map(usable, func(el definitions.SourceElement, i int) definitions.ScaledElement {
		r := p.Forward(el.Bounds)
		return definitions.ScaledElement{
			ID:     el.ID,
			X:      r.X,
			Y:      r.Y,
			Width:  r.Width,
			Height: r.Height,
			Color:  style.ColorAt(i),
			Label:  helper.Truncate(el.Label, style.LabelLength),
			Source: el.Bounds,
		}
	})
	return p, scaled, nil
}

// Render returns the current frame, or nil when the overlay is hidden or the
// geometry is incomplete.
func (o *Overlay) Render() *Frame {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || !o.props.Visible || o.projector == nil {
		return nil
	}
	return &Frame{
		Origin:   o.projector.Origin(),
		Size:     o.projector.Panel(),
		Content:  o.projector.Content(),
		Elements: slices.Clone(o.scaled),
		Pulses:   slices.Clone(o.pulses),
		Readouts: slices.Clone(o.readouts),
	}
}

// HandleClick dispatches a viewport click. Element hits go to the click
// callback, or are forwarded as a tap on the element center when no callback
// is set. Other clicks inside the content area are forwarded as taps.
func (o *Overlay) HandleClick(viewport definitions.Point) ClickResult {
	o.mu.Lock()

	if o.closed || !o.props.Visible || o.projector == nil {
		o.mu.Unlock()
		return ClickResult{Kind: ClickIgnored}
	}

	local := o.projector.PanelLocal(viewport)
	result := ClickResult{}
	var callback ElementClickFunc

	if el, ok := o.hitLocked(local); ok {
		center := el.Source.Center()
		result.Kind = ClickElement
		result.Element = &el
		result.Source = o.projector.SourcePixel(center)
		callback = o.props.OnElementClick
	} else {
		src, err := o.projector.ToSource(viewport)
		if err != nil {
			o.mu.Unlock()
			log.Debug().Str("host", o.host.HostName).Float64("x", viewport.X).Float64("y", viewport.Y).Err(err).
				Msg(helper.GetMessage("outside_content", o.config.Lang))
			return ClickResult{Kind: ClickRejected}
		}
		result.Kind = ClickBase
		result.Source = src
	}

	result.PulseID = o.addPulseLocked(local)
	result.ReadoutID = o.addReadoutLocked(local, result.Source)

	forward := callback == nil && o.forwarder != nil
	if forward {
		o.wg.Add(1)
	}
	o.mu.Unlock()

	switch {
	case callback != nil:
		callback(*result.Element)
	case forward:
		result.Forwarded = true
		go o.forward(result.Source)
	default:
		log.Warn().Str("host", o.host.HostName).Msg("no tap forwarder configured, click not delivered")
	}
	return result
}

// hitLocked returns the topmost element under a panel-local point. Later
// elements are drawn above earlier ones.
func (o *Overlay) hitLocked(local definitions.Point) (definitions.ScaledElement, bool) {
	for i := len(o.scaled) - 1; i >= 0; i-- {
		if o.scaled[i].Rect().Contains(local) {
			return o.scaled[i], true
		}
	}
	return definitions.ScaledElement{}, false
}

func (o *Overlay) forward(src definitions.DevicePoint) {
	defer o.wg.Done()

	ctx, cancel := context.WithTimeout(o.ctx, o.config.TapTimeout)
	defer cancel()

	req := definitions.TapRequest{Host: o.host.HostName, DeviceID: o.host.DeviceID, X: src.X, Y: src.Y}
	resp, err := o.forwarder.Tap(ctx, req)
	if err != nil {
		log.Error().Str("host", req.Host).Int("x", req.X).Int("y", req.Y).Err(err).Msg(helper.GetMessage("tap_failed", o.config.Lang))
		return
	}
	if resp != nil && !resp.Success {
		log.Error().Str("host", req.Host).Int("x", req.X).Int("y", req.Y).Str("error", resp.Error).Msg(helper.GetMessage("tap_failed", o.config.Lang))
		return
	}
	log.Debug().Str("host", req.Host).Int("x", req.X).Int("y", req.Y).Msg(helper.GetMessage("tap_forwarded", o.config.Lang))
}

func (o *Overlay) addPulseLocked(center definitions.Point) string {
	id := uuid.NewString()
	o.pulses = append(o.pulses, Pulse{ID: id, Center: center, Radius: o.style.PulseRadius, CreatedAt: time.Now()})
	o.timers[id] = time.AfterFunc(o.config.PulseDuration, func() { o.expire(id) })
	return id
}

func (o *Overlay) addReadoutLocked(at definitions.Point, src definitions.DevicePoint) string {
	id := uuid.NewString()
	o.readouts = append(o.readouts, Readout{ID: id, Position: at, Text: helper.FormatCoordinates(src.X, src.Y), CreatedAt: time.Now()})
	o.timers[id] = time.AfterFunc(o.config.ReadoutDuration, func() { o.expire(id) })
	return id
}

// expire removes exactly the entry its timer was created for.
func (o *Overlay) expire(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.timers, id)
	o.pulses = lo.Reject(o.pulses, func(p Pulse, _ int) bool { return p.ID == id })
	o.readouts = lo.Reject(o.readouts, func(r Readout, _ int) bool { return r.ID == id })
}

// Close stops pending timers, cancels in-flight taps and waits for them.
// It is safe to call more than once.
func (o *Overlay) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
	o.pulses = nil
	o.readouts = nil
	o.scaled = nil
	o.projector = nil
	o.cancel()
	o.mu.Unlock()

	o.wg.Wait()
}

func funcID(fn ElementClickFunc) uintptr {
	if fn == nil {
		return 0
	}
	return reflect.ValueOf(fn).Pointer()
}

package overlay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForwarder struct {
	mu    sync.Mutex
	reqs  []definitions.TapRequest
	err   error
	block chan struct{}
}

func (f *fakeForwarder) Tap(ctx context.Context, req definitions.TapRequest) (*definitions.TapResponse, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &definitions.TapResponse{Success: true}, nil
}

func (f *fakeForwarder) requests() []definitions.TapRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]definitions.TapRequest(nil), f.reqs...)
}

var testHost = definitions.HostCapability{HostName: "pixel-7", DeviceID: "emulator-5554"}

func phoneGeometry() definitions.PanelGeometry {
	return definitions.PanelGeometry{
		ScreenPosition:   definitions.Point{X: 40, Y: 80},
		ScreenSize:       definitions.Size{Width: 300, Height: 600},
		SourceResolution: definitions.Size{Width: 1080, Height: 2340},
	}
}

func headerElement() definitions.SourceElement {
	return definitions.SourceElement{ID: "header", Bounds: definitions.RectFromEdges(0, 0, 108, 117), Label: "Header"}
}

func newTestOverlay(t *testing.T, fwd TapForwarder, cfg *definitions.OverlayConfig) *Overlay {
	t.Helper()
	o := New(testHost, fwd, cfg)
	t.Cleanup(o.Close)
	return o
}

func TestProject_ColorsCycleByIndex(t *testing.T) {
	style := constants.MustStyle()
	elements := lo.Times(7, func(i int) definitions.SourceElement {
		return definitions.SourceElement{ID: fmt.Sprintf("el-%d", i), Bounds: definitions.Rect{X: float64(i * 10), Y: 0, Width: 5, Height: 5}}
	})

	_, scaled, err := Project(elements, phoneGeometry(), style)
	require.NoError(t, err)
	require.Len(t, scaled, 7)

	assert.Equal(t, scaled[0].Color, scaled[5].Color)
	assert.Equal(t, scaled[1].Color, scaled[6].Color)
	colors := lo.Map(scaled[:5], func(el definitions.ScaledElement, _ int) string { return el.Color })
	assert.Len(t, lo.Uniq(colors), 5)
}

func TestProject_DropsUnusableBeforeColoring(t *testing.T) {
	elements := []definitions.SourceElement{
		{ID: "zero", Bounds: definitions.RectFromEdges(10, 10, 10, 20)},
		{ID: "a", Bounds: definitions.Rect{Width: 10, Height: 10}},
		{ID: "b", Bounds: definitions.Rect{X: 20, Width: 10, Height: 10}},
	}
	style := constants.MustStyle()

	_, scaled, err := Project(elements, phoneGeometry(), style)
	require.NoError(t, err)
	require.Len(t, scaled, 2)
	assert.Equal(t, "a", scaled[0].ID)
	assert.Equal(t, style.ColorAt(0), scaled[0].Color)
	assert.Equal(t, style.ColorAt(1), scaled[1].Color)
}

func TestProject_TruncatesLabels(t *testing.T) {
	el := headerElement()
	el.Label = "android.widget.FrameLayout"

	_, scaled, err := Project([]definitions.SourceElement{el}, phoneGeometry(), constants.MustStyle())
	require.NoError(t, err)
	assert.Equal(t, "android.widget.Frame…", scaled[0].Label)
}

func TestOverlay_RenderScenario(t *testing.T) {
	o := newTestOverlay(t, nil, nil)
	o.Update(Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: phoneGeometry(), Visible: true})

	frame := o.Render()
	require.NotNil(t, frame)
	assert.Equal(t, definitions.Point{X: 40, Y: 80}, frame.Origin)
	assert.InDelta(t, 600, frame.Content.Height, 1e-9)
	assert.InDelta(t, 276.92, frame.Content.Width, 0.01)
	assert.InDelta(t, 11.54, frame.Content.OffsetX, 0.01)

	require.Len(t, frame.Elements, 1)
	el := frame.Elements[0]
	assert.InDelta(t, 11.54, el.X, 0.01)
	assert.InDelta(t, 0, el.Y, 1e-9)
	assert.InDelta(t, 27.69, el.Width, 0.01)
	assert.InDelta(t, 30, el.Height, 1e-9)
}

func TestOverlay_HiddenRendersNothing(t *testing.T) {
	fwd := &fakeForwarder{}
	o := newTestOverlay(t, fwd, nil)
	o.Update(Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: phoneGeometry(), Visible: false})

	assert.Nil(t, o.Render())
	assert.Equal(t, ClickIgnored, o.HandleClick(definitions.Point{X: 200, Y: 380}).Kind)

	o.Close()
	assert.Empty(t, fwd.requests())
}

func TestOverlay_IncompleteGeometryClearsElements(t *testing.T) {
	o := newTestOverlay(t, nil, nil)
	o.Update(Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: phoneGeometry(), Visible: true})
	require.NotNil(t, o.Render())

	broken := phoneGeometry()
	broken.SourceResolution = definitions.Size{}
	assert.True(t, o.Update(Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: broken, Visible: true}))
	assert.Nil(t, o.Render())
	assert.Equal(t, ClickIgnored, o.HandleClick(definitions.Point{X: 200, Y: 380}).Kind)
}

func onClickA(definitions.ScaledElement) {}
func onClickB(definitions.ScaledElement) {}

func TestOverlay_UpdateReportsChanges(t *testing.T) {
	o := newTestOverlay(t, nil, nil)
	props := Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: phoneGeometry(), Visible: true, OnElementClick: onClickA}

	assert.True(t, o.Update(props))
	assert.False(t, o.Update(props))

	same := props
	same.Elements = []definitions.SourceElement{headerElement()}
	assert.False(t, o.Update(same), "deep-equal elements are not a change")

	other := props
	other.OnElementClick = onClickB
	assert.True(t, o.Update(other))

	moved := other
	moved.Geometry.ScreenPosition.X++
	assert.True(t, o.Update(moved))

	hidden := moved
	hidden.Visible = false
	assert.True(t, o.Update(hidden))
}

func TestOverlay_BrokenGeometryIsNotAChange(t *testing.T) {
	o := newTestOverlay(t, nil, nil)
	g := phoneGeometry()
	g.ScreenSize.Width = math.NaN()
	props := Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: g, Visible: true}

	assert.True(t, o.Update(props))
	assert.Nil(t, o.Render())
	assert.False(t, o.Update(props), "NaN fields compare equal to themselves")
}

func TestOverlay_OversizedElementTapStaysOnScreen(t *testing.T) {
	fwd := &fakeForwarder{}
	o := newTestOverlay(t, fwd, nil)
	o.Update(Props{
		Elements: []definitions.SourceElement{{ID: "huge", Bounds: definitions.Rect{X: -50, Y: 0, Width: 1e300, Height: 1e300}}},
		Geometry: phoneGeometry(),
		Visible:  true,
	})

	res := o.HandleClick(definitions.Point{X: 190, Y: 380})
	require.Equal(t, ClickElement, res.Kind)
	assert.Equal(t, definitions.DevicePoint{X: 1079, Y: 2339}, res.Source)
}

func TestOverlay_ElementClickCallback(t *testing.T) {
	fwd := &fakeForwarder{}
	o := newTestOverlay(t, fwd, nil)

	var clicked []definitions.ScaledElement
	o.Update(Props{
		Elements:       []definitions.SourceElement{headerElement()},
		Geometry:       phoneGeometry(),
		Visible:        true,
		OnElementClick: func(el definitions.ScaledElement) { clicked = append(clicked, el) },
	})

	res := o.HandleClick(definitions.Point{X: 40 + 20, Y: 80 + 10})
	assert.Equal(t, ClickElement, res.Kind)
	assert.False(t, res.Forwarded)
	require.Len(t, clicked, 1)
	assert.Equal(t, "header", clicked[0].ID)

	o.Close()
	assert.Empty(t, fwd.requests())
}

func TestOverlay_ElementClickWithoutCallbackTapsCenter(t *testing.T) {
	fwd := &fakeForwarder{}
	o := newTestOverlay(t, fwd, nil)
	o.Update(Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: phoneGeometry(), Visible: true})

	res := o.HandleClick(definitions.Point{X: 40 + 20, Y: 80 + 10})
	assert.Equal(t, ClickElement, res.Kind)
	assert.True(t, res.Forwarded)
	assert.Equal(t, definitions.DevicePoint{X: 54, Y: 59}, res.Source)

	require.Eventually(t, func() bool { return len(fwd.requests()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, definitions.TapRequest{Host: "pixel-7", DeviceID: "emulator-5554", X: 54, Y: 59}, fwd.requests()[0])
}

func TestOverlay_TopmostElementWins(t *testing.T) {
	o := newTestOverlay(t, nil, nil)
	var got string
	o.Update(Props{
		Elements: []definitions.SourceElement{
			{ID: "container", Bounds: definitions.RectFromEdges(0, 0, 1080, 1000)},
			{ID: "button", Bounds: definitions.RectFromEdges(0, 0, 108, 117)},
		},
		Geometry:       phoneGeometry(),
		Visible:        true,
		OnElementClick: func(el definitions.ScaledElement) { got = el.ID },
	})

	o.HandleClick(definitions.Point{X: 40 + 20, Y: 80 + 10})
	assert.Equal(t, "button", got)
}

func TestOverlay_BaseClickForwardsTap(t *testing.T) {
	fwd := &fakeForwarder{}
	o := newTestOverlay(t, fwd, nil)
	o.Update(Props{Geometry: phoneGeometry(), Visible: true})

	frame := o.Render()
	require.NotNil(t, frame)
	center := definitions.Point{
		X: 40 + frame.Content.OffsetX + frame.Content.Width/2,
		Y: 80 + frame.Content.OffsetY + frame.Content.Height/2,
	}

	res := o.HandleClick(center)
	assert.Equal(t, ClickBase, res.Kind)
	assert.True(t, res.Forwarded)
	assert.Equal(t, definitions.DevicePoint{X: 540, Y: 1170}, res.Source)

	require.Eventually(t, func() bool { return len(fwd.requests()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 540, fwd.requests()[0].X)
	assert.Equal(t, 1170, fwd.requests()[0].Y)
}

func TestOverlay_RejectsLetterboxClicks(t *testing.T) {
	fwd := &fakeForwarder{}
	o := newTestOverlay(t, fwd, nil)
	o.Update(Props{Geometry: phoneGeometry(), Visible: true})

	frame := o.Render()
	require.NotNil(t, frame)
	contentOrigin := definitions.Point{X: 40 + frame.Content.OffsetX, Y: 80 + frame.Content.OffsetY}

	for _, local := range []definitions.Point{{X: -5, Y: 5}, {X: frame.Content.Width + 1, Y: 5}} {
		res := o.HandleClick(definitions.Point{X: contentOrigin.X + local.X, Y: contentOrigin.Y + local.Y})
		assert.Equal(t, ClickRejected, res.Kind)
		assert.Empty(t, res.PulseID)
	}

	after := o.Render()
	assert.Empty(t, after.Pulses)
	assert.Empty(t, after.Readouts)

	o.Close()
	assert.Empty(t, fwd.requests())
}

func TestOverlay_TransientsExpireIndependently(t *testing.T) {
	o := newTestOverlay(t, nil, &definitions.OverlayConfig{
		PulseDuration:   30 * time.Millisecond,
		ReadoutDuration: 300 * time.Millisecond,
	})
	o.Update(Props{Geometry: phoneGeometry(), Visible: true})

	first := o.HandleClick(definitions.Point{X: 200, Y: 380})
	second := o.HandleClick(definitions.Point{X: 210, Y: 390})
	assert.NotEqual(t, first.PulseID, second.PulseID)
	assert.NotEqual(t, first.ReadoutID, second.ReadoutID)

	frame := o.Render()
	assert.Len(t, frame.Pulses, 2)
	require.Len(t, frame.Readouts, 2)
	assert.Equal(t, fmt.Sprintf("(%d, %d)", first.Source.X, first.Source.Y), frame.Readouts[0].Text)

	require.Eventually(t, func() bool { return len(o.Render().Pulses) == 0 }, time.Second, 5*time.Millisecond)
	assert.Len(t, o.Render().Readouts, 2, "readouts outlive pulses")

	require.Eventually(t, func() bool { return len(o.Render().Readouts) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestOverlay_TapFailureIsNotSurfaced(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("device offline")}
	o := newTestOverlay(t, fwd, nil)
	o.Update(Props{Geometry: phoneGeometry(), Visible: true})

	res := o.HandleClick(definitions.Point{X: 200, Y: 380})
	assert.Equal(t, ClickBase, res.Kind)
	assert.True(t, res.Forwarded)
	require.Eventually(t, func() bool { return len(fwd.requests()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestOverlay_ClearDropsElements(t *testing.T) {
	o := newTestOverlay(t, nil, nil)
	props := Props{Elements: []definitions.SourceElement{headerElement()}, Geometry: phoneGeometry(), Visible: true}
	o.Update(props)
	o.Clear()

	frame := o.Render()
	require.NotNil(t, frame)
	assert.Empty(t, frame.Elements)

	assert.True(t, o.Update(props), "elements differ from the cleared state")
	assert.Len(t, o.Render().Elements, 1)
}

func TestOverlay_CloseCancelsAndIsIdempotent(t *testing.T) {
	fwd := &fakeForwarder{block: make(chan struct{})}
	o := New(testHost, fwd, &definitions.OverlayConfig{TapTimeout: time.Minute})
	o.Update(Props{Geometry: phoneGeometry(), Visible: true})

	res := o.HandleClick(definitions.Point{X: 200, Y: 380})
	require.True(t, res.Forwarded)

	done := make(chan struct{})
	go func() {
		o.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the in-flight tap")
	}

	assert.NotPanics(t, o.Close)
	assert.Nil(t, o.Render())
	assert.False(t, o.Update(Props{Geometry: phoneGeometry(), Visible: true}))
	assert.Equal(t, ClickIgnored, o.HandleClick(definitions.Point{X: 200, Y: 380}).Kind)
	assert.Empty(t, fwd.requests())
}

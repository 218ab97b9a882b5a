package overlay_test

import (
	"context"
	"fmt"

	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay"
	"github.com/spance/devoverlay/overlay/definitions"
)

type printForwarder struct{}

func (printForwarder) Tap(ctx context.Context, req definitions.TapRequest) (*definitions.TapResponse, error) {
	fmt.Printf("tap %s at %d,%d\n", req.Host, req.X, req.Y)
	return &definitions.TapResponse{Success: true}, nil
}

func ExampleProject() {
	panel := definitions.PanelGeometry{
		ScreenPosition:   definitions.Point{X: 40, Y: 80},
		ScreenSize:       definitions.Size{Width: 300, Height: 600},
		SourceResolution: definitions.Size{Width: 1080, Height: 2340},
	}
	elements := []definitions.SourceElement{
		{ID: "header", Bounds: definitions.RectFromEdges(0, 0, 108, 117), Label: "Header"},
	}

	p, scaled, err := overlay.Project(elements, panel, constants.MustStyle())
	if err != nil {
		panic(err)
	}
	c := p.Content()
	fmt.Printf("content %.2f,%.2f %.2fx%.2f\n", c.OffsetX, c.OffsetY, c.Width, c.Height)
	for _, el := range scaled {
		fmt.Printf("%s %.2f,%.2f %.2fx%.2f %s\n", el.ID, el.X, el.Y, el.Width, el.Height, el.Color)
	}
	// Output:
	// content 11.54,0.00 276.92x600.00
	// header 11.54,0.00 27.69x30.00 #FF6B6B
}

func ExampleOverlay_HandleClick() {
	o := overlay.New(definitions.HostCapability{HostName: "pixel-7"}, printForwarder{}, nil)
	o.Update(overlay.Props{
		Geometry: definitions.PanelGeometry{
			ScreenPosition:   definitions.Point{X: 40, Y: 80},
			ScreenSize:       definitions.Size{Width: 300, Height: 600},
			SourceResolution: definitions.Size{Width: 1080, Height: 2340},
		},
		Visible: true,
	})

	// left letterbox bar
	fmt.Println(o.HandleClick(definitions.Point{X: 45, Y: 380}).Kind)

	res := o.HandleClick(definitions.Point{X: 190, Y: 380})
	// Close waits for the forwarded tap
	o.Close()
	fmt.Println(res.Kind)
	// Output:
	// rejected
	// tap pixel-7 at 540,1170
	// base
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spance/devoverlay/config"
	"github.com/spance/devoverlay/constants"
	"github.com/spance/devoverlay/overlay"
	"github.com/spance/devoverlay/overlay/annotate"
	"github.com/spance/devoverlay/overlay/definitions"
	"github.com/spance/devoverlay/overlay/geometry"
	"github.com/spance/devoverlay/overlay/helper"
	"github.com/spance/devoverlay/overlay/remote"
	"github.com/spance/devoverlay/server"
	"github.com/spance/devoverlay/utils"
	"github.com/spf13/cobra"
)

var Version = "dev"

func msg(key string) string {
	return helper.GetMessage(key, cfg.Lang)
}

func readElements(path string) ([]definitions.SourceElement, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return helper.ParseElements(data)
}

// parsePoint accepts "x y" as two args or a single "x,y".
func parsePoint(args []string) (definitions.Point, error) {
	if len(args) == 1 {
		args = strings.Split(args[0], ",")
	}
	if len(args) != 2 {
		return definitions.Point{}, fmt.Errorf("expected x and y, got %q", strings.Join(args, " "))
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
	if err != nil {
		return definitions.Point{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
	if err != nil {
		return definitions.Point{}, fmt.Errorf("invalid y: %w", err)
	}
	return definitions.Point{X: x, Y: y}, nil
}

func requireHost() (definitions.HostCapability, error) {
	host := cfg.Host()
	if host.HostName == "" {
		return host, errors.New("--host is required to reach the backend")
	}
	return host, nil
}

func newDevice() (overlay.Device, error) {
	return overlay.CreateDevice(cfg.Device.Type, cfg.Device.WdaURL)
}

// newForwarder returns the local device or the remote backend.
func newForwarder(local bool) (overlay.TapForwarder, error) {
	if local {
		device, err := newDevice()
		if err != nil {
			return nil, err
		}
		return overlay.DeviceForwarder{Device: device}, nil
	}
	host, err := requireHost()
	if err != nil {
		return nil, err
	}
	client := remote.NewClient(cfg.Overlay.ServerURL, host, cfg.OverlayTiming().TapTimeout)
	log.Debug().Str("endpoint", client.TapURL()).Msg("forwarding taps to backend")
	return client, nil
}

// dryRunForwarder only logs, used when rendering simulated clicks.
type dryRunForwarder struct{}

func (dryRunForwarder) Tap(ctx context.Context, req definitions.TapRequest) (*definitions.TapResponse, error) {
	log.Info().Int("x", req.X).Int("y", req.Y).Msg("dry run, tap not sent")
	return &definitions.TapResponse{Success: true}, nil
}

func projectCmd() *cobra.Command {
	var elementsPath, panelPath, outPath string
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project element bounds onto a panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			elements, err := readElements(elementsPath)
			if err != nil {
				return err
			}
			panel, err := config.LoadPanel(panelPath)
			if err != nil {
				return err
			}

			p, scaled, err := overlay.Project(elements, panel, constants.MustStyle())
			if err != nil {
				log.Warn().Err(err).Msg(msg("invalid_geometry"))
				return err
			}
			sx, sy := p.Scale()
			result := server.ProjectResponse{
				Elements: scaled,
				Content:  p.Content(),
				ScaleX:   sx,
				ScaleY:   sy,
				Dropped:  len(elements) - len(scaled),
			}
			log.Info().Int("elements", len(scaled)).Int("dropped", result.Dropped).
				Str("content", utils.JsonString(result.Content)).Msg(msg("content_rect"))
			if result.Dropped > 0 {
				log.Warn().Int("count", result.Dropped).Msg(msg("dropped"))
			}

			if outPath != "" {
				if err := utils.WriteJsonFile(outPath, result); err != nil {
					return err
				}
				log.Info().Str("path", outPath).Msg(msg("saved"))
				return nil
			}
			fmt.Println(utils.JsonIndent(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&elementsPath, "elements", "", "Element dump (JSON array or {\"elements\": [...]})")
	cmd.Flags().StringVar(&panelPath, "panel", "", "Panel geometry file (YAML or JSON)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the result to a file instead of stdout")
	_ = cmd.MarkFlagRequired("elements")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func resolveCmd() *cobra.Command {
	var panelPath string
	cmd := &cobra.Command{
		Use:   "resolve X Y",
		Short: "Map a viewport click to device pixels",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			click, err := parsePoint(args)
			if err != nil {
				return err
			}
			panel, err := config.LoadPanel(panelPath)
			if err != nil {
				return err
			}
			p, err := geometry.NewProjector(panel)
			if err != nil {
				log.Warn().Err(err).Msg(msg("invalid_geometry"))
				return err
			}

			src, err := p.ToSource(click)
			if errors.Is(err, definitions.ErrOutsideContent) {
				log.Warn().Float64("x", click.X).Float64("y", click.Y).Msg(msg("outside_content"))
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(helper.FormatCoordinates(src.X, src.Y))
			return nil
		},
	}
	cmd.Flags().StringVar(&panelPath, "panel", "", "Panel geometry file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func tapCmd() *cobra.Command {
	var panelPath, elementsPath string
	var local bool
	cmd := &cobra.Command{
		Use:   "tap X Y",
		Short: "Tap through the overlay, or tap device pixels directly without --panel",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := parsePoint(args)
			if err != nil {
				return err
			}
			fwd, err := newForwarder(local)
			if err != nil {
				return err
			}

			if panelPath == "" {
				req := definitions.TapRequest{Host: cfg.Server.HostName, DeviceID: cfg.Device.ID, X: int(pt.X), Y: int(pt.Y)}
				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.OverlayTiming().TapTimeout)
				defer cancel()
				if _, err := fwd.Tap(ctx, req); err != nil {
					log.Error().Err(err).Msg(msg("tap_failed"))
					return err
				}
				log.Info().Str("at", helper.FormatCoordinates(req.X, req.Y)).Msg(msg("tap_forwarded"))
				return nil
			}

			panel, err := config.LoadPanel(panelPath)
			if err != nil {
				return err
			}
			elements, err := readElements(elementsPath)
			if err != nil {
				return err
			}

			o := overlay.New(cfg.Host(), fwd, cfg.OverlayTiming())
			o.Update(overlay.Props{Elements: elements, Geometry: panel, Visible: true})
			res := o.HandleClick(pt)
			// Close waits for the forwarded tap
			o.Close()

			switch res.Kind {
			case overlay.ClickRejected:
				log.Warn().Msg(msg("outside_content"))
			case overlay.ClickIgnored:
				log.Warn().Msg(msg("invalid_geometry"))
			default:
				ev := log.Info().Str("kind", res.Kind.String()).Str("at", helper.FormatCoordinates(res.Source.X, res.Source.Y))
				if res.Element != nil {
					ev = ev.Str("element", res.Element.ID).Str("label", res.Element.Label)
				}
				ev.Msg(msg("tap_forwarded"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&panelPath, "panel", "", "Panel geometry; X Y are then viewport coordinates")
	cmd.Flags().StringVar(&elementsPath, "elements", "", "Element dump used for hit testing")
	cmd.Flags().BoolVar(&local, "local", false, "Tap the attached device instead of the backend")
	return cmd
}

func dumpCmd() *cobra.Command {
	var outPath string
	var viaBackend bool
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the UI elements of the device",
		RunE: func(cmd *cobra.Command, args []string) error {
			var source overlay.ElementSource
			if viaBackend {
				host, err := requireHost()
				if err != nil {
					return err
				}
				source = remote.NewClient(cfg.Overlay.ServerURL, host, cfg.OverlayTiming().TapTimeout)
			} else {
				device, err := newDevice()
				if err != nil {
					return err
				}
				source = overlay.DeviceSource{Device: device, DeviceID: cfg.Device.ID}
			}

			elements, resolution, err := source.Dump(cmd.Context())
			if err != nil {
				return err
			}
			result := definitions.DumpResponse{Success: true, Elements: elements, Resolution: resolution}
			log.Info().Int("count", len(elements)).
				Float64("width", resolution.Width).Float64("height", resolution.Height).Msg(msg("elements"))

			if outPath != "" {
				if err := utils.WriteJsonFile(outPath, result); err != nil {
					return err
				}
				log.Info().Str("path", outPath).Msg(msg("saved"))
				return nil
			}
			fmt.Println(utils.JsonIndent(result))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the dump to a file instead of stdout")
	cmd.Flags().BoolVar(&viaBackend, "remote", false, "Dump through the backend instead of the attached device")
	return cmd
}

func loadScreenshot(ctx context.Context, path string, capture bool) (image.Image, error) {
	switch {
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		return img, err
	case capture:
		device, err := newDevice()
		if err != nil {
			return nil, err
		}
		shot, err := device.GetScreenshot(ctx, cfg.Device.ID)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(shot.Data))
		return img, err
	default:
		return nil, nil
	}
}

// fileSource serves a saved dump, in the resolution the panel file names.
type fileSource struct {
	elements   []definitions.SourceElement
	resolution definitions.Size
}

func (f fileSource) Dump(ctx context.Context) ([]definitions.SourceElement, definitions.Size, error) {
	return f.elements, f.resolution, nil
}

func annotateCmd() *cobra.Command {
	var panelPath, elementsPath, screenshotPath, outPath string
	var capture, live bool
	var clicks []string
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Render the overlay onto a screenshot as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			panel, err := config.LoadPanel(panelPath)
			if err != nil {
				return err
			}

			var source overlay.ElementSource
			if live {
				device, err := newDevice()
				if err != nil {
					return err
				}
				source = overlay.DeviceSource{Device: device, DeviceID: cfg.Device.ID}
			} else {
				elements, err := readElements(elementsPath)
				if err != nil {
					return err
				}
				source = fileSource{elements: elements, resolution: panel.SourceResolution}
			}

			screen, err := loadScreenshot(cmd.Context(), screenshotPath, capture)
			if err != nil {
				return fmt.Errorf("load screenshot: %w", err)
			}

			session := overlay.NewSession(cfg.Host(), source, dryRunForwarder{}, cfg.OverlayTiming())
			defer session.Close()
			session.SetGeometry(panel)
			if _, err := session.Refresh(cmd.Context()); err != nil {
				return err
			}
			for _, c := range clicks {
				pt, err := parsePoint([]string{c})
				if err != nil {
					return err
				}
				res := session.Click(pt)
				log.Debug().Str("click", c).Str("kind", res.Kind.String()).Msg("simulated click")
			}

			img, err := annotate.RenderFrame(screen, session.Render(), constants.MustStyle())
			if err != nil {
				log.Warn().Err(err).Msg(msg("invalid_geometry"))
				return err
			}

			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := annotate.EncodePNG(f, img); err != nil {
				return err
			}
			log.Info().Str("path", outPath).Msg(msg("saved"))
			return nil
		},
	}
	cmd.Flags().StringVar(&panelPath, "panel", "", "Panel geometry file (YAML or JSON)")
	cmd.Flags().StringVar(&elementsPath, "elements", "", "Element dump")
	cmd.Flags().BoolVar(&live, "live", false, "Dump elements from the attached device instead of --elements")
	cmd.Flags().StringVar(&screenshotPath, "screenshot", "", "Screenshot to draw under the overlay (PNG or JPEG)")
	cmd.Flags().BoolVar(&capture, "capture", false, "Capture the screenshot from the attached device")
	cmd.Flags().StringArrayVar(&clicks, "click", nil, "Simulated viewport click x,y (repeatable), drawn as pulse and readout")
	cmd.Flags().StringVarP(&outPath, "out", "o", "overlay.png", "Output PNG")
	_ = cmd.MarkFlagRequired("panel")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tap-forwarding backend for the attached device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			cfg.Server.Version = Version

			device, err := newDevice()
			if err != nil {
				return err
			}
			srv, err := server.New(cfg.Server, device)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			log.Info().Str("addr", cfg.Server.Addr).Msg(msg("server_started"))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", getEnv("DEVOVERLAY_ADDR", ""), "Listen address (default: "+constants.DefaultAddr+")")
	return cmd
}

func devicesCmd() *cobra.Command {
	var connect, disconnect string
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List, connect or disconnect devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			device, err := newDevice()
			if err != nil {
				return err
			}

			if connect != "" {
				session := overlay.NewSession(cfg.Host(), overlay.DeviceSource{Device: device, DeviceID: connect}, nil, cfg.OverlayTiming())
				defer session.Close()

				log.Info().Msgf("Connecting to %s...", connect)
				message, err := session.ConnectDevice(ctx, device, connect)
				if err != nil {
					log.Error().Str("msg", message).Msg("❌")
					return err
				}
				log.Info().Str("msg", message).Int("refreshes", session.Refreshes()).Msg("✅")
				return nil
			}
			if disconnect != "" {
				session := overlay.NewSession(cfg.Host(), overlay.DeviceSource{Device: device, DeviceID: disconnect}, nil, cfg.OverlayTiming())
				defer session.Close()

				message, err := session.DisconnectDevice(ctx, device, disconnect)
				if err != nil {
					log.Error().Str("msg", message).Msg("❌")
					return err
				}
				log.Info().Str("msg", message).Msg("✅")
				return nil
			}

			devices, err := device.ListDevices(ctx)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				log.Info().Msg(msg("no_devices"))
				return nil
			}
			log.Info().Msg(msg("connected_devices"))
			lines := lo.Map(devices, func(d definitions.DeviceInfo, _ int) string {
				statusIcon := "✅"
				if d.Status != "device" {
					statusIcon = "❌"
				}
				modelInfo := ""
				if d.Model != "" {
					modelInfo = fmt.Sprintf(" (%s)", d.Model)
				}
				return fmt.Sprintf("  %s %-30s [%s]%s", statusIcon, d.DeviceID, d.ConnectionType, modelInfo)
			})
			for _, line := range lines {
				log.Info().Str("device", line).Msg("")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&connect, "connect", "c", "", "Connect to remote device (e.g., 192.168.1.100:5555)")
	cmd.Flags().StringVar(&disconnect, "disconnect", "", "Disconnect from remote device (or 'all' to disconnect all)")
	return cmd
}

package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

const (
	dpi               = 120.0
	fontSize          = 12.0
	tickMarkHeight    = 5
	pixelsPerLabel    = 150.00
	pixelsPerStep     = 50.00
	flightStripHeight = 6
	flightStripMargin = 2

	// Default border sizes in pixels
	defaultTopBorder    = 20
	defaultLeftBorder   = 80
	defaultBottomBorder = 90
	defaultRightBorder  = 40

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

var (
	traceColor  = color.Black
	gridColor   = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	flyingColor = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
	unsentColor = color.RGBA{R: 0xff, A: 0xff}
)

// BorderConfig defines the sizes of white space around the plot
type BorderConfig struct {
	Top    int // Top padding
	Left   int // Space for altitude scale
	Bottom int // Space for flight strip, time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for flight trace visualization
type RenderConfig struct {
	// Time display configuration
	TimeFormat     string         // Format string for time display (e.g. "15:04:05")
	DatetimeFormat string         // Format string for date/time display
	Location       *time.Location // Timezone for time display

	// Visual configuration
	FontSize      float64    // Font size in points
	ColorTheme    ColorTheme // Color scheme for battery levels
	NoAnnotations bool       // Render the plot area and flight strip only

	// Border configuration
	BorderConfig BorderConfig
}

// TraceRenderer draws the altitude of a flight over time. The area under the
// trace is filled with the battery color, and a strip under the plot marks
// the columns where the drone reported flying.
type TraceRenderer struct {
	colorMap *ColorMapper
	config   RenderConfig
}

// NewTraceRenderer creates a new trace renderer with the given configuration
func NewTraceRenderer(config RenderConfig) (*TraceRenderer, error) {
	if config.ColorTheme == "" {
		config.ColorTheme = BatteryTheme
	}
	if _, ok := validThemes[config.ColorTheme]; !ok {
		return nil, fmt.Errorf("invalid color theme: %s", config.ColorTheme)
	}
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}

	if config.NoAnnotations {
		config.BorderConfig = BorderConfig{Bottom: flightStripMargin + flightStripHeight}
	} else {
		if config.BorderConfig.Top == 0 {
			config.BorderConfig.Top = defaultTopBorder
		}
		if config.BorderConfig.Left == 0 {
			config.BorderConfig.Left = defaultLeftBorder
		}
		if config.BorderConfig.Bottom == 0 {
			config.BorderConfig.Bottom = defaultBottomBorder
		}
		if config.BorderConfig.Right == 0 {
			config.BorderConfig.Right = defaultRightBorder
		}
	}

	return &TraceRenderer{
		colorMap: NewColorMapper(config.ColorTheme),
		config:   config,
	}, nil
}

// Render creates an image of the flight trace with annotations
func (r *TraceRenderer) Render(trace *FlightTrace) (*image.RGBA, error) {
	borders := r.config.BorderConfig
	fullWidth := trace.Width + borders.Left + borders.Right
	fullHeight := trace.Height + borders.Top + borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	// one column per pixel
	area := image.Rect(
		borders.Left,
		borders.Top,
		borders.Left+trace.Width,
		borders.Top+trace.Height,
	)

	bounds := trace.Bounds()

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(annotatorConfig{
			TimeFormat:     r.config.TimeFormat,
			DatetimeFormat: r.config.DatetimeFormat,
			Location:       r.config.Location,
			FontSize:       r.config.FontSize,
			Borders:        borders,
		})
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		if err = ann.annotate(img, area, trace, bounds); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	r.renderTrace(img, area, trace, bounds)

	return img, nil
}

func (r *TraceRenderer) renderTrace(img *image.RGBA, area image.Rectangle, trace *FlightTrace, bounds AltitudeBounds) {
	ground := altitudeY(area, bounds, 0)
	stripTop := area.Max.Y + flightStripMargin

	prevY := -1
	for x, col := range trace.Columns {
		imgX := area.Min.X + x
		if col.Samples == 0 {
			prevY = -1
			continue
		}

		y := altitudeY(area, bounds, float64(col.Altitude))

		fill := r.colorMap.GetColor(col.Battery)
		for yy := min(y, ground); yy <= max(y, ground); yy++ {
			img.Set(imgX, yy, fill)
		}

		// trace, joined to the previous column
		from, to := y, y
		if prevY >= 0 {
			from, to = min(prevY, y), max(prevY, y)
		}
		for yy := from; yy <= to; yy++ {
			img.Set(imgX, yy, traceColor)
		}
		prevY = y

		if col.Flying {
			for yy := stripTop; yy < stripTop+flightStripHeight; yy++ {
				img.Set(imgX, yy, flyingColor)
			}
		}
		if col.Unsent > 0 {
			img.Set(imgX, area.Min.Y, unsentColor)
			img.Set(imgX, area.Min.Y+1, unsentColor)
		}
	}
}

// altitudeY converts an altitude to a row of the plot area, clamped to it
func altitudeY(area image.Rectangle, bounds AltitudeBounds, altitude float64) int {
	ratio := (altitude - bounds.Min) / bounds.Span()
	ratio = math.Max(0, math.Min(1, ratio))
	return area.Max.Y - 1 - int(math.Round(ratio*float64(area.Dy()-1)))
}

// Internal annotator implementation
type annotatorConfig struct {
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	FontSize       float64
	Borders        BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, trace *FlightTrace, bounds AltitudeBounds) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawAltitudeScale(img, area, bounds); err != nil {
		return fmt.Errorf("drawing altitude scale: %w", err)
	}
	if err := a.drawTimeScale(img, area, trace); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawInfoBar(img, trace); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawAltitudeScale(img *image.RGBA, area image.Rectangle, bounds AltitudeBounds) error {
	step := calculateNiceAltitudeStep(bounds.Span(), area.Dy())
	start := math.Ceil(bounds.Min/step) * step

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for alt := start; alt <= bounds.Max; alt += step {
		y := altitudeY(area, bounds, alt)

		// grid line, the trace is drawn over it
		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}

		// tick mark
		for x := area.Min.X - tickMarkHeight; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%.0f m", alt)
		width := font.MeasureString(a.fontFace, label)
		textY := y + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(area.Min.X-tickMarkHeight-4-width.Round(), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing altitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, trace *FlightTrace) error {
	duration := trace.TimestampEnd.Sub(trace.TimestampStart)
	step := calculateNiceTimeStep(duration, area.Dx())

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	tickTop := area.Max.Y + flightStripMargin + flightStripHeight + 1
	textY := tickTop + tickMarkHeight + fontHeight

	first := trace.TimestampStart.Truncate(step)
	if first.Before(trace.TimestampStart) {
		first = first.Add(step)
	}

	for ts := first; !ts.After(trace.TimestampEnd); ts = ts.Add(step) {
		x := area.Min.X
		if duration > 0 {
			x += int(int64(ts.Sub(trace.TimestampStart)) * int64(area.Dx()-1) / int64(duration))
		}

		for y := tickTop; y < tickTop+tickMarkHeight; y++ {
			img.Set(x, y, color.Black)
		}

		label := ts.In(a.config.Location).Format(a.config.TimeFormat)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}

		if duration <= 0 {
			break
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, trace *FlightTrace) error {
	var sb strings.Builder

	if s := trace.Session; s != nil {
		sb.WriteString(fmt.Sprintf("Session %d (%s to %s); ", s.ID, s.Variant, s.Destination))
	}
	sb.WriteString(fmt.Sprintf("Time: %s - %s (%s)",
		trace.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		trace.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat),
		trace.TimestampEnd.Sub(trace.TimestampStart).Round(time.Second)))

	sb.WriteString("; ")
	sb.WriteString(fmt.Sprintf("Packets: %s, failed: %s",
		humanize.Comma(trace.Records), humanize.Comma(trace.Records-trace.Sent)))

	if trace.Records > 0 {
		sb.WriteString("; ")
		sb.WriteString(fmt.Sprintf("Altitude: %d - %d m", trace.Altitude.minBin, trace.Altitude.maxBin))
	}

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	// bottom line of the image
	textY := img.Bounds().Max.Y - (fontHeight / 2) - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Helper functions

func calculateNiceAltitudeStep(span float64, height int) float64 {
	steps := []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}

	desiredSteps := max(1, float64(height)/pixelsPerStep)
	targetStep := span / desiredSteps

	for _, step := range steps {
		if step >= targetStep {
			return step
		}
	}
	return steps[len(steps)-1]
}

func calculateNiceTimeStep(duration time.Duration, width int) time.Duration {
	desiredSteps := max(1, float64(width)/pixelsPerLabel)
	roughStep := duration.Seconds() / desiredSteps

	// Nice time intervals in seconds
	niceIntervals := []float64{
		1,     // 1 second
		2,     // 2 seconds
		5,     // 5 seconds
		10,    // 10 seconds
		15,    // 15 seconds
		30,    // 30 seconds
		60,    // 1 minute
		120,   // 2 minutes
		300,   // 5 minutes
		600,   // 10 minutes
		900,   // 15 minutes
		1800,  // 30 minutes
		3600,  // 1 hour
		7200,  // 2 hours
		14400, // 4 hours
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}

	return time.Hour * 6 // Default for very long flights
}

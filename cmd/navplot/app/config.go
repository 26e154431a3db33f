package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	defaultPlotWidth  = 1200
	defaultPlotHeight = 400
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	Theme         ColorTheme
	TimeZone      *time.Location
	From          *time.Time
	To            *time.Time
	Width         int
	Height        int
	Verbose       bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Theme:    BatteryTheme,
		TimeZone: time.Local,
		Width:    defaultPlotWidth,
		Height:   defaultPlotHeight,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return NewConfigFromArgs(os.Args[1:])
}

// NewConfigFromArgs parses the command line arguments, without the program name
func NewConfigFromArgs(args []string) (*Config, error) {
	c := NewConfig()
	fs := flag.NewFlagSet("navplot", flag.ContinueOnError)

	var imageFormat, theme, timeZone, from, to string
	fs.StringVar(&c.DBPath, "db", "", "Path to the flight recording")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(BatteryTheme), "Battery color theme. [battery, classic, grayscale, jungle, thermal, marine]")
	fs.StringVar(&timeZone, "tz", "Local", "Time zone of the time scale (IANA name)")
	fs.StringVar(&from, "from", "", "Plot records built at or after this time (format YYYY-MM-DD hh:mm:ss)")
	fs.StringVar(&to, "to", "", "Plot records built at or before this time (format YYYY-MM-DD hh:mm:ss)")
	fs.IntVar(&c.Width, "width", defaultPlotWidth, "Width of the plot area in pixels")
	fs.IntVar(&c.Height, "height", defaultPlotHeight, "Height of the plot area in pixels")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disabled annotations such as time and altitude scales")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
		err = fmt.Errorf("invalid image format: %s", imageFormat)
	} else if _, ok = validThemes[ColorTheme(strings.ToLower(theme))]; !ok {
		err = fmt.Errorf("invalid color theme: %s", theme)
	} else if c.Width < 100 || c.Height < 100 {
		err = fmt.Errorf("plot area must be at least 100x100 pixels, got %dx%d", c.Width, c.Height)
	} else if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
		err = fmt.Errorf("invalid time zone: %w", err)
	} else if c.From, err = parseTime(from, c.TimeZone); err != nil {
		err = fmt.Errorf("invalid -from: %w", err)
	} else if c.To, err = parseTime(to, c.TimeZone); err != nil {
		err = fmt.Errorf("invalid -to: %w", err)
	} else if c.From != nil && c.To != nil && c.To.Before(*c.From) {
		err = errors.New("-to is before -from")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.Theme = ColorTheme(strings.ToLower(theme))
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTime(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation(time.DateTime, value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

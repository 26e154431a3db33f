package app

import "math"

const (
	defaultMinAltitude = 0.0  // m
	defaultMaxAltitude = 10.0 // m

	// Spikes below the 1st and above the 99th percentile are clipped to the
	// plot edges once there are enough samples to tell them apart.
	minimumSampleCount = 100
	clipPercent        = 1

	minimumAltitudeSpan = 10 // m
)

// AltitudeBounds represents the altitude range of the plot area
type AltitudeBounds struct {
	Min  float64 // Bottom of the plot area in metres
	Max  float64 // Top of the plot area in metres
	Mean float64 // Mean altitude in metres
}

func defaultAltitudeBounds() AltitudeBounds {
	return AltitudeBounds{
		Min:  defaultMinAltitude,
		Max:  defaultMaxAltitude,
		Mean: (defaultMinAltitude + defaultMaxAltitude) / 2,
	}
}

// Span returns the altitude range covered by the bounds
func (b AltitudeBounds) Span() float64 {
	return b.Max - b.Min
}

// AltitudeHistogram maintains a histogram of altitudes with 1 m bins
type AltitudeHistogram struct {
	bins       map[int]uint32 // Map of bin index to count
	totalCount uint64         // Total number of samples
	minBin     int            // Cache for min bin
	maxBin     int            // Cache for max bin
}

// NewAltitudeHistogram creates a new histogram
func NewAltitudeHistogram() *AltitudeHistogram {
	return &AltitudeHistogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

// scaleDown scales all bin counts down by factor of 2
func (h *AltitudeHistogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}

		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

// Update adds an altitude reading to the histogram
func (h *AltitudeHistogram) Update(altitude int32) {
	bin := int(altitude)

	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.scaleDown()
	}

	h.bins[bin]++
	h.totalCount++

	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

// Count returns the number of samples in the histogram
func (h *AltitudeHistogram) Count() uint64 {
	return h.totalCount
}

// Clear resets the histogram
func (h *AltitudeHistogram) Clear() {
	h.bins = make(map[int]uint32)
	h.totalCount = 0
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32
}

// Bounds returns the plot bounds. The range always includes the ground
// level when the flight stayed above it, spans at least 10 m and carries a
// 10% margin above the highest altitude.
func (h *AltitudeHistogram) Bounds() AltitudeBounds {
	if h.totalCount == 0 {
		return defaultAltitudeBounds()
	}

	low, high := h.minBin, h.maxBin
	if h.totalCount >= minimumSampleCount {
		target := h.totalCount * clipPercent / 100

		var count uint64
		for bin := h.minBin; bin <= h.maxBin; bin++ {
			count += uint64(h.bins[bin])
			if count > target {
				low = bin
				break
			}
		}

		count = 0
		for bin := h.maxBin; bin >= h.minBin; bin-- {
			count += uint64(h.bins[bin])
			if count > target {
				high = bin
				break
			}
		}
	}

	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += float64(bin) * float64(n)
	}
	mean := sumProduct / float64(h.totalCount)

	low = min(low, 0)
	high = max(high+1, low+minimumAltitudeSpan)

	margin := float64(high-low) / 10
	minAltitude := float64(low)
	if low < 0 {
		minAltitude -= margin
	}

	return AltitudeBounds{
		Min:  minAltitude,
		Max:  float64(high) + margin,
		Mean: mean,
	}
}

package main

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInt16LE(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0x01, 0x00}
	samples, err := decodeInt16LE(raw)
	require.NoError(t, err)
	require.Equal(t, []int16{-1, 1}, samples)
}

func TestDecodeInt16LERejectsOddLength(t *testing.T) {
	_, err := decodeInt16LE([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRenderPolarPlotProducesNonEmptyCanvas(t *testing.T) {
	samples := []int16{100, 200, 300, 400}
	img := renderPolarPlot(samples, 64, 8.0)
	require.Equal(t, 64, img.Bounds().Dx())

	nonBlack := 0
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if img.At(x, y) != (color.RGBA{0, 0, 0, 255}) {
				nonBlack++
			}
		}
	}
	require.Greater(t, nonBlack, 0)
}

func TestRenderPolarPlotHandlesEmptySamples(t *testing.T) {
	img := renderPolarPlot(nil, 16, 1.0)
	require.Equal(t, 16, img.Bounds().Dx())
}

func TestEncodePNGRoundTrips(t *testing.T) {
	img := renderPolarPlot([]int16{50}, 32, 2.0)
	data, err := encodePNG(img)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}

// Command matoviz renders a channel's most recent payload — treated as
// a packed little-endian int16 range-and-bearing lidar scan, the shape
// produced by TIM571-style rangefinders used throughout
// _examples/original_source/modules/live — as a PNG polar plot. The
// scaling scheme (divide each sample by a color divider to get a pixel
// intensity) is the same one
// _examples/original_source/bites/pngwriter.c uses for its greyscale
// writer; matoviz plots samples around a circle instead of as an image
// row, then hands the rendered frame to govips for the final PNG export
// at compression level 6.
package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/spf13/cobra"
)

var (
	inputPath    string
	outputPath   string
	canvasSize   int
	colorDivider float64
)

var rootCmd = &cobra.Command{
	Use:   "matoviz",
	Short: "render a packed int16 range-and-bearing scan to a PNG polar plot",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to a raw little-endian int16 scan payload (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "scan.png", "output PNG path")
	rootCmd.Flags().IntVar(&canvasSize, "size", 512, "output canvas size in pixels")
	rootCmd.Flags().Float64Var(&colorDivider, "color-divider", 16.0, "range value divided by this to get pixel intensity")
	_ = rootCmd.MarkFlagRequired("input")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("matoviz: reading %q: %w", inputPath, err)
	}

	samples, err := decodeInt16LE(raw)
	if err != nil {
		return err
	}

	img := renderPolarPlot(samples, canvasSize, colorDivider)

	vips.Startup(nil)
	defer vips.Shutdown()

	rendered, err := encodePNG(img)
	if err != nil {
		return fmt.Errorf("matoviz: encoding rendered frame: %w", err)
	}

	vipsImg, err := vips.NewImageFromBuffer(rendered)
	if err != nil {
		return fmt.Errorf("matoviz: loading rendered frame into govips: %w", err)
	}
	defer vipsImg.Close()

	out, _, err := vipsImg.ExportPng(&vips.PngExportParams{Compression: 6})
	if err != nil {
		return fmt.Errorf("matoviz: exporting PNG: %w", err)
	}

	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("matoviz: writing %q: %w", outputPath, err)
	}
	fmt.Printf("matoviz: wrote %d samples to %s\n", len(samples), outputPath)
	return nil
}

func decodeInt16LE(raw []byte) ([]int16, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("matoviz: input length %d is not a multiple of 2", len(raw))
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}
	return samples, nil
}

// renderPolarPlot lays each sample out at bearing i*2π/len(samples),
// with radius proportional to the sample value divided by colorDivider,
// the same divide-to-intensity idea pngwriter.c applies per-pixel.
func renderPolarPlot(samples []int16, size int, colorDivider float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.Black)
		}
	}

	cx, cy := float64(size)/2, float64(size)/2
	maxRadius := float64(size) / 2
	if len(samples) == 0 {
		return img
	}
	step := 2 * math.Pi / float64(len(samples))

	for i, s := range samples {
		bearing := float64(i) * step
		radius := float64(s) / colorDivider
		if radius > maxRadius {
			radius = maxRadius
		}
		if radius < 0 {
			continue
		}
		px := int(cx + radius*math.Cos(bearing))
		py := int(cy + radius*math.Sin(bearing))
		if px < 0 || px >= size || py < 0 || py >= size {
			continue
		}
		intensity := uint8(255 * radius / maxRadius)
		img.Set(px, py, color.RGBA{R: intensity, G: 255 - intensity, B: 128, A: 255})
	}
	return img
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

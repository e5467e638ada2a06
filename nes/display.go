package nes

import (
	"image"
	"image/color"
	"log"

	"github.com/faiface/pixel"
	"github.com/faiface/pixel/pixelgl"
	"golang.org/x/image/colornames"
)

// PixelDisplay is the pixelgl-backed implementation of the Display
// interface the PPU renders through.
type PixelDisplay struct {
	rgba *image.RGBA // Rectangle of RGBA points, used to manipulate pixels on the screen.

	window     *pixelgl.Window
	gameMatrix pixel.Matrix // Scale and position to render the running NES game.
}

const (
	// Main NES display settings
	nesResW    float64 = 256
	nesResH    float64 = 240
	screenPosX float64 = 600 // Where to render the display on the user's monitor.
	screenPosY float64 = 400

	// Debug display settings
	debugResW float64 = 256
)

// NewPixelDisplay opens a pixelgl window sized to render the 256x240 NES
// framebuffer at the given integer scale.
func NewPixelDisplay(scale float64) *PixelDisplay {
	if scale <= 0 {
		scale = 2
	}

	rect := image.Rect(0, 0, int(nesResW), int(nesResH))
	rgba := image.NewRGBA(rect)

	screenW := nesResW * scale
	screenH := nesResH * scale

	config := pixelgl.WindowConfig{
		Title:    "NES Emulator",
		Bounds:   pixel.R(0, 0, screenW+debugResW, screenH),
		Position: pixel.V(screenPosX, screenPosY),
		VSync:    true,
	}
	window, err := pixelgl.NewWindow(config)
	if err != nil {
		log.Fatal("Unable to create new PixelGl window...\n", err)
	}

	// Calculate matrix recquired to render game to display based on the set scale.
	pic := pixel.PictureDataFromImage(rgba)

	matrix := pixel.IM.Moved(pic.Bounds().Center().Scaled(scale))
	matrix = matrix.Scaled(pic.Bounds().Center().Scaled(scale), scale)

	return &PixelDisplay{
		rgba,
		window,
		matrix,
	}
}

func (d *PixelDisplay) DrawPixel(x, y int, c [3]byte) {
	d.rgba.SetRGBA(x, y, color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xFF})
}

func (d *PixelDisplay) UpdateScreen() {
	d.window.Clear(colornames.Black)

	pic := pixel.PictureDataFromImage(d.rgba)

	sprite := pixel.NewSprite(pic, pic.Bounds())
	sprite.Draw(d.window, d.gameMatrix)

	d.window.Update()
}

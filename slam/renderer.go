package slam

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// GridRenderer renders a 2D occupancy grid as a greyscale probability image
// with the sensor pose marked on top. Occupied cells render dark, free cells
// light; cells never touched stay at the mid-grey prior.
type GridRenderer struct {
	Grid  *OccupancyGrid
	Pose  RigidTransform
	Label string
	Scale int // Pixels per grid cell (default 2)
	// PoseColor marks the sensor's current cell
	PoseColor color.RGBA
}

// NewGridRenderer creates a renderer with default settings
func NewGridRenderer(grid *OccupancyGrid, pose RigidTransform) *GridRenderer {
	return &GridRenderer{
		Grid:      grid,
		Pose:      pose,
		Scale:     2,
		PoseColor: color.RGBA{255, 0, 0, 255},
	}
}

// Render creates the greyscale occupancy image. Only 2D grids are drawable.
func (r *GridRenderer) Render() (*image.RGBA, error) {
	dims := r.Grid.Dims()
	if len(dims) != 2 {
		return nil, fmt.Errorf("can only render 2D grids, got %d dimensions", len(dims))
	}

	scale := r.Scale
	if scale < 1 {
		scale = 1
	}

	width := dims[0] * scale
	height := dims[1] * scale
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for cy := 0; cy < dims[1]; cy++ {
		for cx := 0; cx < dims[0]; cx++ {
			cell := Cell{cx, cy}
			var c color.RGBA
			if !r.Grid.Touched(cell) {
				c = color.RGBA{200, 200, 200, 255}
			} else {
				p, _ := r.Grid.Probability(cell)
				// p=1 (occupied) -> black, p=0 (free) -> white
				v := uint8(math.Round(255 * (1 - p)))
				c = color.RGBA{v, v, v, 255}
			}

			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.Set(cx*scale+dx, cy*scale+dy, c)
				}
			}
		}
	}

	// Mark the sensor pose
	if len(r.Pose.Translation) >= 2 {
		px := int(r.Pose.Translation[0]) * scale
		py := int(r.Pose.Translation[1]) * scale
		drawCircle(img, px, py, 3*scale, r.PoseColor)
	}

	if r.Label != "" {
		drawText(img, 10, 15, r.Label, color.RGBA{0, 0, 0, 255})
	}

	return img, nil
}

// RenderToPNG writes the occupancy image as a PNG to the provided writer
func (r *GridRenderer) RenderToPNG(w io.Writer) error {
	img, err := r.Render()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SavePNG saves the occupancy image to a file
func (r *GridRenderer) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return r.RenderToPNG(f)
}

// drawCircle draws a filled circle on the image
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

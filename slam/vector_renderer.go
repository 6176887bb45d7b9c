package slam

import (
	"fmt"
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorGridRenderer renders a 2D occupancy grid as vector graphics:
// occupied cells as filled squares, the pose trail as a polyline, and the
// current pose as a dot.
type VectorGridRenderer struct {
	Grid *OccupancyGrid
	Pose RigidTransform
	// Trail is the pose history in grid coordinates; empty trails are skipped
	Trail []Point
	// Threshold is the occupancy probability above which a cell is drawn
	Threshold float64
	// CellSize is the output size of one grid cell in canvas millimeters
	CellSize   float64
	Resolution canvas.Resolution // Resolution for PNG output (default: 300 DPI)

	OccupiedColor color.RGBA
	TrailColor    color.RGBA
	PoseColor     color.RGBA
}

// NewVectorGridRenderer creates a vector renderer with default settings
func NewVectorGridRenderer(grid *OccupancyGrid, pose RigidTransform) *VectorGridRenderer {
	return &VectorGridRenderer{
		Grid:          grid,
		Pose:          pose,
		Threshold:     0.5,
		CellSize:      1.0,
		Resolution:    canvas.DPI(300),
		OccupiedColor: color.RGBA{30, 30, 30, 255},
		TrailColor:    color.RGBA{0, 0, 200, 255},
		PoseColor:     color.RGBA{200, 0, 0, 255},
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the grid as an SVG to the provided writer
func (r *VectorGridRenderer) RenderToSVG(w io.Writer) error {
	width, height, err := r.canvasSize()
	if err != nil {
		return err
	}

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)

	// Close SVG renderer to write closing tags
	return svgRenderer.Close()
}

// RenderToPNG writes the grid as a rasterized PNG to the provided writer
func (r *VectorGridRenderer) RenderToPNG(w io.Writer) error {
	width, height, err := r.canvasSize()
	if err != nil {
		return err
	}

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)

	// Rasterizer implements draw.Image, which embeds image.Image
	return png.Encode(w, rast)
}

func (r *VectorGridRenderer) canvasSize() (float64, float64, error) {
	dims := r.Grid.Dims()
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("can only render 2D grids, got %d dimensions", len(dims))
	}
	return float64(dims[0]) * r.CellSize, float64(dims[1]) * r.CellSize, nil
}

// renderToCanvas renders the grid to a canvas renderer (shared logic for SVG and PNG)
func (r *VectorGridRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	// White background
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	dims := r.Grid.Dims()

	// Occupied cells
	cellStyle := canvas.DefaultStyle
	cellStyle.Fill = canvas.Paint{Color: r.OccupiedColor}
	cellStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

	for cy := 0; cy < dims[1]; cy++ {
		for cx := 0; cx < dims[0]; cx++ {
			cell := Cell{cx, cy}
			if !r.Grid.Touched(cell) {
				continue
			}
			p, _ := r.Grid.Probability(cell)
			if p < r.Threshold {
				continue
			}
			square := canvas.Rectangle(r.CellSize, r.CellSize).
				Translate(float64(cx)*r.CellSize, float64(cy)*r.CellSize)
			renderer.RenderPath(square, cellStyle, canvas.Identity)
		}
	}

	// Pose trail
	if len(r.Trail) > 1 {
		trailStyle := canvas.DefaultStyle
		trailStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		trailStyle.Stroke = canvas.Paint{Color: r.TrailColor}
		trailStyle.StrokeWidth = r.CellSize / 2

		trail := &canvas.Path{}
		for i, pt := range r.Trail {
			if len(pt) < 2 {
				continue
			}
			x := pt[0] * r.CellSize
			y := pt[1] * r.CellSize
			if i == 0 {
				trail.MoveTo(x, y)
			} else {
				trail.LineTo(x, y)
			}
		}
		renderer.RenderPath(trail, trailStyle, canvas.Identity)
	}

	// Current pose
	if len(r.Pose.Translation) >= 2 {
		poseStyle := canvas.DefaultStyle
		poseStyle.Fill = canvas.Paint{Color: r.PoseColor}
		poseStyle.Stroke = canvas.Paint{Color: canvas.Transparent}

		dot := canvas.Circle(1.5*r.CellSize).
			Translate(r.Pose.Translation[0]*r.CellSize, r.Pose.Translation[1]*r.CellSize)
		renderer.RenderPath(dot, poseStyle, canvas.Identity)
	}
}

package analyzer

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// ContrastDetector implements edge-based region detection using Sobel operator.
// Photos are analysed on a copy whose longest side is at most MaxSide pixels;
// blocks are mapped back to the original coordinates.
type ContrastDetector struct {
	MaxSide       int     // analysis resolution
	MinBlockShare float64 // minimum block area as a share of the image
	EdgeThreshold float64 // gradient magnitude threshold
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MaxSide:       256,
		MinBlockShare: 0.01,
		EdgeThreshold: 30.0,
	}
}

// Detect finds regions of interest using edge detection and morphology
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	src := img.Bounds()
	if src.Empty() {
		return nil, nil
	}

	// Step 1: Downscale into grayscale
	gray, scale := downscaleGray(img, d.MaxSide)

	// Step 2: Apply Sobel edge detection
	edges := sobelEdgeDetection(gray, d.EdgeThreshold)

	// Step 3: Morphological dilation to connect nearby edges
	dilated := dilate(edges, 5, 2)

	// Step 4: Find connected components (contours)
	contours := findContours(dilated)

	// Step 5: Filter by area, score by edge density, map back to the original size
	gb := gray.Bounds()
	minArea := int(d.MinBlockShare * float64(gb.Dx()*gb.Dy()))
	blocks := []Block{}
	for _, rect := range contours {
		area := rect.Dx() * rect.Dy()
		if area < minArea || area == 0 {
			continue
		}
		blocks = append(blocks, Block{
			Rect:       scaleRect(rect, scale).Add(src.Min).Intersect(src),
			Confidence: edgeDensity(edges, rect),
		})
	}

	return blocks, nil
}

// downscaleGray returns a grayscale copy no larger than maxSide and the
// factor that maps its coordinates back to the source.
func downscaleGray(img image.Image, maxSide int) (*image.Gray, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := 1.0
	if maxSide > 0 && (w > maxSide || h > maxSide) {
		scale = float64(max(w, h)) / float64(maxSide)
		w = max(1, int(math.Round(float64(w)/scale)))
		h = max(1, int(math.Round(float64(h)/scale)))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, xdraw.Src, nil)
	return gray, scale
}

func scaleRect(r image.Rectangle, s float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(r.Min.X)*s)),
		int(math.Floor(float64(r.Min.Y)*s)),
		int(math.Ceil(float64(r.Max.X)*s)),
		int(math.Ceil(float64(r.Max.Y)*s)),
	)
}

// edgeDensity is the share of edge pixels inside r.
func edgeDensity(edges *image.Gray, r image.Rectangle) float64 {
	total, lit := 0, 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := edges.Pix[y*edges.Stride:]
		for x := r.Min.X; x < r.Max.X; x++ {
			total++
			if row[x] > 0 {
				lit++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(lit) / float64(total)
}

// sobelEdgeDetection applies Sobel operator to detect edges
func sobelEdgeDetection(gray *image.Gray, threshold float64) *image.Gray {
	b := gray.Bounds()
	edges := image.NewGray(b)
	at := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }

	for y := 1; y < b.Dy()-1; y++ {
		for x := 1; x < b.Dx()-1; x++ {
			sumX := -at(x-1, y-1) + at(x+1, y-1) -
				2*at(x-1, y) + 2*at(x+1, y) -
				at(x-1, y+1) + at(x+1, y+1)
			sumY := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)

			if math.Sqrt(sumX*sumX+sumY*sumY) > threshold {
				edges.Pix[y*edges.Stride+x] = 255
			}
		}
	}

	return edges
}

// dilate performs morphological dilation to connect nearby edges
func dilate(img *image.Gray, kernelSize, iterations int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	half := kernelSize / 2

	result := image.NewGray(b)
	copy(result.Pix, img.Pix)

	for iter := 0; iter < iterations; iter++ {
		temp := image.NewGray(b)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var maxVal uint8
				for ky := max(0, y-half); ky <= min(h-1, y+half) && maxVal < 255; ky++ {
					row := result.Pix[ky*result.Stride:]
					for kx := max(0, x-half); kx <= min(w-1, x+half); kx++ {
						if row[kx] > maxVal {
							maxVal = row[kx]
						}
					}
				}
				temp.Pix[y*temp.Stride+x] = maxVal
			}
		}
		result = temp
	}

	return result
}

// findContours finds bounding rectangles of connected white regions
func findContours(img *image.Gray) []image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	visited := make([]bool, w*h)

	contours := []image.Rectangle{}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.Pix[y*img.Stride+x] > 128 && !visited[y*w+x] {
				contours = append(contours, floodFill(img, visited, x, y))
			}
		}
	}

	return contours
}

// floodFill performs flood fill and returns bounding rectangle
func floodFill(img *image.Gray, visited []bool, startX, startY int) image.Rectangle {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		if visited[y*w+x] || img.Pix[y*img.Stride+x] <= 128 {
			continue
		}
		visited[y*w+x] = true

		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

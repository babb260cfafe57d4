package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// analysisSide bounds the longest side of the copy quality is measured on
const analysisSide = 512

// Quality breaks an image quality score into its parts
type Quality struct {
	Score      int     `json:"score"`
	Sharpness  float64 `json:"sharpness"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
}

// Assess scores how usable an image is for text extraction on a 0-100
// scale. Sharpness (variance of the Laplacian) carries 60 points, exposure
// (distance of mean brightness from mid-grey) 20 and contrast (standard
// deviation of brightness) 20.
func Assess(img image.Image) (Quality, error) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return Quality{}, fmt.Errorf("image too small to assess: %dx%d", b.Dx(), b.Dy())
	}

	small := Thumbnail(img, analysisSide)
	gray := toGray(small)
	w, h := len(gray[0]), len(gray)

	var sum, sumSq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := gray[y][x]
			sum += v
			sumSq += v * v
		}
	}
	n := float64(w * h)
	mean := sum / n
	std := math.Sqrt(math.Max(sumSq/n-mean*mean, 0))

	var lapSum, lapSq float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			l := gray[y-1][x] + gray[y+1][x] + gray[y][x-1] + gray[y][x+1] - 4*gray[y][x]
			lapSum += l
			lapSq += l * l
		}
	}
	ln := float64((w - 2) * (h - 2))
	lapMean := lapSum / ln
	lapVar := lapSq/ln - lapMean*lapMean

	sharp := clamp01(lapVar/500) * 60
	exposure := (1 - math.Abs(mean-128)/128) * 20
	contrast := clamp01(std/64) * 20

	return Quality{
		Score:      int(math.Round(sharp + exposure + contrast)),
		Sharpness:  lapVar,
		Brightness: mean,
		Contrast:   std,
	}, nil
}

// AssessData decodes data and scores it
func AssessData(data []byte, contentType string) (Quality, error) {
	img, err := Decode(data, contentType)
	if err != nil {
		return Quality{}, err
	}
	return Assess(img)
}

func toGray(img image.Image) [][]float64 {
	b := img.Bounds()
	out := make([][]float64, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := make([]float64, b.Dx())
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			row[x-b.Min.X] = float64(g.Y)
		}
		out[y-b.Min.Y] = row
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

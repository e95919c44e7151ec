package camera

import (
	"math"
	"math/rand"

	"row-major/glint/ray"
	"row-major/glint/vmath/vec3"
)

type Camera interface {
	ImageToRay(curRow, imgRows, curCol, imgCols int, rng *rand.Rand) ray.Ray
}

// ThinLensCamera is a perspective camera with a circular lens, giving depth of
// field.  An aperture of zero makes it a pinhole.
type ThinLensCamera struct {
	Origin          vec3.T
	LowerLeftCorner vec3.T
	Horizontal      vec3.T
	Vertical        vec3.T

	// The camera basis.  W points backward, away from the scene.
	U, V, W vec3.T

	LensRadius float64
}

// NewThinLensCamera aims a camera at lookAt from lookFrom.  vFovDegrees is the
// vertical field of view.  A focusDist <= 0 focuses on lookAt.
func NewThinLensCamera(lookFrom, lookAt, vUp vec3.T, vFovDegrees, aspectRatio, aperture, focusDist float64) *ThinLensCamera {
	theta := vFovDegrees * math.Pi / 180.0
	viewportHeight := 2.0 * math.Tan(theta/2.0)
	viewportWidth := aspectRatio * viewportHeight

	w := vec3.Normalize(vec3.SubVV(lookFrom, lookAt))
	u := vec3.Normalize(vec3.CProd(vUp, w))
	v := vec3.CProd(w, u)

	if focusDist <= 0 {
		focusDist = vec3.SubVV(lookFrom, lookAt).Norm()
	}

	horizontal := vec3.MulVS(u, viewportWidth*focusDist)
	vertical := vec3.MulVS(v, viewportHeight*focusDist)

	lowerLeft := lookFrom
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(horizontal, 0.5))
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(vertical, 0.5))
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(w, focusDist))

	return &ThinLensCamera{
		Origin:          lookFrom,
		LowerLeftCorner: lowerLeft,
		Horizontal:      horizontal,
		Vertical:        vertical,
		U:               u,
		V:               v,
		W:               w,
		LensRadius:      aperture / 2.0,
	}
}

// ApertureFromFNumber converts an f-number (1.8 for f/1.8) into an aperture
// diameter for NewThinLensCamera.
func ApertureFromFNumber(fNumber float64) float64 {
	return 1.0 / fNumber
}

// GetRay returns a ray through the viewport point (s, t), where (0, 0) is the
// lower-left corner and (1, 1) the upper-right.
func (c *ThinLensCamera) GetRay(s, t float64, rng *rand.Rand) ray.Ray {
	origin := c.Origin
	if c.LensRadius > 0 {
		rd := vec3.MulVS(vec3.InUnitDisk(rng), c.LensRadius)
		origin = vec3.AddVV(origin, vec3.AddVV(vec3.MulVS(c.U, rd[0]), vec3.MulVS(c.V, rd[1])))
	}

	target := vec3.AddVV(c.LowerLeftCorner, vec3.AddVV(vec3.MulVS(c.Horizontal, s), vec3.MulVS(c.Vertical, t)))
	return ray.Ray{
		Point: origin,
		Slope: vec3.SubVV(target, origin),
	}
}

// ImageToRay samples a ray through pixel (curRow, curCol).  Row 0 is the top
// of the image.
func (c *ThinLensCamera) ImageToRay(curRow, imgRows, curCol, imgCols int, rng *rand.Rand) ray.Ray {
	s := (float64(curCol) + rng.Float64()) / span(imgCols)
	t := (float64(imgRows-1-curRow) + rng.Float64()) / span(imgRows)
	return c.GetRay(s, t, rng)
}

func span(n int) float64 {
	if n <= 1 {
		return 1
	}
	return float64(n - 1)
}

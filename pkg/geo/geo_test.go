package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

const tolerance = 0.01

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}

// --- Point2D tests ---

func TestPointDistance(t *testing.T) {
	a := Pt(0, 0)
	b := Pt(3, 4)
	if !approxEqual(a.Distance(b), 5.0, tolerance) {
		t.Errorf("expected distance 5.0, got %f", a.Distance(b))
	}
}

// --- Polygon tests ---

func square(x0, y0, size float64) Polygon {
	return NewPolygon(Pt(x0, y0), Pt(x0+size, y0), Pt(x0+size, y0+size), Pt(x0, y0+size))
}

func TestPolygonArea(t *testing.T) {
	sq := square(0, 0, 10)
	if !approxEqual(sq.Area(), 100, tolerance) {
		t.Errorf("expected area 100, got %f", sq.Area())
	}
	if NewPolygon(Pt(0, 0), Pt(1, 1)).Area() != 0 {
		t.Error("degenerate polygon should have zero area")
	}
}

func TestPolygonCentroid(t *testing.T) {
	c := square(0, 0, 10).Centroid()
	if !approxEqual(c.X, 5, tolerance) || !approxEqual(c.Y, 5, tolerance) {
		t.Errorf("expected (5,5), got (%f,%f)", c.X, c.Y)
	}
	line := NewPolygon(Pt(0, 0), Pt(4, 0))
	if c := line.Centroid(); !approxEqual(c.X, 2, tolerance) {
		t.Errorf("degenerate centroid = %v", c)
	}
}

func TestPolygonContains(t *testing.T) {
	sq := square(0, 0, 10)
	if !sq.Contains(Pt(5, 5)) {
		t.Error("center should be inside")
	}
	if sq.Contains(Pt(15, 5)) {
		t.Error("(15,5) should be outside")
	}
	if NewPolygon(Pt(0, 0), Pt(1, 0)).Contains(Pt(0.5, 0)) {
		t.Error("degenerate polygon contains nothing")
	}
}

func TestPolygonBoundingBox(t *testing.T) {
	minP, maxP := NewPolygon(Pt(3, -1), Pt(-2, 4), Pt(5, 2)).BoundingBox()
	if minP != Pt(-2, -1) || maxP != Pt(5, 4) {
		t.Errorf("bbox = %v %v", minP, maxP)
	}
}

func TestShapeHoles(t *testing.T) {
	s := Shape{square(0, 0, 10), square(4, 4, 2)}
	if !s.Contains(Pt(1, 1)) {
		t.Error("(1,1) should be inside the outer ring")
	}
	if s.Contains(Pt(5, 5)) {
		t.Error("(5,5) is inside the hole")
	}
	if (Shape{}).Contains(Pt(0, 0)) {
		t.Error("empty shape contains nothing")
	}
}

// --- Projection tests ---

func TestEquirectangularCorners(t *testing.T) {
	e := DefaultTexture
	tl := e.Project(orb.Point{-180, 90})
	if tl != Pt(0, 0) {
		t.Errorf("top-left = %v", tl)
	}
	br := e.Project(orb.Point{180, -90})
	if br != Pt(TextureWidth, TextureHeight) {
		t.Errorf("bottom-right = %v", br)
	}
	c := e.Project(orb.Point{0, 0})
	if c != Pt(2048, 1024) {
		t.Errorf("center = %v", c)
	}
}

func TestEquirectangularRoundTrip(t *testing.T) {
	e := Equirectangular{Width: 1000, Height: 500}
	for _, p := range []orb.Point{{-74.01, 40.71}, {139.69, 35.68}, {-43.17, -22.91}} {
		back := e.Invert(e.Project(p))
		if !approxEqual(back[0], p[0], 1e-9) || !approxEqual(back[1], p[1], 1e-9) {
			t.Errorf("round trip %v -> %v", p, back)
		}
	}
	if !approxEqual(e.DegreesPerPixel(), 0.36, 1e-12) {
		t.Errorf("DegreesPerPixel = %v", e.DegreesPerPixel())
	}
}

func TestProjectGeometry(t *testing.T) {
	ring := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	mp := orb.MultiPolygon{{ring}, {ring}}
	shapes := DefaultTexture.ProjectGeometry(orb.Collection{mp, orb.Point{1, 1}})
	if len(shapes) != 2 {
		t.Fatalf("expected 2 shapes, got %d", len(shapes))
	}
	inside := DefaultTexture.Project(orb.Point{5, 5})
	if !shapes[0].Contains(inside) {
		t.Error("projected shape should contain its interior")
	}
}

func TestToSphere(t *testing.T) {
	north := ToSphere(90, 0, 1)
	if !approxEqual(north.Y, 1, 1e-9) || !approxEqual(north.X, 0, 1e-9) {
		t.Errorf("north pole = %+v", north)
	}
	// lon 0 maps to theta = pi, so x = +r on the equator.
	eq := ToSphere(0, 0, 2)
	if !approxEqual(eq.X, 2, 1e-9) || !approxEqual(eq.Y, 0, 1e-9) || !approxEqual(eq.Z, 0, 1e-9) {
		t.Errorf("equator lon 0 = %+v", eq)
	}
	if !approxEqual(ToSphere(40.71, -74.01, 3).Length(), 3, 1e-9) {
		t.Error("point should lie on the sphere")
	}
}

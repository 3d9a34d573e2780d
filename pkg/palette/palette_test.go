package palette

import "testing"

const worldMax = 1_430_000_000

func TestColorForEndpoints(t *testing.T) {
	if got := ColorFor(0, worldMax); got != (RGB{25, 60, 110}) {
		t.Errorf("ColorFor(0) = %v, want first stop", got)
	}
	if got := ColorFor(worldMax, worldMax); got != (RGB{215, 38, 38}) {
		t.Errorf("ColorFor(max) = %v, want last stop", got)
	}
}

func TestColorForInterpolation(t *testing.T) {
	low := ColorFor(1, worldMax)
	if low.B <= low.R {
		t.Errorf("low population should be blue-ish, got %v", low)
	}
	high := ColorFor(worldMax/2, worldMax)
	if high.R <= high.B {
		t.Errorf("high population should be red-ish, got %v", high)
	}
}

func TestColorForClamps(t *testing.T) {
	if got := ColorFor(worldMax*3, worldMax); got != (RGB{215, 38, 38}) {
		t.Errorf("population above max = %v, want last stop", got)
	}
	if got := ColorFor(-5, worldMax); got != (RGB{25, 60, 110}) {
		t.Errorf("negative population = %v, want first stop", got)
	}
	if got := ColorFor(10, 0); got != (RGB{25, 60, 110}) {
		t.Errorf("zero max = %v, want first stop", got)
	}
}

func TestColorForRedMonotonic(t *testing.T) {
	// The stops themselves lower red on the first segment (25 -> 18, t in
	// [0, 0.2]) and the last (225 -> 215, t in [0.8, 1]), so red can only
	// rise between the middle stops. The populations below map to
	// t = (p/max)^0.3 from 0.005^0.3 ~ 0.204 up to 0.45^0.3 ~ 0.787.
	start := int64(worldMax / 200)
	prev := ColorFor(start, worldMax).R
	for p := start; p < worldMax*45/100; p += worldMax / 500 {
		r := ColorFor(p, worldMax).R
		if r < prev {
			t.Fatalf("red decreased at population %d: %d < %d", p, r, prev)
		}
		prev = r
	}
}

func TestColorForDeterministic(t *testing.T) {
	for _, p := range []int64{0, 1, 5_000_000, 331_000_000, worldMax} {
		if ColorFor(p, worldMax) != ColorFor(p, worldMax) {
			t.Errorf("ColorFor(%d) not deterministic", p)
		}
	}
}

func TestScaleMemoises(t *testing.T) {
	s := NewScale(worldMax)
	for _, p := range []int64{1, 42, 5_000_000, 5_000_000} {
		if s.Color(p) != ColorFor(p, worldMax) {
			t.Errorf("Scale.Color(%d) disagrees with ColorFor", p)
		}
	}
	if len(s.memo) != 3 {
		t.Errorf("memo size = %d, want 3", len(s.memo))
	}
	if f := s.Fill(0, 145); f.A != 145 || f.R != ColorFor(1, worldMax).R {
		t.Errorf("Fill(0) = %v", f)
	}
}

func TestBrighten(t *testing.T) {
	c := RGBA{R: 0, G: 255, B: 100, A: 145}
	b := Brighten(c, 0.33)
	if b.R != 84 {
		t.Errorf("R = %d, want 84", b.R)
	}
	if b.G != 255 {
		t.Errorf("G = %d, want 255", b.G)
	}
	if b.A != 145 {
		t.Errorf("alpha changed: %d", b.A)
	}
	if Brighten(c, 0) != c {
		t.Error("zero magnitude should be identity")
	}
}

func TestMarkerSize(t *testing.T) {
	if got := MarkerSize(worldMax, worldMax, 5, 15); got != 20 {
		t.Errorf("MarkerSize(max) = %v, want 20", got)
	}
	if got := MarkerSize(0, worldMax, 5, 15); got != 5 {
		t.Errorf("MarkerSize(0) = %v, want 5", got)
	}
	small := MarkerSize(1_000_000, worldMax, 5, 15)
	big := MarkerSize(100_000_000, worldMax, 5, 15)
	if !(small < big) {
		t.Errorf("marker size not increasing: %v >= %v", small, big)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		pop  int64
		want string
	}{
		{20_000_000, "Mega"},
		{19_999_999, "Large"},
		{10_000_000, "Large"},
		{5_000_000, "Medium"},
		{1_000_000, "Small"},
		{999_999, "Micro"},
	}
	for _, tt := range tests {
		if got := TierFor(tt.pop).Label; got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.pop, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{1_426_000_000, "1.43B"},
		{331_000_000, "331.0M"},
		{250_500, "250.5K"},
		{999, "999"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := Format(tt.n); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestHex(t *testing.T) {
	if got := (RGB{215, 38, 38}).Hex(); got != "#d72626" {
		t.Errorf("Hex = %q", got)
	}
}

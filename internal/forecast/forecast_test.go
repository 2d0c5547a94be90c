package forecast

import (
	"math"
	"testing"
)

func TestLinearRegression(t *testing.T) {
	fit, ok := LinearRegression([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	if !ok {
		t.Fatal("LinearRegression ok = false")
	}
	if math.Abs(fit.Slope-2) > 1e-12 || math.Abs(fit.Intercept-1) > 1e-12 {
		t.Errorf("fit = %+v; want slope 2 intercept 1", fit)
	}
}

func TestLinearRegression_Degenerate(t *testing.T) {
	if _, ok := LinearRegression([]float64{1}, []float64{1}); ok {
		t.Error("single point: ok = true")
	}
	if _, ok := LinearRegression([]float64{2, 2, 2}, []float64{1, 2, 3}); ok {
		t.Error("constant x: ok = true")
	}
}

func TestLinear(t *testing.T) {
	got := Linear([]float64{20, 21, 22}, 3)
	want := []float64{23, 24, 25}
	if len(got) != len(want) {
		t.Fatalf("len = %d; want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("got[%d] = %v; want %v", i, got[i], want[i])
		}
	}
}

func TestLinear_NotEnoughData(t *testing.T) {
	if got := Linear([]float64{20}, 12); got != nil {
		t.Errorf("Linear(1 value) = %v; want nil", got)
	}
	if got := Linear([]float64{20, 21}, 0); got != nil {
		t.Errorf("Linear(steps=0) = %v; want nil", got)
	}
}

func TestLinear_Flat(t *testing.T) {
	for _, v := range Linear([]float64{45, 45, 45, 45}, 5) {
		if v != 45 {
			t.Errorf("flat series projected %v; want 45", v)
		}
	}
}

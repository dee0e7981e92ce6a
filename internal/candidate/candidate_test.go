package candidate

import "testing"

func TestID_String(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{ID{Iteration: 0, Local: 0}, "i0c0"},
		{ID{Iteration: 0, Local: 2}, "i0c2"},
		{ID{Iteration: 3, Local: 11}, "i3c11"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID%v.String() = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestID_Less(t *testing.T) {
	tests := []struct {
		name string
		a, b ID
		want bool
	}{
		{"earlier iteration wins", ID{0, 5}, ID{1, 0}, true},
		{"same iteration lower local wins", ID{1, 2}, ID{1, 3}, true},
		{"equal is not less", ID{1, 2}, ID{1, 2}, false},
		{"later iteration is not less", ID{2, 0}, ID{1, 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("%v.Less(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDimensionFor_AlternatesStartingWithWhat(t *testing.T) {
	// Odd iterations refine content, even iterations refine style.
	want := []Dimension{DimHow, DimWhat, DimHow, DimWhat, DimHow}
	for i, w := range want {
		if got := DimensionFor(i); got != w {
			t.Errorf("DimensionFor(%d) = %q, want %q", i, got, w)
		}
	}
}

func TestDimension_Other(t *testing.T) {
	if DimWhat.Other() != DimHow {
		t.Errorf("DimWhat.Other() = %q, want %q", DimWhat.Other(), DimHow)
	}
	if DimHow.Other() != DimWhat {
		t.Errorf("DimHow.Other() = %q, want %q", DimHow.Other(), DimWhat)
	}
}

func TestTotalScore(t *testing.T) {
	tests := []struct {
		name                 string
		alignment, aesthetic float64
		alpha                float64
		want                 float64
	}{
		{"alpha zero uses aesthetics only", 80, 6, 0, 60},
		{"alpha one uses alignment only", 80, 6, 1, 80},
		{"perfect scores blend to 100", 100, 10, 0.7, 100},
		{"default blend", 75, 5, 0.7, 67.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalScore(tt.alignment, tt.aesthetic, tt.alpha)
			if got != tt.want {
				t.Errorf("TotalScore(%v, %v, %v) = %v, want %v",
					tt.alignment, tt.aesthetic, tt.alpha, got, tt.want)
			}
		})
	}
}

func TestImage_Ref_PrefersLocalPath(t *testing.T) {
	img := Image{URL: "https://example.com/a.png", LocalPath: "/tmp/a.png"}
	if got := img.Ref(); got != "/tmp/a.png" {
		t.Errorf("Ref() = %q, want local path", got)
	}

	img = Image{URL: "https://example.com/a.png"}
	if got := img.Ref(); got != "https://example.com/a.png" {
		t.Errorf("Ref() = %q, want URL", got)
	}

	if (Image{}).Usable() {
		t.Error("empty image reported usable")
	}
}

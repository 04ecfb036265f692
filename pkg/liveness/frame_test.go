package liveness

import (
	"errors"
	"math"
	"testing"
)

func TestNewLandmarkFrame(t *testing.T) {
	tests := []struct {
		name    string
		points  []Landmark
		wantErr bool
	}{
		{"full mesh", createPoints(0.3, 0), false},
		{"empty", nil, true},
		{"too few", make([]Landmark, NumLandmarks-1), true},
		{"too many", make([]Landmark, NumLandmarks+10), true},
		{"five point detector output", make([]Landmark, 5), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewLandmarkFrame(tt.points, 42)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLandmarkFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFrameShape) {
					t.Errorf("expected ErrInvalidFrameShape, got %v", err)
				}
				return
			}
			if f.CapturedAt() != 42 {
				t.Errorf("expected timestamp 42, got %d", f.CapturedAt())
			}
		})
	}
}

func TestNewLandmarkFrame_NonFinite(t *testing.T) {
	points := createPoints(0.3, 0)
	points[100].X = math.NaN()
	if _, err := NewLandmarkFrame(points, 0); !errors.Is(err, ErrInvalidFrameShape) {
		t.Errorf("expected ErrInvalidFrameShape for NaN, got %v", err)
	}

	points = createPoints(0.3, 0)
	points[7].Y = math.Inf(1)
	if _, err := NewLandmarkFrame(points, 0); !errors.Is(err, ErrInvalidFrameShape) {
		t.Errorf("expected ErrInvalidFrameShape for Inf, got %v", err)
	}
}

func TestLandmarkFrame_Immutable(t *testing.T) {
	points := createPoints(0.3, 0)
	f, err := NewLandmarkFrame(points, 0)
	if err != nil {
		t.Fatalf("NewLandmarkFrame failed: %v", err)
	}

	orig := f.At(LeftEyeOuter)
	points[LeftEyeOuter].X = 0.99
	if f.At(LeftEyeOuter) != orig {
		t.Error("frame changed when input slice was modified")
	}

	copied := f.Points()
	copied[LeftEyeOuter].X = 0.99
	if f.At(LeftEyeOuter) != orig {
		t.Error("frame changed when Points() result was modified")
	}
}

func TestRawFrameSample_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sample  RawFrameSample
		wantErr bool
	}{
		{"valid rgba", RawFrameSample{Width: 2, Height: 2, Channels: 4, Pixels: make([]byte, 16)}, false},
		{"valid gray", RawFrameSample{Width: 3, Height: 1, Channels: 1, Pixels: make([]byte, 3)}, false},
		{"short buffer", RawFrameSample{Width: 2, Height: 2, Channels: 4, Pixels: make([]byte, 15)}, true},
		{"zero width", RawFrameSample{Width: 0, Height: 2, Channels: 4}, true},
		{"zero channels", RawFrameSample{Width: 2, Height: 2, Channels: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

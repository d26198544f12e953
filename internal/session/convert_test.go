package session

import (
	"bytes"
	"testing"

	"github.com/visiona/camlink/internal/source"
)

func TestToRGB(t *testing.T) {
	tests := []struct {
		name    string
		frame   source.Frame
		want    []byte
		wantErr bool
	}{
		{
			name: "rgb passthrough",
			frame: source.Frame{
				Width: 2, Height: 1,
				Format: source.FormatRGB,
				Data:   []byte{1, 2, 3, 4, 5, 6},
			},
			want: []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name: "bgr swapped",
			frame: source.Frame{
				Width: 2, Height: 1,
				Format: source.FormatBGR,
				Data:   []byte{1, 2, 3, 4, 5, 6},
			},
			want: []byte{3, 2, 1, 6, 5, 4},
		},
		{
			name: "truncated data",
			frame: source.Frame{
				Width: 2, Height: 2,
				Format: source.FormatRGB,
				Data:   []byte{1, 2, 3},
			},
			wantErr: true,
		},
		{
			name: "zero dimensions",
			frame: source.Frame{
				Width: 0, Height: 0,
				Format: source.FormatRGB,
				Data:   nil,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toRGB(tt.frame)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("pixels = %v, want %v", got, tt.want)
			}
		})
	}
}

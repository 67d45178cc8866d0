package uri

import (
	"testing"
)

func TestParseUri(t *testing.T) {
	tests := []struct {
		uri      string
		expected string
		wantErr  bool
	}{
		{uri: "gs://my-bucket/path/to/cube.tif", expected: "gs://my-bucket/path/to/cube.tif"},
		{uri: "file:///data/cubes/cube.tif", expected: "file:///data/cubes/cube.tif"},
		{uri: "/data/cubes/cube.tif", expected: "/data/cubes/cube.tif"},
		{uri: "not a uri", wantErr: true},
	}

	for _, tc := range tests {
		u, err := ParseUri(tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseUri(%q): expecting error, found nil", tc.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseUri(%q): %v", tc.uri, err)
			continue
		}
		if u.String() != tc.expected {
			t.Errorf("ParseUri(%q).String() = %q, expected %q", tc.uri, u.String(), tc.expected)
		}
	}
}

package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		want   []string
	}{
		{
			name:   "nil labels",
			labels: nil,
			want:   nil,
		},
		{
			name:   "empty labels",
			labels: map[string]string{},
			want:   nil,
		},
		{
			name: "single capability",
			labels: map[string]string{
				LabelPrefix + "aws": "true",
			},
			want: []string{"aws"},
		},
		{
			name: "multiple capabilities sorted",
			labels: map[string]string{
				LabelPrefix + "gcp":   "true",
				LabelPrefix + "aws":   "true",
				LabelPrefix + "azure": "true",
			},
			want: []string{"aws", "azure", "gcp"},
		},
		{
			name: "value must be exactly true",
			labels: map[string]string{
				LabelPrefix + "aws":   "True",
				LabelPrefix + "gcp":   "false",
				LabelPrefix + "azure": "true",
			},
			want: []string{"azure"},
		},
		{
			name: "unrelated labels ignored",
			labels: map[string]string{
				"app.kubernetes.io/name": "true",
				"aws":                    "true",
				LabelPrefix + "aws":      "true",
			},
			want: []string{"aws"},
		},
		{
			name: "prefix with empty type ignored",
			labels: map[string]string{
				LabelPrefix: "true",
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromLabels(tt.labels))
		})
	}
}

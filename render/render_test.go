package render

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Site   string `json:"site" yaml:"site"`
	Status string `json:"status" yaml:"status"`
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	v := []row{{Site: "KGN-04", Status: "present"}}
	tabular := func() fmt.Stringer {
		return NewTable("SITE", "STATUS").Row("KGN-04", "Present")
	}

	tests := []struct {
		format Format
		want   []string
	}{
		{JSON, []string{`"site": "KGN-04"`, `"status": "present"`}},
		{YAML, []string{"- site: KGN-04", "  status: present"}},
		{Table, []string{"SITE", "KGN-04", "Present"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tt.format, v, tabular))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestKeyValues(t *testing.T) {
	out := KeyValues([2]string{"State", "PUNCHED_IN"}, [2]string{"In time", "08:00"}).String()
	assert.Contains(t, out, "PUNCHED_IN")
	assert.Contains(t, out, "In time")
}

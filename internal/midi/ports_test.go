package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiorouter/internal/errors"
)

type namedPort struct {
	num  int
	name string
}

func (p namedPort) Number() int    { return p.num }
func (p namedPort) String() string { return p.name }

func TestSelectPort(t *testing.T) {
	t.Parallel()

	ports := []namedPort{
		{0, "Midi Through:Midi Through Port-0 14:0"},
		{1, "USB Keys:USB Keys MIDI 1 20:0"},
		{2, "USB Keys"},
	}

	tests := []struct {
		name    string
		query   string
		want    int
		wantErr bool
	}{
		{"exact match wins over substring", "USB Keys", 2, false},
		{"case insensitive substring", "midi through", 0, false},
		{"first substring match", "keys midi", 1, false},
		{"no match", "Launchpad", 0, true},
		{"empty name never matches", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := selectPort(ports, tt.query)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPortNotFound)
				assert.True(t, errors.IsNotFound(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Number())
		})
	}
}

func TestPortInfos(t *testing.T) {
	t.Parallel()

	infos := portInfos([]namedPort{{3, "a"}, {7, "b"}})
	assert.Equal(t, []PortInfo{{Number: 3, Name: "a"}, {Number: 7, Name: "b"}}, infos)
	assert.Empty(t, portInfos([]namedPort(nil)))
}

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type layoutSet struct {
	midiEffect bool
	accepted   map[ChannelCount]bool // nil accepts everything
}

func (l layoutSet) IsMIDIEffect() bool { return l.midiEffect }

func (l layoutSet) AcceptsLayout(c ChannelCount) bool {
	return l.accepted == nil || l.accepted[c]
}

func only(layouts ...ChannelCount) layoutSet {
	m := make(map[ChannelCount]bool, len(layouts))
	for _, c := range layouts {
		m[c] = true
	}
	return layoutSet{accepted: m}
}

func TestCandidateLayouts(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]ChannelCount{{2, 2}},
		CandidateLayouts(ChannelCount{1, 1}, ChannelCount{2, 2}),
		"multi-input devices only try the device layout")

	assert.Equal(t,
		[]ChannelCount{{1, 2}, {1, 2}, {2, 2}},
		CandidateLayouts(ChannelCount{1, 1}, ChannelCount{1, 2}))

	assert.Equal(t,
		[]ChannelCount{{0, 2}, {2, 2}, {2, 2}},
		CandidateLayouts(ChannelCount{2, 2}, ChannelCount{0, 2}))
}

func TestNegotiateLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		unit         layoutSet
		unitDefault  ChannelCount
		device       ChannelCount
		want         ChannelCount
		wantAccepted bool
	}{
		{
			name:         "device layout accepted",
			unit:         layoutSet{},
			unitDefault:  ChannelCount{2, 2},
			device:       ChannelCount{2, 2},
			want:         ChannelCount{2, 2},
			wantAccepted: true,
		},
		{
			name:         "mono device feeds unit default inputs",
			unit:         only(ChannelCount{1, 2}),
			unitDefault:  ChannelCount{1, 2},
			device:       ChannelCount{0, 2},
			want:         ChannelCount{1, 2},
			wantAccepted: true,
		},
		{
			name:         "mirrored outputs as last resort",
			unit:         only(ChannelCount{2, 2}),
			unitDefault:  ChannelCount{1, 1},
			device:       ChannelCount{1, 2},
			want:         ChannelCount{2, 2},
			wantAccepted: true,
		},
		{
			name:         "nothing accepted falls back to device",
			unit:         only(ChannelCount{1, 2}),
			unitDefault:  ChannelCount{1, 2},
			device:       ChannelCount{2, 2},
			want:         ChannelCount{2, 2},
			wantAccepted: false,
		},
		{
			name:         "midi effect has no audio channels",
			unit:         layoutSet{midiEffect: true},
			unitDefault:  ChannelCount{2, 2},
			device:       ChannelCount{2, 2},
			want:         ChannelCount{},
			wantAccepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, accepted := negotiate(tt.unit, tt.unitDefault, tt.device)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAccepted, accepted)
			assert.Equal(t, tt.want, NegotiateLayout(tt.unit, tt.unitDefault, tt.device))
		})
	}
}

func TestNegotiateLayoutExhaustive(t *testing.T) {
	t.Parallel()

	var counts []ChannelCount
	for ins := range 3 {
		for outs := range 3 {
			counts = append(counts, ChannelCount{Ins: ins, Outs: outs})
		}
	}

	units := map[string]layoutSet{
		"accepts everything": {},
		"accepts nothing":    only(),
		"in equals out": {accepted: map[ChannelCount]bool{
			{1, 1}: true, {2, 2}: true,
		}},
	}
	for _, c := range counts {
		units["only "+c.String()] = only(c)
	}

	for _, device := range counts {
		for _, unitDefault := range counts {
			candidates := CandidateLayouts(unitDefault, device)
			require.NotEmpty(t, candidates)
			assert.Equal(t, device, candidates[0], "device layout is always preferred")

			for name, unit := range units {
				got, accepted := negotiate(unit, unitDefault, device)
				assert.Equal(t, got, NegotiateLayout(unit, unitDefault, device))

				allowed := map[int]bool{device.Ins: true, device.Outs: true, unitDefault.Ins: true}
				assert.Truef(t, allowed[got.Ins], "%s device=%v default=%v invented ins %d", name, device, unitDefault, got.Ins)
				assert.Equalf(t, device.Outs, got.Outs, "%s device=%v default=%v changed outs", name, device, unitDefault)

				first, found := firstAccepted(unit, candidates)
				if !found {
					assert.False(t, accepted)
					assert.Equal(t, device, got, "falls back to the device layout")
					continue
				}
				assert.True(t, accepted)
				assert.Containsf(t, candidates, got, "%s device=%v default=%v", name, device, unitDefault)
				assert.Equalf(t, first, got, "%s device=%v default=%v picks the first accepted candidate", name, device, unitDefault)
			}
		}
	}
}

func TestNegotiateLayoutMIDIEffect(t *testing.T) {
	t.Parallel()

	for ins := range 3 {
		for outs := range 3 {
			got := NegotiateLayout(layoutSet{midiEffect: true}, ChannelCount{2, 2}, ChannelCount{Ins: ins, Outs: outs})
			assert.Equal(t, ChannelCount{}, got)
		}
	}
}

func firstAccepted(unit LayoutChecker, candidates []ChannelCount) (ChannelCount, bool) {
	for _, c := range candidates {
		if unit.AcceptsLayout(c) {
			return c, true
		}
	}
	return ChannelCount{}, false
}

package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{"storyboard", "add_report", "key_actors", "highlights_timeline", "report:rep-1", "report:a:b"} {
		v, err := Parse(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, v.String())
	}
	assert.Equal(t, "a:b", Report("a:b").ReportID)

	for _, s := range []string{"", "report:", "settings", "Report:x"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrUnknownView, s)
	}
}

func TestSwitchToRendersAndHighlights(t *testing.T) {
	r := NewRouter()
	assert.Equal(t, Storyboard, r.Active())

	var rendered, highlighted []string
	var left [][2]string
	r.Handle(KindReport, func(v ID) { rendered = append(rendered, v.String()) })
	r.Handle(KindAddReport, func(v ID) { rendered = append(rendered, v.String()) })
	r.OnHighlight(func(v ID) { highlighted = append(highlighted, v.String()) })
	r.OnLeave(func(from, to ID) { left = append(left, [2]string{from.String(), to.String()}) })

	require.NoError(t, r.SwitchTo(Report("r1")))
	require.NoError(t, r.SwitchTo(AddReport))
	require.NoError(t, r.SwitchTo(AddReport))

	assert.Equal(t, []string{"report:r1", "add_report", "add_report"}, rendered)
	assert.Equal(t, rendered, highlighted)
	assert.Equal(t, [][2]string{{"storyboard", "report:r1"}, {"report:r1", "add_report"}}, left)
	assert.True(t, r.IsActive(AddReport))
}

func TestSwitchToRejectsUnknown(t *testing.T) {
	r := NewRouter()
	err := r.SwitchTo(ID{Kind: "settings"})
	assert.ErrorIs(t, err, ErrUnknownView)
	assert.ErrorIs(t, r.SwitchTo(ID{Kind: KindReport}), ErrUnknownView)
	assert.Equal(t, Storyboard, r.Active())
}

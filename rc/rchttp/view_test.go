package rchttp_test

import (
	"testing"

	"github.com/gordian-engine/gcircle/rc/rchttp"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/stretchr/testify/require"
)

func TestNewCircleView(t *testing.T) {
	t.Parallel()

	fx := rcstatetest.NewFixture(3)
	s := fx.Contribute(fx.Enrolled(), 2)

	v := rchttp.NewCircleView(s, rcledger.OutputRef{}, s.RoundDeadline()+1)
	require.Equal(t, "open", v.Phase)
	require.Equal(t, fx.ContributionPerRound, v.CurrentPool)
	require.True(t, v.Overdue)
	require.Equal(t, []string{fx.PubKey(1).String()}, v.Outstanding)
	require.Equal(t, 1, v.Members[2].Contributions)
	require.Zero(t, v.Members[1].Contributions)
}

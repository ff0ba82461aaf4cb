package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdunecki/matchfund/pkg/flows"
	"github.com/zdunecki/matchfund/pkg/logging"
)

func TestSweepClosesIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	st := newSessionStore(10*time.Minute, logging.Nop())
	st.now = func() time.Time { return now }

	fl, err := flows.Build(flows.CampaignFlow, flows.Deps{})
	require.NoError(t, err)
	idle := st.create(fl)
	fl, err = flows.Build(flows.CampaignFlow, flows.Deps{})
	require.NoError(t, err)
	active := st.create(fl)

	now = now.Add(8 * time.Minute)
	_, ok := st.get(active.id)
	require.True(t, ok)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, st.sweep())
	assert.True(t, idle.ctrl.Closed())
	assert.False(t, active.ctrl.Closed())

	_, ok = st.get(idle.id)
	assert.False(t, ok)
	assert.Equal(t, 1, st.len())
}

func TestSweepDisabledWithoutTTL(t *testing.T) {
	st := newSessionStore(0, logging.Nop())
	fl, err := flows.Build(flows.OnboardingFlow, flows.Deps{})
	require.NoError(t, err)
	s := st.create(fl)
	assert.Equal(t, 0, st.sweep())
	assert.False(t, s.ctrl.Closed())

	st.closeAll()
	assert.True(t, s.ctrl.Closed())
	assert.Equal(t, 0, st.len())
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Second, sweepInterval(time.Second))
	assert.Equal(t, 5*time.Minute, sweepInterval(20*time.Minute))
}

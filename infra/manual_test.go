package infra

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/systems"
)

func manualUniverse(t *testing.T) (*core.Universe, *Manual) {
	t.Helper()
	u := core.NewUniverse()
	require.NoError(t, u.AddComponent(newDevice("gen", core.EnergyOnly(5), "power")))
	require.NoError(t, u.AddComponent(newDevice("lamp", core.EnergyOnly(9), "power")))
	require.NoError(t, u.AddComponent(newDevice("cpu", core.TextOnly(), "debug")))
	require.NoError(t, u.AddComponent(newDevice("term", core.TextOnly(), "debug")))
	return u, NewManual(u)
}

func TestManual_ConnectByNameNegotiatesPorts(t *testing.T) {
	u, m := manualUniverse(t)

	conn, err := m.ConnectByName(Endpoint{Component: "gen"}, Endpoint{Component: "lamp", Port: "power"})
	require.NoError(t, err)
	assert.Equal(t, core.AuthorityManual, conn.Author)
	assert.Equal(t, 5.0, conn.Capabilities.Energy.Throughput)
	assert.Equal(t, 1, u.Registry().Len())

	n, err := m.DisconnectByName(Endpoint{Component: "lamp"}, Endpoint{Component: "gen"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, u.Registry().Len())
}

func TestManual_UnknownEndpointChangesNothing(t *testing.T) {
	u, m := manualUniverse(t)

	_, err := m.ConnectByName(Endpoint{Component: "gen"}, Endpoint{Component: "ghost"})
	assert.True(t, errors.Is(err, core.ErrComponentNotFound), "err = %v", err)

	_, err = m.ConnectByName(Endpoint{Component: "gen", Port: "nope"}, Endpoint{Component: "lamp"})
	assert.True(t, errors.Is(err, core.ErrPortNotFound), "err = %v", err)
	assert.Zero(t, u.Registry().Len())
}

func TestManual_SelfLinkIsRejected(t *testing.T) {
	u, m := manualUniverse(t)

	_, err := m.ConnectByName(Endpoint{Component: "gen"}, Endpoint{Component: "gen", Port: "power"})
	assert.True(t, errors.Is(err, ErrSelfLink), "err = %v", err)

	err = m.Apply([]Link{
		{A: Endpoint{Component: "cpu"}, B: Endpoint{Component: "term"}},
		{A: Endpoint{Component: "lamp"}, B: Endpoint{Component: "lamp"}},
	})
	assert.True(t, errors.Is(err, ErrSelfLink), "err = %v", err)
	assert.Zero(t, u.Registry().Len())

	// Even if asserted directly, a self connection never reaches the energy
	// system, so an offer cannot be credited twice.
	gen, err := u.LookupPort("gen", "")
	require.NoError(t, err)
	m.Connect(gen, gen)
	energy := systems.NewEnergy(nil)
	energy.Offer(gen, 10)
	require.NoError(t, energy.Update(context.Background(), u.Registry().All()))
	assert.Zero(t, energy.Pool(gen))
}

func TestManual_ApplyIsAllOrNothing(t *testing.T) {
	u, m := manualUniverse(t)

	err := m.Apply([]Link{
		{A: Endpoint{Component: "gen"}, B: Endpoint{Component: "lamp"}},
		{A: Endpoint{Component: "cpu"}, B: Endpoint{Component: "ghost"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEndpointNotFound))
	assert.True(t, errors.Is(err, core.ErrComponentNotFound))
	assert.Zero(t, u.Registry().Len(), "no link may be asserted when one fails")
}

func TestManual_QueueReplacesOnUpdate(t *testing.T) {
	u, m := manualUniverse(t)
	ctx := context.Background()
	require.NoError(t, m.Apply([]Link{{A: Endpoint{Component: "gen"}, B: Endpoint{Component: "lamp"}}}))

	m.Queue([]Link{{A: Endpoint{Component: "cpu"}, B: Endpoint{Component: "term"}}})
	assert.Equal(t, "gen", m.Links()[0].A.Component, "queued links wait for the next Update")

	require.NoError(t, m.Update(ctx, time.Now()))
	links := m.Links()
	require.Len(t, links, 1)
	assert.Equal(t, "cpu", links[0].A.Component)
	assert.Equal(t, "debug", links[0].A.Port)

	// A bad queued set keeps the current one.
	m.Queue([]Link{{A: Endpoint{Component: "ghost"}, B: Endpoint{Component: "term"}}})
	assert.Error(t, m.Update(ctx, time.Now()))
	assert.Len(t, m.Links(), 1)
	assert.Equal(t, 1, u.Registry().Len())
}

func TestManual_SaveAndLoadFile(t *testing.T) {
	for _, name := range []string{"links.json", "links.yaml"} {
		t.Run(name, func(t *testing.T) {
			_, m := manualUniverse(t)
			require.NoError(t, m.Apply([]Link{
				{A: Endpoint{Component: "gen"}, B: Endpoint{Component: "lamp"}},
				{A: Endpoint{Component: "term"}, B: Endpoint{Component: "cpu"}},
			}))
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, m.SaveFile(path))

			u2, m2 := manualUniverse(t)
			require.NoError(t, m2.LoadFile(path))
			assert.Equal(t, 2, u2.Registry().Len())
			assert.Equal(t, m.Links(), m2.Links())
		})
	}
}

func TestManual_LoadMissingFileIsNoop(t *testing.T) {
	u, m := manualUniverse(t)
	require.NoError(t, m.LoadFile(filepath.Join(t.TempDir(), "absent.json")))
	assert.Zero(t, u.Registry().Len())
}

func TestCodecForPath(t *testing.T) {
	assert.Equal(t, "yaml", CodecForPath("a/b.YML").Format())
	assert.Equal(t, "yaml", CodecForPath("b.yaml").Format())
	assert.Equal(t, "json", CodecForPath("b.json").Format())
	assert.Equal(t, "json", CodecForPath("noext").Format())
}

package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

var allSurfaces = []Surface{SurfaceRegisterTx, SurfaceUpdateServiceTx, SurfaceStatus, SurfaceListDiff}

func renderJSON(t *testing.T, as *AddressSet, surface Surface, mode Mode) map[string]interface{} {
	v, err := as.Render(surface, mode)
	require.NoError(t, err, "Render(%s, %s)", surface, mode)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func mustDerive(t *testing.T, kind Kind, in EndpointInput) *AddressSet {
	as, err := Derive(kind, in)
	require.NoError(t, err, "Derive")
	return as
}

func TestRenderRegular(t *testing.T) {
	require := require.New(t)

	as := mustDerive(t, KindRegular, EndpointInput{CoreP2P: []string{"127.0.0.1:9998"}})

	for _, surface := range allSurfaces {
		m := renderJSON(t, as, surface, ModeModern)
		require.Equal(map[string]interface{}{
			"core_p2p": []interface{}{"127.0.0.1:9998"},
		}, m["addresses"], surface.String())
		require.NotContains(m, "platformP2PPort", surface.String())
		require.NotContains(m, "platformHTTPPort", surface.String())

		if surface == SurfaceStatus {
			require.Equal("127.0.0.1:9998", m["service"])
		} else {
			require.NotContains(m, "service", surface.String())
		}

		m = renderJSON(t, as, surface, ModeLegacy)
		require.Equal("127.0.0.1:9998", m["service"], surface.String())
		require.NotContains(m, "platformP2PPort", "no platform entry")
		require.NotContains(m, "platformHTTPPort", "no platform entry")
	}
}

func TestRenderEvo(t *testing.T) {
	require := require.New(t)

	as := mustDerive(t, KindEvo, EndpointInput{
		CoreP2P:      []string{"127.0.0.1:9997"},
		PlatformHTTP: []string{"19998"},
		PlatformP2P:  []string{"29998"},
	})

	full := map[string]interface{}{
		"core_p2p":      []interface{}{"127.0.0.1:9997"},
		"platform_http": []interface{}{"127.0.0.1:19998"},
		"platform_p2p":  []interface{}{"127.0.0.1:29998"},
	}
	reduced := map[string]interface{}{
		"core_p2p":      []interface{}{"127.0.0.1:9997"},
		"platform_http": []interface{}{"127.0.0.1:19998"},
	}

	for _, tc := range []struct {
		surface   Surface
		mode      Mode
		addresses map[string]interface{}
		service   bool
		httpPort  bool
		p2pPort   bool
	}{
		{SurfaceRegisterTx, ModeModern, full, false, false, false},
		{SurfaceRegisterTx, ModeLegacy, full, true, true, true},
		{SurfaceUpdateServiceTx, ModeModern, full, false, false, false},
		{SurfaceUpdateServiceTx, ModeLegacy, full, true, true, true},
		{SurfaceStatus, ModeModern, full, true, false, false},
		{SurfaceStatus, ModeLegacy, full, true, true, true},
		{SurfaceListDiff, ModeModern, reduced, false, false, false},
		{SurfaceListDiff, ModeLegacy, reduced, true, true, false},
	} {
		name := tc.surface.String() + "/" + tc.mode.String()
		m := renderJSON(t, as, tc.surface, tc.mode)
		require.Equal(tc.addresses, m["addresses"], name)

		if tc.service {
			require.Equal("127.0.0.1:9997", m["service"], name)
		} else {
			require.NotContains(m, "service", name)
		}
		if tc.httpPort {
			require.EqualValues(19998, m["platformHTTPPort"], name)
		} else {
			require.NotContains(m, "platformHTTPPort", name)
		}
		if tc.p2pPort {
			require.EqualValues(29998, m["platformP2PPort"], name)
		} else {
			require.NotContains(m, "platformP2PPort", name)
		}
	}
}

func TestRenderModesAgree(t *testing.T) {
	require := require.New(t)

	as := mustDerive(t, KindEvo, EndpointInput{
		CoreP2P:      []string{"[::1]:9997"},
		PlatformHTTP: []string{"19998"},
		PlatformP2P:  []string{"29998"},
	})
	for _, surface := range allSurfaces {
		modern, err := as.Render(surface, ModeModern)
		require.NoError(err)
		legacy, err := as.Render(surface, ModeLegacy)
		require.NoError(err)
		require.Equal(modern.Addresses, legacy.Addresses, "structured addresses must not depend on mode")
		require.True(legacy.HasLegacyFields())
		require.Equal(surface == SurfaceStatus, modern.HasLegacyFields())
	}

	_, err := as.Render(Surface(42), ModeModern)
	require.Error(err)
	_, err = as.Render(SurfaceStatus, Mode(9))
	require.Error(err)
}

func TestMode(t *testing.T) {
	require := require.New(t)

	require.Equal(ModeLegacy, ModeFromDeprecated(true))
	require.Equal(ModeModern, ModeFromDeprecated(false))

	var m Mode
	require.NoError(m.Set("Legacy"))
	require.Equal(ModeLegacy, m)
	require.Equal("legacy", m.String())
	require.Error(m.Set("ancient"))
}

package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	require := require.New(t)

	for _, tc := range []struct {
		raw   string
		valid bool
		host  string
		port  uint16
	}{
		{"127.0.0.1:9998", true, "127.0.0.1", 9998},
		{"[::1]:19999", true, "::1", 19999},
		{"node.example.com:443", true, "node.example.com", 443},
		{"127.0.0.1", false, "", 0},
		{"127.0.0.1:0", false, "", 0},
		{"127.0.0.1:65536", false, "", 0},
		{":9999", false, "", 0},
		{"bad host:9999", false, "", 0},
	} {
		ep, err := ParseEndpoint(tc.raw)
		if !tc.valid {
			require.Error(err, "ParseEndpoint(%s)", tc.raw)
			continue
		}
		require.NoError(err, "ParseEndpoint(%s)", tc.raw)
		require.Equal(tc.host, ep.Host)
		require.Equal(tc.port, ep.Port)
		require.Equal(tc.raw, ep.String())
	}

	ep := Endpoint{Host: "Node.Example.com", Port: 1}
	require.True(ep.Equal(Endpoint{Host: "node.example.com", Port: 1}))
	require.False(ep.Equal(Endpoint{Host: "node.example.com", Port: 2}))

	b, err := json.Marshal(Endpoint{Host: "10.0.0.1", Port: 9999})
	require.NoError(err)
	require.Equal(`"10.0.0.1:9999"`, string(b))
	var dec Endpoint
	require.NoError(json.Unmarshal(b, &dec))
	require.Equal(Endpoint{Host: "10.0.0.1", Port: 9999}, dec)
}

func TestEndpointIsRoutable(t *testing.T) {
	require := require.New(t)

	for _, tc := range []struct {
		host     string
		routable bool
	}{
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"192.168.1.1", false},
		{"::1", false},
		{"8.8.8.8", true},
		{"2a01:4f8::1", true},
		{"localhost", false},
		{"mynode.local", false},
		{"mynode", false},
		{"node.example.com", true},
	} {
		require.Equal(tc.routable, Endpoint{Host: tc.host, Port: 9999}.IsRoutable(), tc.host)
	}
}

func TestDerive(t *testing.T) {
	require := require.New(t)

	as, err := Derive(KindRegular, EndpointInput{CoreP2P: []string{"127.0.0.1:9998"}})
	require.NoError(err, "Derive regular")
	require.Len(as.CoreP2P, 1)
	require.Empty(as.PlatformHTTP)
	require.Empty(as.PlatformP2P)
	primary, ok := as.Primary()
	require.True(ok)
	require.Equal(Endpoint{Host: "127.0.0.1", Port: 9998}, primary)

	// Bare platform ports bind to the core host.
	as, err = Derive(KindEvo, EndpointInput{
		CoreP2P:      []string{"127.0.0.1:9997"},
		PlatformHTTP: []string{"19998"},
		PlatformP2P:  []string{"29998"},
	})
	require.NoError(err, "Derive evo")
	require.Equal([]Endpoint{{Host: "127.0.0.1", Port: 19998}}, as.PlatformHTTP)
	require.Equal([]Endpoint{{Host: "127.0.0.1", Port: 29998}}, as.PlatformP2P)

	as, err = Derive(KindEvo, EndpointInput{
		CoreP2P:      []string{"127.0.0.1:9997"},
		PlatformHTTP: []string{"10.0.0.1:443"},
		PlatformP2P:  []string{"10.0.0.1:26656"},
	})
	require.NoError(err, "Derive evo with explicit hosts")
	require.Equal("10.0.0.1", as.PlatformHTTP[0].Host)

	for _, tc := range []struct {
		name string
		kind Kind
		in   EndpointInput
		err  error
	}{
		{"RegularWithHTTP", KindRegular, EndpointInput{CoreP2P: []string{"127.0.0.1:1"}, PlatformHTTP: []string{"2"}}, ErrInvalidTopology},
		{"RegularWithP2P", KindRegular, EndpointInput{CoreP2P: []string{"127.0.0.1:1"}, PlatformP2P: []string{"2"}}, ErrInvalidTopology},
		{"EvoMissingP2P", KindEvo, EndpointInput{CoreP2P: []string{"127.0.0.1:1"}, PlatformHTTP: []string{"2"}}, ErrInvalidTopology},
		{"EvoMissingHTTP", KindEvo, EndpointInput{CoreP2P: []string{"127.0.0.1:1"}, PlatformP2P: []string{"2"}}, ErrInvalidTopology},
		{"EvoMissingBoth", KindEvo, EndpointInput{CoreP2P: []string{"127.0.0.1:1"}}, ErrInvalidTopology},
		{"MissingCore", KindRegular, EndpointInput{}, ErrInvalidTopology},
		{"BarePortWithoutCore", KindEvo, EndpointInput{PlatformHTTP: []string{"2"}, PlatformP2P: []string{"3"}}, ErrInvalidAddress},
		{"BadCore", KindRegular, EndpointInput{CoreP2P: []string{"127.0.0.1"}}, ErrInvalidAddress},
		{"BadPort", KindEvo, EndpointInput{CoreP2P: []string{"127.0.0.1:1"}, PlatformHTTP: []string{"70000"}, PlatformP2P: []string{"3"}}, ErrInvalidPort},
		{"TooMany", KindRegular, EndpointInput{CoreP2P: []string{"127.0.0.1:1", "127.0.0.2:1"}}, ErrTooManyEntries},
		{"BadKind", Kind(7), EndpointInput{CoreP2P: []string{"127.0.0.1:1"}}, ErrInvalidKind},
	} {
		_, err := Derive(tc.kind, tc.in)
		require.ErrorIs(err, tc.err, tc.name)
	}
}

func TestAddressSetHelpers(t *testing.T) {
	require := require.New(t)

	as, err := Derive(KindEvo, EndpointInput{
		CoreP2P:      []string{"127.0.0.1:9997"},
		PlatformHTTP: []string{"19998"},
		PlatformP2P:  []string{"29998"},
	})
	require.NoError(err)
	require.Len(as.All(), 3)
	require.False(as.IsEmpty())
	require.True((&AddressSet{}).IsEmpty())

	clone := as.Clone()
	require.True(as.Equal(clone))
	clone.PlatformHTTP[0].Port = 1
	require.False(as.Equal(clone), "clone must not alias")
	require.False(as.Equal(nil))

	require.Equal("[core_p2p=127.0.0.1:9997 platform_http=127.0.0.1:19998 platform_p2p=127.0.0.1:29998]", as.String())
}

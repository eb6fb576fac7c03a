package tenancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalHost(t *testing.T) {
	cases := map[string]string{
		"shop.example.com":                 "shop.example.com",
		"Shop.Example.COM":                 "shop.example.com",
		"https://shop.example.com/":        "shop.example.com",
		"http://shop.example.com/path?q=1": "shop.example.com",
		"shop.example.com.":                "shop.example.com",
		"localhost:3000":                   "localhost:3000",
		"https://LOCALHOST:3000/api":       "localhost:3000",
		"127.0.0.1:8080":                   "127.0.0.1:8080",
		"  loja-1.example.com.br  ":        "loja-1.example.com.br",
		"[::1]:8080":                       "[::1]:8080",
	}
	for in, want := range cases {
		got, err := CanonicalHost(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCanonicalHost_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "http://", "user:pass@shop.com", "shop..com", "-shop.com", "shop.com:abc", "shop.com:", "sh op.com", "https:///path"} {
		_, err := CanonicalHost(in)
		assert.ErrorIs(t, err, ErrInvalidHost, in)
	}
}

func TestCanonicalDomains(t *testing.T) {
	canonical, invalid, dups := CanonicalDomains([]string{"shop.example.com", "https://SHOP.example.com", "bad host", "other.example.com"})
	assert.Equal(t, []string{"shop.example.com", "other.example.com"}, canonical)
	assert.Equal(t, []string{"bad host"}, invalid)
	assert.Equal(t, []string{"shop.example.com"}, dups)
}

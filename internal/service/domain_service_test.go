package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/LsSens/backend-ecommerce/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDoH 按域名返回预设的 NS 记录；未登记的域名返回 NXDOMAIN
type fakeDoH struct {
	mu      sync.Mutex
	records map[string][]string
	queried []string
}

func (f *fakeDoH) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	f.mu.Lock()
	f.queried = append(f.queried, name)
	ns, ok := f.records[name]
	f.mu.Unlock()

	type answer struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		Data string `json:"data"`
	}
	body := map[string]any{"Status": 0}
	if !ok {
		body["Status"] = 3
	} else {
		answers := []answer{{Name: name + ".", Type: 6, Data: "soa.example. hostmaster. 1 7200 900 1209600 86400"}}
		for _, n := range ns {
			answers = append(answers, answer{Name: name + ".", Type: 2, Data: n})
		}
		body["Answer"] = answers
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newDomainFixture(t *testing.T) (*DomainService, *fakeDoH) {
	fake := &fakeDoH{records: map[string][]string{
		"aws.example.com":     {"ns-1.AWSDNS-01.com.", "ns-2.awsdns-02.net."},
		"cf.example.com":      {"ada.ns.cloudflare.com."},
		"nothing.example.com": {},
	}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	resolver := NewDoHResolver(srv.URL+"/resolve", time.Second, zap.NewNop())
	return NewDomainService(resolver, []string{"AWSDNS"}, zap.NewNop()), fake
}

func TestDomainService_VerifyDomain(t *testing.T) {
	svc, fake := newDomainFixture(t)
	ctx := context.Background()

	res, err := svc.VerifyDomain(ctx, VerifyDomainRequest{Domain: "https://AWS.example.com:8443/path"})
	require.NoError(t, err)
	assert.Equal(t, "aws.example.com", res.Domain)
	assert.True(t, res.IsValid)
	assert.True(t, res.IsPointingToAWS)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, []string{"ns-1.awsdns-01.com", "ns-2.awsdns-02.net"}, res.Nameservers)

	res, err = svc.VerifyDomain(ctx, VerifyDomainRequest{Domain: "cf.example.com"})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, []string{"ada.ns.cloudflare.com"}, res.Nameservers)

	res, err = svc.VerifyDomain(ctx, VerifyDomainRequest{Domain: "nothing.example.com"})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Empty(t, res.Nameservers)

	res, err = svc.VerifyDomain(ctx, VerifyDomainRequest{Domain: "missing.example.com"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.False(t, res.IsPointingToAWS)
	assert.NotNil(t, res.Nameservers)

	fake.mu.Lock()
	assert.Equal(t, []string{"aws.example.com", "cf.example.com", "nothing.example.com", "missing.example.com"}, fake.queried)
	fake.mu.Unlock()
}

func TestDomainService_VerifyDomain_InvalidInput(t *testing.T) {
	svc, fake := newDomainFixture(t)

	_, err := svc.VerifyDomain(context.Background(), VerifyDomainRequest{})
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	_, err = svc.VerifyDomain(context.Background(), VerifyDomainRequest{Domain: "loja exemplo.com"})
	assert.Equal(t, apperr.EInvalid, apperr.ErrorCode(err))

	assert.Empty(t, fake.queried)
}

func TestDomainService_VerifyDomain_ResolverDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Status":2}`))
	}))
	t.Cleanup(srv.Close)

	svc := NewDomainService(NewDoHResolver(srv.URL, time.Second, zap.NewNop()), []string{"awsdns"}, zap.NewNop())
	_, err := svc.VerifyDomain(context.Background(), VerifyDomainRequest{Domain: "aws.example.com"})
	assert.Equal(t, apperr.EInternal, apperr.ErrorCode(err))
}

package service

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync/atomic"
	"testing"
)

func TestFetch(t *testing.T) {
	var pngData bytes.Buffer
	if err := png.Encode(&pngData, photo(10, 10)); err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/cat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData.Bytes())
	})
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, 4096))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewFetcher(0, 1024, WithPrivateHosts())
	up, err := f.Fetch(context.Background(), srv.URL+"/cat.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if up.Filename != "cat.png" || up.ContentType != "image/png" || !bytes.Equal(up.Data, pngData.Bytes()) {
		t.Errorf("unexpected upload %q %q (%d bytes)", up.Filename, up.ContentType, len(up.Data))
	}

	for _, u := range []string{
		srv.URL + "/missing.png",
		srv.URL + "/big.png",
		"ftp://example.com/a.png",
		"not a url",
	} {
		if _, err := f.Fetch(context.Background(), u); !IsInvalidInput(err) {
			t.Errorf("Fetch(%q) err = %v, want invalid input", u, err)
		}
	}
}

func TestFetchRefusesNonPublicHosts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	f := NewFetcher(0, 0)
	_, err := f.Fetch(context.Background(), srv.URL+"/latest/meta-data")
	if !IsInvalidInput(err) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if !errors.Is(err, errPrivateAddress) {
		t.Errorf("err = %v, want errPrivateAddress in the chain", err)
	}
	if hits.Load() != 0 {
		t.Fatal("request reached a loopback server")
	}
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.9", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::ffff:127.0.0.1", false},
		{"224.0.0.1", false},
	}
	for _, tc := range tests {
		if got := isPublicAddr(netip.MustParseAddr(tc.addr)); got != tc.want {
			t.Errorf("isPublicAddr(%s) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestDenyNonPublic(t *testing.T) {
	if err := denyNonPublic("tcp4", "127.0.0.1:80", nil); !errors.Is(err, errPrivateAddress) {
		t.Errorf("loopback err = %v", err)
	}
	if err := denyNonPublic("tcp4", "93.184.216.34:443", nil); err != nil {
		t.Errorf("public err = %v", err)
	}
}

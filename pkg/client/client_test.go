package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/educhain-dev/educhain/pkg/client"
)

func TestFetchTokenAttachesBearer(t *testing.T) {
	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/token":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"token":"tok-123"}`))
		case "/api/v1/certificates/abc":
			sawAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"abc","state":"issued"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	token, err := c.FetchToken(context.Background(), "12345678", "secret")
	if err != nil {
		t.Fatalf("FetchToken: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("token = %q, want tok-123", token)
	}

	cert, err := c.ValidateCertificate(context.Background(), "abc")
	if err != nil {
		t.Fatalf("ValidateCertificate: %v", err)
	}
	if cert.State != "issued" {
		t.Errorf("state = %q, want issued", cert.State)
	}
	if sawAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want Bearer tok-123", sawAuth)
	}
}

func TestValidateCertificateErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/certificates/gone":
			w.WriteHeader(http.StatusGone)
			w.Write([]byte(`{"error":"certificate has been revoked"}`))
		case "/api/v1/certificates/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"certificate not found"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.ValidateCertificate(context.Background(), "gone"); !errors.Is(err, client.ErrRevoked) {
		t.Errorf("revoked: got %v, want ErrRevoked", err)
	}
	if _, err := c.ValidateCertificate(context.Background(), "missing"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("missing: got %v, want ErrNotFound", err)
	}
}

func TestRevokeConflictMapsToErrConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"transaction conflict; resubmit"}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL, client.WithBearerToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.RevokeCertificate(context.Background(), "abc", "fraud"); !errors.Is(err, client.ErrConflict) {
		t.Errorf("got %v, want ErrConflict", err)
	}
}

func TestGetStudentCertificatesUnwrapsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/students/43474542/certificates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"certificates":[{"id":"c1","dniStudent":"43474542","state":"issued"}]}`))
	}))
	defer srv.Close()

	c, err := client.New(srv.URL, client.WithBearerToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	certs, err := c.GetStudentCertificates(context.Background(), "43474542")
	if err != nil {
		t.Fatalf("GetStudentCertificates: %v", err)
	}
	if len(certs) != 1 || certs[0].ID != "c1" {
		t.Fatalf("unexpected result: %+v", certs)
	}
}

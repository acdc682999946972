// Copyright 2020 Dell Inc. or its subsidiaries.

// Package connectivity provides the HTTP transport used to reach the VPLEX
// management endpoint. It only moves JSON in and out; everything it knows
// about the resource space lives in the client package above it.
package connectivity

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/dell-storage/vplex-host-libs/logger"
	"github.com/dell-storage/vplex-host-libs/vplex/verrors"
)

const defaultTimeout = time.Duration(30) * time.Second

// Request encapsulates a request to the Do* family of functions
type Request struct {
	// Action to take, ie. GET, POST, PUT, PATCH, DELETE
	Action string
	// Path is the URI
	Path string
	// Header to include one or more headers in the request
	Header map[string]string
	// Payload to send (may be nil)
	Payload interface{}
	// Response to marshal the successful response body into (may be nil)
	Response interface{}
	// ResponseError to marshal an error response body into (may be nil)
	ResponseError interface{}
}

// TLSOptions controls endpoint certificate verification.
type TLSOptions struct {
	// SkipVerify disables certificate chain verification
	SkipVerify bool
	// CACertPEM holds an optional PEM bundle to verify the endpoint against
	CACertPEM []byte
}

// Client is a wrapper around http.Client with a fixed base URL and
// basic-auth credentials applied to every request.
type Client struct {
	baseURL  string
	username string
	password string
	doer     *http.Client
}

// NewHTTPClient returns a client to the given base URL with the default timeout.
func NewHTTPClient(baseURL string) *Client {
	return NewHTTPClientWithTimeoutAndTLS(baseURL, defaultTimeout, TLSOptions{})
}

// NewHTTPClientWithTimeout returns a client with a custom timeout.
func NewHTTPClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return NewHTTPClientWithTimeoutAndTLS(baseURL, timeout, TLSOptions{})
}

// NewHTTPClientWithTimeoutAndTLS returns a client with a custom timeout and
// TLS verification behavior.
func NewHTTPClientWithTimeoutAndTLS(baseURL string, timeout time.Duration, tlsOpts TLSOptions) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	tlsConfig := &tls.Config{InsecureSkipVerify: tlsOpts.SkipVerify}
	if len(tlsOpts.CACertPEM) > 0 {
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(tlsOpts.CACertPEM)
		tlsConfig.RootCAs = pool
	}
	return &Client{
		baseURL: baseURL,
		doer: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
	}
}

// SetBasicAuth applies credentials to every subsequent request.
func (c *Client) SetBasicAuth(username, password string) {
	c.username = username
	c.password = password
}

// DoJSON makes the request described by r and unmarshals the response body
// into r.Response (2xx) or r.ResponseError (everything else). The HTTP status
// is returned alongside any transport error, already mapped to a typed code.
func (c *Client) DoJSON(r *Request) (int, error) {
	var reqBody *bytes.Buffer
	if r.Payload != nil {
		buf, err := json.Marshal(r.Payload)
		if err != nil {
			return 0, verrors.NewVplexError(verrors.Internal, err)
		}
		reqBody = bytes.NewBuffer(buf)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(r.Action, c.baseURL+r.Path, reqBody)
	if err != nil {
		return 0, verrors.NewVplexError(verrors.Internal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range r.Header {
		req.Header.Set(key, value)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	log.Tracef("request: action=%v path=%v", r.Action, r.Path)

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, translateTransportError(err)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, verrors.NewVplexError(verrors.ConnectionFailed, err)
	}

	log.Tracef("response: status=%v path=%v", resp.StatusCode, r.Path)

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if r.Response != nil && len(body) > 0 {
			if err := json.Unmarshal(body, r.Response); err != nil {
				return resp.StatusCode, verrors.NewVplexErrorf(verrors.Internal,
					"could not decode response for %s %s: %v", r.Action, r.Path, err)
			}
		}
		return resp.StatusCode, nil
	}

	if r.ResponseError != nil && len(body) > 0 {
		// The error body is advisory; a malformed one still yields a typed error.
		_ = json.Unmarshal(body, r.ResponseError)
	}
	return resp.StatusCode, verrors.NewVplexErrorf(verrors.FromHTTPStatus(resp.StatusCode),
		"%s %s returned status %d", r.Action, r.Path, resp.StatusCode)
}

func translateTransportError(err error) error {
	if urlErr, ok := err.(*url.Error); ok {
		if urlErr.Timeout() {
			return verrors.NewVplexError(verrors.Timeout, fmt.Sprintf("request timed out: %v", err))
		}
		if _, ok := urlErr.Err.(*net.OpError); ok {
			return verrors.NewVplexError(verrors.ConnectionFailed, fmt.Sprintf("connection failed: %v", err))
		}
	}
	return verrors.NewVplexError(verrors.ConnectionFailed, err)
}

/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testing

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/acronis/go-refauth/idptest"
)

type httpServerIntrospectionResult struct {
	result idptest.IntrospectionResult
	err    error
}

// HTTPServerTokenIntrospectorMock is an idptest.HTTPTokenIntrospector that records calls.
// Unknown tokens are reported as not active.
type HTTPServerTokenIntrospectorMock struct {
	mu                   sync.RWMutex
	introspectionResults map[[sha256.Size]byte]httpServerIntrospectionResult
	callsByToken         map[[sha256.Size]byte]int
	gate                 chan struct{}

	calls                   atomic.Int64
	lastAuthorizationHeader atomic.Pointer[string]
	lastIntrospectedToken   atomic.Pointer[string]
	lastUserAgentHeader     atomic.Pointer[string]
	lastFormValues          atomic.Pointer[url.Values]
}

func NewHTTPServerTokenIntrospectorMock() *HTTPServerTokenIntrospectorMock {
	return &HTTPServerTokenIntrospectorMock{
		introspectionResults: make(map[[sha256.Size]byte]httpServerIntrospectionResult),
		callsByToken:         make(map[[sha256.Size]byte]int),
	}
}

func (m *HTTPServerTokenIntrospectorMock) SetResultForToken(token string, result idptest.IntrospectionResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.introspectionResults[tokenToKey(token)] = httpServerIntrospectionResult{result, err}
}

// Block makes all following introspections wait until Unblock is called.
func (m *HTTPServerTokenIntrospectorMock) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

// Unblock releases all waiting introspections.
func (m *HTTPServerTokenIntrospectorMock) Unblock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

func (m *HTTPServerTokenIntrospectorMock) IntrospectToken(r *http.Request, token string) (idptest.IntrospectionResult, error) {
	m.calls.Add(1)
	authHeader := r.Header.Get("Authorization")
	userAgent := r.UserAgent()
	formValues := r.PostForm
	m.lastAuthorizationHeader.Store(&authHeader)
	m.lastUserAgentHeader.Store(&userAgent)
	m.lastIntrospectedToken.Store(&token)
	m.lastFormValues.Store(&formValues)

	m.mu.Lock()
	m.callsByToken[tokenToKey(token)]++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return nil, r.Context().Err()
		}
	}

	m.mu.RLock()
	result, ok := m.introspectionResults[tokenToKey(token)]
	m.mu.RUnlock()
	if ok {
		return result.result, result.err
	}
	return idptest.InactiveResult(), nil
}

func (m *HTTPServerTokenIntrospectorMock) ResetCallsInfo() {
	m.mu.Lock()
	m.callsByToken = make(map[[sha256.Size]byte]int)
	m.mu.Unlock()
	m.calls.Store(0)
	emptyString := ""
	m.lastAuthorizationHeader.Store(&emptyString)
	m.lastIntrospectedToken.Store(&emptyString)
	m.lastUserAgentHeader.Store(&emptyString)
	var nilFormValues url.Values
	m.lastFormValues.Store(&nilFormValues)
}

// Calls returns the total number of introspections.
func (m *HTTPServerTokenIntrospectorMock) Calls() int64 {
	return m.calls.Load()
}

// CallsForToken returns the number of introspections of the token.
func (m *HTTPServerTokenIntrospectorMock) CallsForToken(token string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callsByToken[tokenToKey(token)]
}

func (m *HTTPServerTokenIntrospectorMock) Called() bool {
	return m.calls.Load() > 0
}

func (m *HTTPServerTokenIntrospectorMock) LastAuthorizationHeader() string {
	if ptr := m.lastAuthorizationHeader.Load(); ptr != nil {
		return *ptr
	}
	return ""
}

func (m *HTTPServerTokenIntrospectorMock) LastIntrospectedToken() string {
	if ptr := m.lastIntrospectedToken.Load(); ptr != nil {
		return *ptr
	}
	return ""
}

func (m *HTTPServerTokenIntrospectorMock) LastUserAgentHeader() string {
	if ptr := m.lastUserAgentHeader.Load(); ptr != nil {
		return *ptr
	}
	return ""
}

func (m *HTTPServerTokenIntrospectorMock) LastFormValues() url.Values {
	if ptr := m.lastFormValues.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

func tokenToKey(token string) [sha256.Size]byte {
	return sha256.Sum256([]byte(token))
}

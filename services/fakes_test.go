package services

import (
	"context"
	"errors"
	"sync"
)

type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls int
	html  []string
}

func (g *fakeGenerator) Render(_ context.Context, html string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.html = append(g.html, html)
	if g.err != nil {
		return nil, g.err
	}
	return []byte("%PDF-1.4\n" + html), nil
}

func (g *fakeGenerator) fail(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

type fakeMailer struct {
	err  error
	sent []Mail
}

func (m *fakeMailer) Send(_ context.Context, mail Mail) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

type fakeSMS struct {
	err  error
	to   []string
	body []string
}

func (s *fakeSMS) SendSMS(_ context.Context, to, body string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.to = append(s.to, to)
	s.body = append(s.body, body)
	return "SM123", nil
}

var errChromeGone = errors.New("chrome exited")

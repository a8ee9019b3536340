package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentSMS struct {
	Phone string
	Code  string
}

// fakeSMS records every send and answers with result.
type fakeSMS struct {
	mu     sync.Mutex
	sent   []sentSMS
	result SMSResult
}

func newFakeSMS() *fakeSMS {
	return &fakeSMS{result: SMSResult{Success: true, Simulated: true}}
}

func (f *fakeSMS) Send(_ context.Context, phone, code string) SMSResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentSMS{Phone: phone, Code: code})
	return f.result
}

func (f *fakeSMS) Sent() []sentSMS {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentSMS(nil), f.sent...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

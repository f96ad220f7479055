package notification

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Message is one captured delivery. Name is the on-disk file name, usable
// with Read to fetch the full rendered message.
type Message struct {
	Name      string    `json:"name"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// MockSender writes each message to a local file instead of sending it, and
// keeps the most recent ones in memory for the dev inspection endpoint.
// For development environments without a mail relay.
type MockSender struct {
	dir string

	mu     sync.Mutex
	recent []Message
}

// maxRecent bounds the in-memory message buffer.
const maxRecent = 50

// NewMockSender returns a MockSender writing under dir. The directory is
// created if missing.
func NewMockSender(dir string) (*MockSender, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &MockSender{dir: dir}, nil
}

// Deliver writes the message to a timestamped file under the sender's directory.
func (m *MockSender) Deliver(ctx context.Context, recipient, subject, body string) error {
	now := time.Now().UTC()
	name := fmt.Sprintf("%s-%s.txt", now.Format("20060102T150405.000"), recipient)
	content := fmt.Sprintf("To: %s\nSubject: %s\nDate: %s\n\n%s\n", recipient, subject, now.Format(time.RFC3339), body)
	if err := os.WriteFile(filepath.Join(m.dir, name), []byte(content), 0o644); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, Message{Name: name, Recipient: recipient, Subject: subject, Body: body, SentAt: now})
	if len(m.recent) > maxRecent {
		m.recent = m.recent[len(m.recent)-maxRecent:]
	}
	return nil
}

// Read returns the rendered contents of one captured message by file name.
// Names containing path separators are rejected.
func (m *MockSender) Read(name string) ([]byte, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(filepath.Join(m.dir, name))
}

// Clear deletes every captured message file and empties the recent buffer.
func (m *MockSender) Clear() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.recent = nil
	m.mu.Unlock()
	return nil
}

// Recent returns the captured messages, oldest first.
func (m *MockSender) Recent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.recent))
	copy(out, m.recent)
	return out
}

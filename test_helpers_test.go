package herald

import (
	"context"
	"sync"
	"time"
)

// Test command implementations

// CountingCommand records how often it was executed.
type CountingCommand struct {
	CommandBase
	Value interface{} `json:"-"`
	Err   error       `json:"-"`
	Panic interface{} `json:"-"`

	calls int
}

func (c *CountingCommand) Execute(ctx context.Context) (interface{}, error) {
	c.calls++
	if c.Panic != nil {
		panic(c.Panic)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Value, nil
}

func (c *CountingCommand) Calls() int { return c.calls }

// SendEmailCommand is a command with mapped attributes.
type SendEmailCommand struct {
	CommandBase
	To       string   `json:"to"`
	Subject  string   `json:"subject"`
	Attempts int      `json:"attempts,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func (c *SendEmailCommand) Execute(ctx context.Context) (interface{}, error) {
	return "sent:" + c.To, nil
}

// ScheduledCommand carries time and large integer attributes.
type ScheduledCommand struct {
	CommandBase
	At       time.Time  `json:"at"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Window   Window     `json:"window"`
	Seq      int64      `json:"seq"`
}

// Window is a nested attribute holding a time.
type Window struct {
	From  time.Time `json:"from"`
	Label string    `json:"label"`
}

func (c *ScheduledCommand) Execute(ctx context.Context) (interface{}, error) {
	return c.At, nil
}

// NewsletterCommand delegates one SendEmailCommand per recipient.
type NewsletterCommand struct {
	AggregateCommandBase
	Recipients []string `json:"recipients"`
}

func (c *NewsletterCommand) Execute(ctx context.Context) (interface{}, error) {
	sent := make([]interface{}, 0, len(c.Recipients))
	for _, to := range c.Recipients {
		result, err := c.ExecuteChild(ctx, &SendEmailCommand{To: to}, "")
		if err != nil {
			return nil, err
		}
		sent = append(sent, result)
	}
	return sent, nil
}

// recordingLogger captures log calls.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level string
	msg   string
	args  []interface{}
}

func (l *recordingLogger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.level == level {
			msgs = append(msgs, e.msg)
		}
	}
	return msgs
}

var (
	_ Command = (*CountingCommand)(nil)
	_ Command = (*SendEmailCommand)(nil)
	_ Command = (*NewsletterCommand)(nil)
	_ Command = (*ScheduledCommand)(nil)
	_ Logger  = (*recordingLogger)(nil)
)

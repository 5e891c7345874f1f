package session

import "github.com/sandevgo/tuskrelay/internal/core"

// Truncate enforces the context cap: the first message (the system seed)
// plus the most recent limit-1 messages, in their original order.
func Truncate(messages []core.Message, limit int) []core.Message {
	if limit < 1 {
		limit = 1
	}
	if len(messages) <= limit {
		return cloneMessages(messages)
	}

	out := make([]core.Message, 0, limit)
	out = append(out, messages[0])
	out = append(out, messages[len(messages)-(limit-1):]...)
	return out
}

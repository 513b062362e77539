// Package extract turns raw collaborator text into structured values.
// Parsing never panics or unwinds: it yields a Result that is either
// Ok(value) or ParseError(raw, reason), and retries are plain loops.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// DefaultAttempts is how many times a malformed answer is re-requested
const DefaultAttempts = 3

// Result is the outcome of one extraction
type Result[T any] struct {
	Value  T
	Raw    string
	Reason string
	ok     bool
}

func Ok[T any](value T, raw string) Result[T] {
	return Result[T]{Value: value, Raw: raw, ok: true}
}

func ParseError[T any](raw, reason string) Result[T] {
	return Result[T]{Raw: raw, Reason: reason}
}

func (r Result[T]) IsOk() bool {
	return r.ok
}

// Parser converts raw text into a Result
type Parser[T any] func(raw string) Result[T]

// JSON extracts the first JSON object or array embedded in raw text.
// Fenced code blocks and leading prose are tolerated; broken JSON is
// run through jsonrepair before giving up.
func JSON[T any](raw string) Result[T] {
	body := locateJSON(raw)
	if body == "" {
		return ParseError[T](raw, "no JSON value found")
	}

	var v T
	err := json.Unmarshal([]byte(body), &v)
	if err == nil {
		return Ok(v, raw)
	}

	repaired, repairErr := jsonrepair.JSONRepair(body)
	if repairErr != nil {
		return ParseError[T](raw, fmt.Sprintf("invalid JSON: %v", err))
	}
	var fixed T
	if err := json.Unmarshal([]byte(repaired), &fixed); err != nil {
		return ParseError[T](raw, fmt.Sprintf("invalid JSON after repair: %v", err))
	}
	return Ok(fixed, raw)
}

func locateJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		} else {
			s = strings.TrimSpace(rest)
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		// Truncated output, let jsonrepair try to close it
		return s[start:]
	}
	return s[start : end+1]
}

// ErrNoAttempts is returned when Retry is asked to do nothing
var ErrNoAttempts = errors.New("extract: attempts must be positive")

// Retry calls the collaborator and parses its answer until parsing succeeds
// or attempts run out. An invocation error stops the loop immediately and is
// returned as is; running out of attempts returns the last ParseError with a
// nil error so callers can fall back to a degraded default.
func Retry[T any](ctx context.Context, attempts int, call func(ctx context.Context) (string, error), parse Parser[T]) (Result[T], error) {
	if attempts <= 0 {
		return Result[T]{}, ErrNoAttempts
	}

	var last Result[T]
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		raw, err := call(ctx)
		if err != nil {
			return last, err
		}
		last = parse(raw)
		if last.IsOk() {
			return last, nil
		}
	}
	return last, nil
}

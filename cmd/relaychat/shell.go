package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opd-ai/relaysync/messaging"
)

// engine is the part of syncer.Engine the shell drives.
type engine interface {
	Self() string
	Compose(ctx context.Context, text string) (messaging.Record, error)
	Delete(ctx context.Context, id string, scope messaging.DeleteScope) error
	SetDisplayName(name string) error
	ExposureReported(ctx context.Context, id string)
	Messages(ctx context.Context) []messaging.Record
}

var errAmbiguousID = errors.New("ambiguous message id")

type shell struct {
	engine    engine
	presenter *presenter
}

// exec runs one input line and reports whether the user asked to quit.
func (s *shell) exec(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := s.engine.Compose(ctx, line); err != nil {
			s.presenter.printf("not sent: %v", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return true
	case "/list":
		s.presenter.list(s.engine.Messages(ctx))
	case "/seen":
		s.markSeen(ctx)
	case "/name":
		name := strings.TrimSpace(strings.TrimPrefix(line, "/name"))
		if err := s.engine.SetDisplayName(name); err != nil {
			s.presenter.printf("name unchanged: %v", err)
			return false
		}
		s.presenter.printf("you are now %s", name)
	case "/delete":
		if err := s.delete(ctx, fields[1:]); err != nil {
			s.presenter.printf("delete failed: %v", err)
		}
	default:
		s.presenter.printf("unknown command %s; try /name, /delete, /seen, /list, /quit", fields[0])
	}
	return false
}

// markSeen reports every listed peer message as exposed.
func (s *shell) markSeen(ctx context.Context) {
	self := s.engine.Self()
	for _, rec := range s.engine.Messages(ctx) {
		if rec.Author != self && rec.Status != messaging.StatusSeen {
			s.engine.ExposureReported(ctx, rec.ID)
		}
	}
}

func (s *shell) delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /delete <id> [me|everyone]")
	}
	scope := messaging.ScopeMe
	if len(args) > 1 {
		scope = messaging.DeleteScope(args[1])
	}
	id, err := s.resolve(ctx, args[0])
	if err != nil {
		return err
	}
	return s.engine.Delete(ctx, id, scope)
}

// resolve expands a printed ID prefix to a full message ID.
func (s *shell) resolve(ctx context.Context, prefix string) (string, error) {
	var match string
	for _, rec := range s.engine.Messages(ctx) {
		if rec.ID == prefix {
			return rec.ID, nil
		}
		if strings.HasPrefix(rec.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbiguousID, prefix)
			}
			match = rec.ID
		}
	}
	if match == "" {
		return prefix, nil
	}
	return match, nil
}

package meeting

import (
	"context"
	"log/slog"
	"strings"

	"meetwatch/internal/logging"
	"meetwatch/internal/services"
	"meetwatch/internal/services/automation"
)

// ChatResult reports the UI path a chat message took.
type ChatResult struct {
	OpenedWith string
	Input      string
}

// Chat posts message into the meeting chat. The only hard requirement is an
// active call; each probing step tolerates absence and falls through.
func (s *Service) Chat(ctx context.Context, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, services.Wrap(services.ErrValidation, "meeting", "chat", "message is empty", nil)
	}
	auto := s.cfg.Automation
	logger := logging.WithContext(ctx, s.logger)
	result := &ChatResult{}

	elements, err := s.driver.List(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrAutomationUnavailable, "meeting", "chat", "cannot list ui elements", err)
	}
	if _, ok := automation.Find(elements, auto.LeaveButtons); !ok {
		return nil, services.Wrap(services.ErrNotInCall, "meeting", "chat", "no leave button visible", nil)
	}

	input, ok := automation.Find(elements, auto.ChatInputs)
	if !ok {
		opened, err := s.clickFirstOptional(ctx, logger, auto.ChatOpenButtons)
		if err != nil {
			return nil, err
		}
		result.OpenedWith = opened
		if elements, err = s.driver.List(ctx); err != nil {
			return nil, err
		}
		input, ok = automation.Find(elements, auto.ChatInputs)
	}
	if ok {
		if err := s.clickOptional(ctx, logger, input); err != nil {
			return nil, err
		}
		result.Input = input
	} else {
		logger.Info("chat input not located; typing into focused element", logging.String(logging.FieldEventType, "ui_absent"))
	}

	if err := s.driver.Type(ctx, message); err != nil {
		return nil, err
	}
	if err := s.driver.Key(ctx, auto.SubmitKey); err != nil {
		return nil, err
	}
	logger.Info("chat message sent",
		logging.Int("length", len(message)),
		logging.String(logging.FieldEventType, "chat_sent"),
	)
	return result, nil
}

// clickOptional clicks name when present. A miss is logged, not returned.
func (s *Service) clickOptional(ctx context.Context, logger *slog.Logger, name string) error {
	res, err := s.driver.Click(ctx, name)
	if err != nil {
		return err
	}
	if res == automation.NotFound {
		logger.Debug("ui element absent", logging.String("name", name), logging.String(logging.FieldEventType, "ui_absent"))
	}
	return nil
}

// clickFirstOptional clicks the first present candidate and returns its name,
// or "" when none was present.
func (s *Service) clickFirstOptional(ctx context.Context, logger *slog.Logger, names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	clicked, err := automation.ClickFirst(ctx, s.driver, names)
	if err != nil {
		return "", err
	}
	if clicked == "" {
		logger.Debug("no candidate present", logging.String("candidates", strings.Join(names, ", ")), logging.String(logging.FieldEventType, "ui_absent"))
	}
	return clicked, nil
}

package memoservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/echolog/internal/apperr"
	"github.com/starford/echolog/internal/parser"
)

func requireContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", apperr.ErrInvalidInput)
	}
	return nil
}

// Title generates a title for content.
func (s *Service) Title(ctx context.Context, content string) (string, error) {
	if err := requireContent(content); err != nil {
		return "", err
	}
	return s.enr.Title(ctx, content)
}

// Tags extracts tags from content.
func (s *Service) Tags(ctx context.Context, content string) ([]string, error) {
	if err := requireContent(content); err != nil {
		return nil, err
	}
	return s.enr.Tags(ctx, content)
}

// DateTime finds a date expression in content.
func (s *Service) DateTime(ctx context.Context, content string) (parser.DateTime, error) {
	if err := requireContent(content); err != nil {
		return parser.DateTime{}, err
	}
	return s.enr.DateTime(ctx, content)
}

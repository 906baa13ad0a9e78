package service

import (
	"errors"

	"github.com/gosimple/slug"

	"github.com/retroarcade/hiscore/internal/domain"
)

// GameSlug derives the URL-safe identifier for a game name.
func GameSlug(name string) string {
	return slug.Make(name)
}

func asAppError(err error) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

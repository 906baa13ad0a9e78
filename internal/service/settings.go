package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/retroarcade/hiscore/internal/domain"
	"github.com/retroarcade/hiscore/internal/repository"
)

// SettingsService reads and updates the event configuration.
type SettingsService struct {
	db       repository.DBTX
	settings repository.AppConfigRepository
	logger   *slog.Logger
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db repository.DBTX, settings repository.AppConfigRepository, logger *slog.Logger) *SettingsService {
	return &SettingsService{db: db, settings: settings, logger: logger}
}

// Get returns the current configuration.
func (s *SettingsService) Get(ctx context.Context) (*domain.AppConfig, error) {
	cfg, err := s.settings.Get(ctx, s.db)
	if err != nil {
		return nil, domain.ErrInternal("load settings", err)
	}
	return cfg, nil
}

// Update validates and saves the configuration.
func (s *SettingsService) Update(ctx context.Context, in domain.AppConfig) (*domain.AppConfig, error) {
	in.PlaylistURL = strings.TrimSpace(in.PlaylistURL)
	in.EventID = strings.TrimSpace(in.EventID)
	in.EventName = strings.TrimSpace(in.EventName)

	if in.PlaylistURL != "" {
		u, err := url.Parse(in.PlaylistURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, domain.ErrValidation("playlist_url must be an http(s) URL")
		}
	}
	if len(in.EventID) > 64 {
		return nil, domain.ErrValidation("event_id must be at most 64 characters")
	}

	if err := s.settings.Save(ctx, s.db, &in); err != nil {
		return nil, domain.ErrInternal("save settings", err)
	}
	s.logger.Info("event settings updated", "event_id", in.EventID)
	return &in, nil
}

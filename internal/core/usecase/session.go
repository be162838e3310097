package usecase

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/core/ports"
	"github.com/kirillkom/studydesk/internal/core/store"
)

type SessionService struct {
	store ports.Dispatcher
}

func NewSessionService(st ports.Dispatcher) *SessionService {
	return &SessionService{store: st}
}

func (s *SessionService) SignIn(user domain.User) error {
	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	user.Email = strings.TrimSpace(user.Email)
	if user.ID == "" || user.Name == "" {
		return domain.WrapError(domain.ErrInvalidInput, "sign in", errors.New("user id and name are required"))
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "sign in", fmt.Errorf("email: %w", err))
	}
	s.store.Dispatch(store.SetUser{User: user})
	return nil
}

func (s *SessionService) SignOut() {
	s.store.Dispatch(store.ClearUser{})
}

func (s *SessionService) SetTheme(theme domain.Theme) error {
	if !theme.Valid() {
		return domain.Reject(domain.ErrInvalidInput, "set theme", fmt.Sprintf("unknown theme %q", theme))
	}
	s.store.Dispatch(store.SetTheme{Theme: theme})
	return nil
}

type NavigationService struct {
	store ports.Dispatcher
}

func NewNavigationService(st ports.Dispatcher) *NavigationService {
	return &NavigationService{store: st}
}

func (s *NavigationService) ToggleSidebar() {
	s.store.Dispatch(store.ToggleSidebar{})
}

func (s *NavigationService) SetSidebarCollapsed(collapsed bool) {
	s.store.Dispatch(store.SetSidebarCollapsed{Collapsed: collapsed})
}

func (s *NavigationService) SetActiveTab(tab domain.Tab) error {
	if !tab.Valid() {
		return domain.Reject(domain.ErrInvalidInput, "set active tab", fmt.Sprintf("unknown tab %q", tab))
	}
	s.store.Dispatch(store.SetActiveTab{Tab: tab})
	return nil
}

func (s *NavigationService) SetLoading(loading bool) {
	s.store.Dispatch(store.SetLoading{Loading: loading})
}

func (s *NavigationService) SetError(message string) {
	s.store.Dispatch(store.SetError{Message: message})
}

func (s *NavigationService) ClearError() {
	s.store.Dispatch(store.ClearError{})
}

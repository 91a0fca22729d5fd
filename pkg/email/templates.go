package email

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// TemplateData holds the fields the notification templates can reference
type TemplateData struct {
	Email       string
	Name        string
	OrgName     string
	InviterName string
	Role        string
	InviteURL   string
	Year        int
}

// Template names, doubling as the override file basenames (<name>.html)
const (
	TemplateInvitation    = "invitation"
	TemplateWelcome       = "welcome"
	TemplateMemberRemoved = "member_removed"
)

const invitationTemplate = `
<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>You're invited</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #ffffff; border-radius: 8px; padding: 32px; border: 1px solid #e5e7eb;">
    <h1 style="color: #1F2937; font-size: 22px;">Join {{.OrgName}}</h1>
    <p>{{.InviterName}} has invited you to join <strong>{{.OrgName}}</strong> as a <strong>{{.Role}}</strong>.</p>
    <p style="text-align: center; margin: 28px 0;">
      <a href="{{.InviteURL}}" style="background: #4F46E5; color: #ffffff; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Accept invitation</a>
    </p>
    <p style="color: #6B7280; font-size: 14px;">This invitation expires in 7 days. If the button does not work, open this link:<br>{{.InviteURL}}</p>
  </div>
  <p style="color: #9CA3AF; font-size: 12px; text-align: center;">&copy; {{.Year}}</p>
</body>
</html>`

const welcomeTemplate = `
<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Welcome</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #ffffff; border-radius: 8px; padding: 32px; border: 1px solid #e5e7eb;">
    <h1 style="color: #1F2937; font-size: 22px;">Welcome to {{.OrgName}}, {{.Name}}!</h1>
    <p>You are now a <strong>{{.Role}}</strong> of <strong>{{.OrgName}}</strong>.</p>
    <p>You can start collaborating with your team right away.</p>
  </div>
  <p style="color: #9CA3AF; font-size: 12px; text-align: center;">&copy; {{.Year}}</p>
</body>
</html>`

const memberRemovedTemplate = `
<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Membership ended</title></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #ffffff; border-radius: 8px; padding: 32px; border: 1px solid #e5e7eb;">
    <h1 style="color: #1F2937; font-size: 22px;">You've been removed from {{.OrgName}}</h1>
    <p>Your membership in <strong>{{.OrgName}}</strong> has ended. You no longer have access to its resources.</p>
    <p style="color: #6B7280; font-size: 14px;">If you believe this was a mistake, contact the organization's administrators.</p>
  </div>
  <p style="color: #9CA3AF; font-size: 12px; text-align: center;">&copy; {{.Year}}</p>
</body>
</html>`

var defaultTemplates = map[string]string{
	TemplateInvitation:    invitationTemplate,
	TemplateWelcome:       welcomeTemplate,
	TemplateMemberRemoved: memberRemovedTemplate,
}

// TemplateStore holds the parsed notification templates. When dir is set,
// <name>.html files there override the compiled-in defaults and are reloaded
// on change once Watch is running.
type TemplateStore struct {
	dir       string
	logger    *logrus.Logger
	templates map[string]*template.Template
	watcher   *fsnotify.Watcher
	mu        sync.RWMutex
}

// NewTemplateStore parses the default templates and applies any overrides
// found in dir. dir may be empty.
func NewTemplateStore(dir string, logger *logrus.Logger) (*TemplateStore, error) {
	if logger == nil {
		logger = logrus.New()
	}

	s := &TemplateStore{
		dir:       dir,
		logger:    logger,
		templates: make(map[string]*template.Template),
	}

	for name, text := range defaultTemplates {
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		s.templates[name] = tmpl
	}

	if dir != "" {
		for name := range defaultTemplates {
			if err := s.loadOverride(name); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Lookup returns the current template for name
func (s *TemplateStore) Lookup(name string) (*template.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tmpl, ok := s.templates[name]
	return tmpl, ok
}

// Watch reloads overrides as they change on disk. It returns immediately;
// call Close to stop watching.
func (s *TemplateStore) Watch() error {
	if s.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create template watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch template directory %s: %w", s.dir, err)
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Ext(event.Name) != ".html" {
					continue
				}
				name := trimExt(filepath.Base(event.Name))
				if _, known := defaultTemplates[name]; !known {
					continue
				}
				if err := s.loadOverride(name); err != nil {
					s.logger.WithError(err).WithField("template", name).Warn("Failed to reload email template")
					continue
				}
				s.logger.WithField("template", name).Info("Reloaded email template")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Warn("Template watcher error")
			}
		}
	}()
	return nil
}

// Close stops the override watcher
func (s *TemplateStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// loadOverride swaps in dir/<name>.html when it exists. A missing file keeps
// the current template.
func (s *TemplateStore) loadOverride(name string) error {
	path := filepath.Join(s.dir, name+".html")
	text, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read template override %s: %w", path, err)
	}

	tmpl, err := template.New(name).Parse(string(text))
	if err != nil {
		return fmt.Errorf("failed to parse template override %s: %w", path, err)
	}

	s.mu.Lock()
	s.templates[name] = tmpl
	s.mu.Unlock()
	return nil
}

func trimExt(base string) string {
	return base[:len(base)-len(filepath.Ext(base))]
}

package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultAPIBaseURL = "https://api.resend.com"

// APISender delivers mail through a Resend-compatible HTTP API
type APISender struct {
	apiKey     string
	fromEmail  string
	fromName   string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
	templates  *TemplateStore
}

// apiRequest is the JSON body of a send call
type apiRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// apiResponse is the JSON body of a send response
type apiResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"error,omitempty"`
}

// NewAPISender creates an HTTP-API sender. templates may be nil, in which
// case the compiled-in defaults are used.
func NewAPISender(apiKey, fromEmail, fromName string, templates *TemplateStore, logger *logrus.Logger) (*APISender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("email API key is required")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}
	if fromName == "" {
		fromName = "Tenancy"
	}
	if logger == nil {
		logger = logrus.New()
	}
	if templates == nil {
		var err error
		templates, err = NewTemplateStore("", logger)
		if err != nil {
			return nil, err
		}
	}

	return &APISender{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   defaultAPIBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    logger,
		templates: templates,
	}, nil
}

// SendInvitation sends the invitation notification
func (s *APISender) SendInvitation(ctx context.Context, email, orgName, inviterName, role, inviteURL string) error {
	body, err := s.render(TemplateInvitation, TemplateData{
		Email:       email,
		OrgName:     orgName,
		InviterName: inviterName,
		Role:        role,
		InviteURL:   inviteURL,
		Year:        time.Now().Year(),
	})
	if err != nil {
		return err
	}

	err = s.send(ctx, apiRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{email},
		Subject: fmt.Sprintf("You're invited to join %s", orgName),
		HTML:    body,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"email":    email,
			"org_name": orgName,
		}).Error("Failed to send invitation email")
		return fmt.Errorf("failed to send invitation email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email":    email,
		"org_name": orgName,
	}).Info("Invitation email sent")
	return nil
}

// SendWelcome sends the post-acceptance welcome notification
func (s *APISender) SendWelcome(ctx context.Context, email, name, orgName, role string) error {
	if name == "" {
		name = "there"
	}

	body, err := s.render(TemplateWelcome, TemplateData{
		Email:   email,
		Name:    name,
		OrgName: orgName,
		Role:    role,
		Year:    time.Now().Year(),
	})
	if err != nil {
		return err
	}

	err = s.send(ctx, apiRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{email},
		Subject: fmt.Sprintf("Welcome to %s!", orgName),
		HTML:    body,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"email":    email,
			"org_name": orgName,
		}).Error("Failed to send welcome email")
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email":    email,
		"org_name": orgName,
	}).Info("Welcome email sent")
	return nil
}

// SendMemberRemoved sends the removal notification
func (s *APISender) SendMemberRemoved(ctx context.Context, email, orgName string) error {
	body, err := s.render(TemplateMemberRemoved, TemplateData{
		Email:   email,
		OrgName: orgName,
		Year:    time.Now().Year(),
	})
	if err != nil {
		return err
	}

	err = s.send(ctx, apiRequest{
		From:    fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		To:      []string{email},
		Subject: fmt.Sprintf("You've been removed from %s", orgName),
		HTML:    body,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"email":    email,
			"org_name": orgName,
		}).Error("Failed to send member removed email")
		return fmt.Errorf("failed to send member removed email: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"email":    email,
		"org_name": orgName,
	}).Info("Member removed email sent")
	return nil
}

func (s *APISender) render(name string, data TemplateData) (string, error) {
	tmpl, ok := s.templates.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return body.String(), nil
}

func (s *APISender) send(ctx context.Context, req apiRequest) error {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if apiResp.Error != nil {
			return fmt.Errorf("email API error: %s (%s)", apiResp.Error.Message, apiResp.Error.Name)
		}
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}

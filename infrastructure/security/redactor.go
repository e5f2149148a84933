package security

import (
	"strings"

	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

const mask = "******"

var sensitiveKeywords = []string{
	"password", "passwd", "pwd",
	"secret", "token", "apikey", "api_key",
	"otp", "verification", "securitycode",
}

// Redactor masks values typed into credential-like fields before they are logged
type Redactor struct {
	logger   *logrus.Logger
	keywords []string
}

// NewRedactor - creates a redactor; extra keywords extend the built-in list
func NewRedactor(logger *logrus.Logger, extra ...string) *Redactor {
	keywords := append([]string{}, sensitiveKeywords...)
	for _, k := range extra {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Redactor{
		logger:   logger,
		keywords: keywords,
	}
}

// IsSensitive - checks the symbolic path and the selector for credential keywords
func (r *Redactor) IsSensitive(path string, selector string) bool {
	lowerPath := strings.ToLower(path)
	lowerSelector := strings.ToLower(selector)

	for _, keyword := range r.keywords {
		if strings.Contains(lowerPath, keyword) || strings.Contains(lowerSelector, keyword) {
			return true
		}
	}
	return false
}

// Mask - returns value, or a fixed mask when the element holds a secret
func (r *Redactor) Mask(path string, selector string, value string) string {
	if value == "" || !r.IsSensitive(path, selector) {
		return value
	}
	r.logger.WithField("template", path).Debug("Masked sensitive value")
	return mask
}

var _ interfaces.Redactor = (*Redactor)(nil)

package security

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestRedactor(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := NewRedactor(logger, " PIN ")

	tests := []struct {
		name     string
		path     string
		selector string
		value    string
		want     string
	}{
		{"password template", "loginPage.passwordField", "//input[@id='x']", "hunter2", mask},
		{"password selector", "loginPage.secondField", "//input[@type='password']", "hunter2", mask},
		{"verification code", "loginPage.verificationCode", "//input[@id='emc']", "123456", mask},
		{"extra keyword", "checkout.cardPin", "//input", "0000", mask},
		{"plain field", "leadPage.companyInput", "//input[@name='Company']", "Acme", "Acme"},
		{"empty value", "loginPage.passwordField", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Mask(tt.path, tt.selector, tt.value))
		})
	}
}

package storage

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"crm_automation/domain/entities"
	"crm_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type testDataDocument struct {
	Environments map[string]entities.Environment            `yaml:"environments"`
	Users        map[string]map[string]entities.Credentials `yaml:"users"`
	Addresses    map[string]entities.Address                `yaml:"addresses"`
	Defaults     map[string]map[string]string               `yaml:"defaults"`
}

// TestData serves environments, users, addresses and form defaults from a YAML or JSON file.
// Values of the form ${VAR} are expanded from the process environment so secrets can
// stay in .env rather than in the data file.
type TestData struct {
	mu     sync.RWMutex
	logger *logrus.Logger
	doc    testDataDocument
}

// NewTestData - creates an empty test data store
func NewTestData(logger *logrus.Logger) *TestData {
	return &TestData{
		logger: logger,
		doc: testDataDocument{
			Environments: make(map[string]entities.Environment),
			Users:        make(map[string]map[string]entities.Credentials),
			Addresses:    make(map[string]entities.Address),
			Defaults:     make(map[string]map[string]string),
		},
	}
}

// Load - reads the data file at path
func (d *TestData) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &entities.LoadError{Source: path, Err: err}
	}
	return d.LoadBytes(path, data)
}

// LoadBytes - merges a data document into the store; later documents override earlier keys
func (d *TestData) LoadBytes(name string, data []byte) error {
	var doc testDataDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return &entities.LoadError{Source: name, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for envName, env := range doc.Environments {
		env.Name = envName
		env.URL = os.ExpandEnv(env.URL)
		d.doc.Environments[envName] = env
	}
	for envName, roles := range doc.Users {
		if d.doc.Users[envName] == nil {
			d.doc.Users[envName] = make(map[string]entities.Credentials)
		}
		for role, creds := range roles {
			creds.Username = os.ExpandEnv(creds.Username)
			creds.Password = os.ExpandEnv(creds.Password)
			d.doc.Users[envName][role] = creds
		}
	}
	for country, addr := range doc.Addresses {
		d.doc.Addresses[strings.ToLower(country)] = addr
	}
	for form, fields := range doc.Defaults {
		if d.doc.Defaults[form] == nil {
			d.doc.Defaults[form] = make(map[string]string)
		}
		for field, value := range fields {
			d.doc.Defaults[form][field] = os.ExpandEnv(value)
		}
	}

	d.logger.WithFields(logrus.Fields{
		"source":       name,
		"environments": len(doc.Environments),
		"addresses":    len(doc.Addresses),
	}).Info("Loaded test data")
	return nil
}

// Environment - returns the named org
func (d *TestData) Environment(name string) (entities.Environment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	env, ok := d.doc.Environments[name]
	if !ok {
		return entities.Environment{}, missing("environment", name, "", d.doc.Environments)
	}
	return env, nil
}

// User - returns the credentials for role in env
func (d *TestData) User(env, role string) (entities.Credentials, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	roles, ok := d.doc.Users[env]
	if !ok {
		return entities.Credentials{}, missing("user", env+"."+role, "", d.doc.Users)
	}
	creds, ok := roles[role]
	if !ok {
		return entities.Credentials{}, missing("user", env+"."+role, env, roles)
	}
	return creds, nil
}

// Address - returns the address for country, case-insensitively
func (d *TestData) Address(country string) (entities.Address, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	addr, ok := d.doc.Addresses[strings.ToLower(country)]
	if !ok {
		return entities.Address{}, missing("address", country, "", d.doc.Addresses)
	}
	return addr, nil
}

// Default - returns the default value of field on form
func (d *TestData) Default(form, field string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields, ok := d.doc.Defaults[form]
	if !ok {
		return "", missing("default", form+"."+field, "", d.doc.Defaults)
	}
	value, ok := fields[field]
	if !ok {
		return "", missing("default", form+"."+field, form, fields)
	}
	return value, nil
}

func missing[V any](kind, path, parent string, table map[string]V) error {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &entities.NotFoundError{Kind: kind, Path: path, Parent: parent, Available: keys}
}

// String implements fmt.Stringer without leaking passwords
func (d *TestData) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fmt.Sprintf("TestData{environments: %d, addresses: %d, forms: %d}",
		len(d.doc.Environments), len(d.doc.Addresses), len(d.doc.Defaults))
}

var _ interfaces.TestDataStore = (*TestData)(nil)

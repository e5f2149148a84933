package entities

// Environment is a target org the suite can run against
type Environment struct {
	Name string `json:"name" yaml:"-"`
	URL  string `json:"url" yaml:"url"`
}

// Credentials identify a user of an environment
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Address is a postal record used to populate lead and account forms
type Address struct {
	Street     string `json:"street" yaml:"street"`
	City       string `json:"city" yaml:"city"`
	State      string `json:"state,omitempty" yaml:"state,omitempty"`
	PostalCode string `json:"postalCode" yaml:"postalCode"`
	Country    string `json:"country" yaml:"country"`
}

// Field returns the named address field, matching the keys used in data files
func (a Address) Field(name string) (string, bool) {
	switch name {
	case "street":
		return a.Street, true
	case "city":
		return a.City, true
	case "state":
		return a.State, true
	case "postalCode", "postal_code", "zip":
		return a.PostalCode, true
	case "country":
		return a.Country, true
	}
	return "", false
}

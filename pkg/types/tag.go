package types

// Tag labels plans, cases and runs. Names are unique.
type Tag struct {
	TagID string `json:"tag_id"`
	Name  string `json:"name"`
}

// EnvGroup bundles environment properties that plans can require.
type EnvGroup struct {
	EnvGroupID string `json:"env_group_id"`
	Name       string `json:"name"`
	ManagerID  string `json:"manager_id"`
	IsActive   bool   `json:"is_active"`
}

// EnvProperty is a named environment dimension such as "arch" or "os".
type EnvProperty struct {
	EnvPropertyID string `json:"env_property_id"`
	EnvGroupID    string `json:"env_group_id"`
	Name          string `json:"name"`
	IsActive      bool   `json:"is_active"`
}

// EnvValue is one allowed value of an environment property. Runs record the
// values they were executed under through run_env_value links.
type EnvValue struct {
	EnvValueID    string `json:"env_value_id"`
	EnvPropertyID string `json:"env_property_id"`
	Value         string `json:"value"`
	IsActive      bool   `json:"is_active"`
}

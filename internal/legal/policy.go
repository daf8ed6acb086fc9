package legal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk shape of the required-versions table:
//
//	documents:
//	  terms-of-service: 2
//	  privacy-policy: 3
type policyFile struct {
	Documents map[string]int `yaml:"documents"`
}

// DefaultRequiredVersions is the compiled-in table used when no policy file
// is configured.
func DefaultRequiredVersions() RequiredVersions {
	return RequiredVersions{
		DocTermsOfService: 1,
		DocPrivacyPolicy:  1,
	}
}

// LoadRequiredVersions reads the required-versions policy from a YAML file.
func LoadRequiredVersions(path string) (RequiredVersions, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legal policy %q: %w", path, err)
	}
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse legal policy %q: %w", path, err)
	}
	if len(file.Documents) == 0 {
		return nil, fmt.Errorf("legal policy %q lists no documents", path)
	}
	required := make(RequiredVersions, len(file.Documents))
	for docID, version := range file.Documents {
		if version < 1 {
			return nil, fmt.Errorf("legal policy %q: document %q has invalid version %d", path, docID, version)
		}
		required[docID] = version
	}
	return required, nil
}

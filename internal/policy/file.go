package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"housing/pkg/domain"
)

// File is the YAML shape of a policy table:
//
//	areas:
//	  - area: student_dashboard
//	    path: /dashboard/student
//	    roles: [student]
//	homes:
//	  student: student_dashboard
type File struct {
	Areas []Rule                      `yaml:"areas"`
	Homes map[domain.Role]domain.Area `yaml:"homes"`
}

// LoadFile reads a YAML policy table and validates it like Build. Read and
// parse failures are reported as ConfigurationError too, since they happen
// at startup.
func LoadFile(path string, exposed []domain.Area) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("read policy file: %v", err)}}
	}
	return Parse(data, exposed)
}

// Parse decodes a YAML policy table.
func Parse(data []byte, exposed []domain.Area) (*Table, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("parse policy file: %v", err)}}
	}
	return Build(f.Areas, f.Homes, exposed)
}

package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/warp/request-engine/generic"
)

// EmployeeJSON is the JSON representation of a directory entry.
type EmployeeJSON struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department"`
	ApproverID string `json:"approverId,omitempty"`
}

// DirectoryJSON is the JSON representation of an employee directory.
type DirectoryJSON struct {
	Employees []EmployeeJSON `json:"employees"`
}

// ParseDirectory parses a JSON directory into employees.
func ParseDirectory(jsonStr string) ([]generic.Employee, error) {
	var dj DirectoryJSON
	if err := json.Unmarshal([]byte(jsonStr), &dj); err != nil {
		return nil, fmt.Errorf("failed to parse directory JSON: %w", err)
	}
	return DirectoryFromJSON(dj)
}

// DirectoryFromJSON validates ids and approver references.
func DirectoryFromJSON(dj DirectoryJSON) ([]generic.Employee, error) {
	seen := make(map[string]bool, len(dj.Employees))
	for i, ej := range dj.Employees {
		id := strings.TrimSpace(ej.ID)
		if id == "" {
			return nil, fmt.Errorf("employee %d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("employee %s: duplicate id", id)
		}
		if strings.TrimSpace(ej.Department) == "" {
			return nil, fmt.Errorf("employee %s: department is required", id)
		}
		seen[id] = true
	}

	employees := make([]generic.Employee, 0, len(dj.Employees))
	for _, ej := range dj.Employees {
		e := generic.Employee{
			ID:         generic.EmployeeID(strings.TrimSpace(ej.ID)),
			Name:       ej.Name,
			Email:      ej.Email,
			Department: strings.TrimSpace(ej.Department),
		}
		if ej.ApproverID != "" {
			if !seen[ej.ApproverID] {
				return nil, fmt.Errorf("employee %s: unknown approver %s", e.ID, ej.ApproverID)
			}
			approver := generic.EmployeeID(ej.ApproverID)
			e.ApproverID = &approver
		}
		employees = append(employees, e)
	}
	return employees, nil
}

// LoadDirectoryFile reads and parses a directory file.
func LoadDirectoryFile(path string) ([]generic.Employee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory file: %w", err)
	}
	return ParseDirectory(string(data))
}

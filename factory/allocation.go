/*
Package factory provides JSON to Go conversion for engine configuration.

PURPOSE:
  Converts JSON documents into the allocation policy and employee
  directory the engine runs with. HR can change entitlements or the
  department roster without code changes.

ALLOCATION JSON:
  {
    "id": "standard",
    "name": "Standard Allocation",
    "default": {"annual": 21, "sick": 12, "casual": 7},
    "overrides": {
      "emp-007": {"annual": 25, "sick": 12, "casual": 7}
    }
  }

DIRECTORY JSON:
  {
    "employees": [
      {"id": "hr-1", "name": "Ana", "department": "HR"},
      {"id": "hr-2", "name": "Ben", "department": "HR", "approverId": "hr-1"}
    ]
  }

KEY FEATURES:
  - Validates JSON structure
  - Missing "default" falls back to generic.DefaultAllocation
  - Rejects negative buckets, duplicate or empty ids, unknown approvers

USAGE:
  policy, err := factory.ParseAllocation(timeoff.StandardPolicyJSON("std", "Standard", 21, 12, 7))
  employees, err := factory.ParseDirectory(data)

SEE ALSO:
  - timeoff/policies.go: Policy type and presets
  - generic/store/memory.go: In-memory Directory
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/request-engine/generic"
	"github.com/warp/request-engine/timeoff"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AllocationJSON is the JSON representation of one allocation.
type AllocationJSON struct {
	Annual int `json:"annual"`
	Sick   int `json:"sick"`
	Casual int `json:"casual"`
}

func (a AllocationJSON) toAllocation() generic.Allocation {
	return generic.Allocation{Annual: a.Annual, Sick: a.Sick, Casual: a.Casual}
}

// PolicyJSON is the JSON representation of an allocation policy.
type PolicyJSON struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	Default   *AllocationJSON           `json:"default,omitempty"`
	Overrides map[string]AllocationJSON `json:"overrides,omitempty"`
}

// =============================================================================
// ALLOCATION POLICY
// =============================================================================

// ParseAllocation parses a JSON string into a validated timeoff.Policy.
func ParseAllocation(jsonStr string) (*timeoff.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse allocation JSON: %w", err)
	}
	return AllocationFromJSON(pj)
}

// AllocationFromJSON converts PolicyJSON to a timeoff.Policy.
func AllocationFromJSON(pj PolicyJSON) (*timeoff.Policy, error) {
	policy := timeoff.StandardPolicy()
	if pj.ID != "" {
		policy.ID = pj.ID
	}
	if pj.Name != "" {
		policy.Name = pj.Name
	}
	if pj.Default != nil {
		policy.Default = pj.Default.toAllocation()
	}
	for id, a := range pj.Overrides {
		policy.Overrides[generic.EmployeeID(id)] = a.toAllocation()
	}

	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// LoadAllocationFile reads and parses an allocation policy file.
func LoadAllocationFile(path string) (*timeoff.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allocation file: %w", err)
	}
	return ParseAllocation(string(data))
}

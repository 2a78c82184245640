package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
)

// noPartition marks an address that names a component as a whole.
const noPartition = -1

// Address identifies a component of a job. Addresses are comparable and
// can be used as map keys.
type Address struct {
	Kind      string
	Name      string
	Partition int
}

// Component creates the address of a component, e.g. `filter.not_null`.
func Component(kind, name string) *Address {
	return &Address{Kind: kind, Name: name, Partition: noPartition}
}

// InPartition returns the address of the component's instance in
// partition p.
func (a *Address) InPartition(p int) *Address {
	if a == nil {
		return nil
	}
	return &Address{Kind: a.Kind, Name: a.Name, Partition: p}
}

// HasPartition reports whether the address names a single instance.
func (a *Address) HasPartition() bool {
	return a != nil && a.Partition != noPartition
}

// Component returns the address of the whole component a partition
// instance belongs to.
func (a *Address) Component() *Address {
	if a == nil {
		return nil
	}
	return Component(a.Kind, a.Name)
}

// String serializes the Address into its canonical representation.
func (a *Address) String() string {
	if a == nil {
		return ""
	}
	if a.HasPartition() {
		return fmt.Sprintf("%s.%s[%d]", a.Kind, a.Name, a.Partition)
	}
	return a.Kind + "." + a.Name
}

// Equal checks two addresses for equality. Two nil addresses are equal.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return *a == *other
}

var (
	nameRegex    = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	addressRegex = regexp.MustCompile(`^([a-z]+)\.([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)
)

// ValidateName checks that name can be used as a component name.
func ValidateName(name string) error {
	if !nameRegex.MatchString(name) || name == "-" {
		return fmt.Errorf("invalid component name %q: use letters, digits, '_' and '-'", name)
	}
	return nil
}

// Parse reads an address in its canonical representation.
func Parse(raw string) (*Address, error) {
	m := addressRegex.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid component address %q: want kind.name or kind.name[partition]", raw)
	}
	if err := ValidateName(m[2]); err != nil {
		return nil, err
	}
	addr := Component(m[1], m[2])
	if m[3] != "" {
		p, err := strconv.Atoi(m[3])
		if err != nil {
			return nil, fmt.Errorf("invalid partition in %q: %w", raw, err)
		}
		addr.Partition = p
	}
	return addr, nil
}

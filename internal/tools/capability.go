// Package tools implements Thymos's capability-gated tool runtime: tools
// declare the capabilities they need, and the runtime enforces a
// deny-by-default policy before calling into tool code.
package tools

// Capability names one privilege a tool may require before it can run.
type Capability string

const (
	CapabilityFilesystemRead  Capability = "filesystem_read"
	CapabilityFilesystemWrite Capability = "filesystem_write"
	CapabilityNetwork         Capability = "network"
	CapabilitySubprocess      Capability = "subprocess"
	CapabilitySecrets         Capability = "secrets"
	CapabilityMemoryRead      Capability = "memory_read"
	CapabilityMemoryWrite     Capability = "memory_write"
	CapabilitySubagentSpawn   Capability = "subagent_spawn"
	CapabilityLLMAccess       Capability = "llm_access"
)

// AllCapabilities lists every capability the runtime knows about.
func AllCapabilities() []Capability {
	return []Capability{
		CapabilityFilesystemRead,
		CapabilityFilesystemWrite,
		CapabilityNetwork,
		CapabilitySubprocess,
		CapabilitySecrets,
		CapabilityMemoryRead,
		CapabilityMemoryWrite,
		CapabilitySubagentSpawn,
		CapabilityLLMAccess,
	}
}

// PrivilegedCapabilities lists the capabilities considered dangerous if
// misused.
func PrivilegedCapabilities() []Capability {
	return []Capability{
		CapabilityFilesystemWrite,
		CapabilityNetwork,
		CapabilitySubprocess,
		CapabilitySecrets,
		CapabilitySubagentSpawn,
	}
}

// IsPrivileged reports whether c is in PrivilegedCapabilities.
func (c Capability) IsPrivileged() bool {
	for _, p := range PrivilegedCapabilities() {
		if p == c {
			return true
		}
	}
	return false
}

// CapabilitySet is an unordered collection of capabilities.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// AllCapabilitiesSet returns a set containing every known capability.
func AllCapabilitiesSet() CapabilitySet {
	return NewCapabilitySet(AllCapabilities()...)
}

// Add inserts cap into the set.
func (s CapabilitySet) Add(cap Capability) {
	s[cap] = struct{}{}
}

// Remove deletes cap from the set.
func (s CapabilitySet) Remove(cap Capability) {
	delete(s, cap)
}

// Contains reports whether cap is present.
func (s CapabilitySet) Contains(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// ContainsAll reports whether every capability in required is present.
func (s CapabilitySet) ContainsAll(required CapabilitySet) bool {
	for c := range required {
		if !s.Contains(c) {
			return false
		}
	}
	return true
}

// Missing returns the capabilities in required that s does not contain.
func (s CapabilitySet) Missing(required CapabilitySet) CapabilitySet {
	missing := make(CapabilitySet)
	for c := range required {
		if !s.Contains(c) {
			missing.Add(c)
		}
	}
	return missing
}

// IsEmpty reports whether the set has no capabilities.
func (s CapabilitySet) IsEmpty() bool {
	return len(s) == 0
}

// Slice returns the set's capabilities in no particular order.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// CapabilityPolicy decides which capabilities a tool invocation may use.
// Denials always take precedence over allowances; anything neither allowed
// nor denied falls back to DefaultAllow, which defaults to false (deny-by-
// default).
type CapabilityPolicy struct {
	allowed      CapabilitySet
	denied       CapabilitySet
	DefaultAllow bool
}

// DenyAllPolicy denies every capability unless explicitly allowed.
func DenyAllPolicy() *CapabilityPolicy {
	return &CapabilityPolicy{
		allowed:      make(CapabilitySet),
		denied:       make(CapabilitySet),
		DefaultAllow: false,
	}
}

// AllowAllPolicy allows every capability; callers should restrict this to
// trusted execution contexts.
func AllowAllPolicy() *CapabilityPolicy {
	return &CapabilityPolicy{
		allowed:      AllCapabilitiesSet(),
		denied:       make(CapabilitySet),
		DefaultAllow: true,
	}
}

// SafeOnlyPolicy allows every non-privileged capability and denies the
// rest.
func SafeOnlyPolicy() *CapabilityPolicy {
	p := DenyAllPolicy()
	for _, c := range AllCapabilities() {
		if !c.IsPrivileged() {
			p.allowed.Add(c)
		}
	}
	return p
}

// MemoryOnlyPolicy allows only memory read/write.
func MemoryOnlyPolicy() *CapabilityPolicy {
	p := DenyAllPolicy()
	p.allowed.Add(CapabilityMemoryRead)
	p.allowed.Add(CapabilityMemoryWrite)
	return p
}

// Allow permits cap, clearing any prior denial.
func (p *CapabilityPolicy) Allow(cap Capability) *CapabilityPolicy {
	p.allowed.Add(cap)
	p.denied.Remove(cap)
	return p
}

// Deny forbids cap, clearing any prior allowance.
func (p *CapabilityPolicy) Deny(cap Capability) *CapabilityPolicy {
	p.denied.Add(cap)
	p.allowed.Remove(cap)
	return p
}

// IsAllowed reports whether cap may be used under this policy.
func (p *CapabilityPolicy) IsAllowed(cap Capability) bool {
	if p.denied.Contains(cap) {
		return false
	}
	if p.allowed.Contains(cap) {
		return true
	}
	return p.DefaultAllow
}

// CheckAll reports the subset of required that this policy denies; a nil
// return means every required capability is allowed.
func (p *CapabilityPolicy) CheckAll(required CapabilitySet) CapabilitySet {
	denied := make(CapabilitySet)
	for c := range required {
		if !p.IsAllowed(c) {
			denied.Add(c)
		}
	}
	if len(denied) == 0 {
		return nil
	}
	return denied
}

// Allowed returns the policy's explicitly allowed set.
func (p *CapabilityPolicy) Allowed() CapabilitySet { return p.allowed }

// Denied returns the policy's explicitly denied set.
func (p *CapabilityPolicy) Denied() CapabilitySet { return p.denied }

package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenyAllPolicyDeniesEverything(t *testing.T) {
	policy := DenyAllPolicy()
	for _, c := range AllCapabilities() {
		assert.False(t, policy.IsAllowed(c), "capability %s should be denied by default", c)
	}
}

func TestAllowAllPolicyAllowsEverything(t *testing.T) {
	policy := AllowAllPolicy()
	for _, c := range AllCapabilities() {
		assert.True(t, policy.IsAllowed(c))
	}
}

func TestSafeOnlyPolicy(t *testing.T) {
	policy := SafeOnlyPolicy()

	assert.True(t, policy.IsAllowed(CapabilityMemoryRead))
	assert.True(t, policy.IsAllowed(CapabilityMemoryWrite))
	assert.True(t, policy.IsAllowed(CapabilityLLMAccess))
	assert.True(t, policy.IsAllowed(CapabilityFilesystemRead))

	assert.False(t, policy.IsAllowed(CapabilityFilesystemWrite))
	assert.False(t, policy.IsAllowed(CapabilityNetwork))
	assert.False(t, policy.IsAllowed(CapabilitySubprocess))
	assert.False(t, policy.IsAllowed(CapabilitySecrets))
	assert.False(t, policy.IsAllowed(CapabilitySubagentSpawn))
}

func TestExplicitAllowDeny(t *testing.T) {
	policy := DenyAllPolicy().Allow(CapabilityNetwork).Allow(CapabilityMemoryRead)

	assert.True(t, policy.IsAllowed(CapabilityNetwork))
	assert.True(t, policy.IsAllowed(CapabilityMemoryRead))
	assert.False(t, policy.IsAllowed(CapabilityFilesystemWrite))
}

func TestDenyTakesPrecedence(t *testing.T) {
	policy := AllowAllPolicy().Deny(CapabilitySubprocess)

	assert.False(t, policy.IsAllowed(CapabilitySubprocess))
	assert.True(t, policy.IsAllowed(CapabilityNetwork))
}

func TestCheckAll(t *testing.T) {
	policy := DenyAllPolicy().Allow(CapabilityMemoryRead).Allow(CapabilityMemoryWrite)

	required := NewCapabilitySet(CapabilityMemoryRead, CapabilityMemoryWrite)
	assert.Nil(t, policy.CheckAll(required))

	requiredWithNetwork := NewCapabilitySet(CapabilityMemoryRead, CapabilityNetwork)
	denied := policy.CheckAll(requiredWithNetwork)
	assert.NotNil(t, denied)
	assert.True(t, denied.Contains(CapabilityNetwork))
}

func TestCapabilitySetOperations(t *testing.T) {
	set := NewCapabilitySet()
	assert.True(t, set.IsEmpty())

	set.Add(CapabilityNetwork)
	assert.True(t, set.Contains(CapabilityNetwork))
	assert.False(t, set.Contains(CapabilitySubprocess))

	set.Remove(CapabilityNetwork)
	assert.False(t, set.Contains(CapabilityNetwork))
}

func TestMissingCapabilities(t *testing.T) {
	have := NewCapabilitySet(CapabilityMemoryRead)
	need := NewCapabilitySet(CapabilityMemoryRead, CapabilityNetwork, CapabilitySubprocess)

	missing := have.Missing(need)
	assert.True(t, missing.Contains(CapabilityNetwork))
	assert.True(t, missing.Contains(CapabilitySubprocess))
	assert.False(t, missing.Contains(CapabilityMemoryRead))
}

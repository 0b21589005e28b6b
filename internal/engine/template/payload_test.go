package template

import (
	"testing"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/value"
	"github.com/stretchr/testify/assert"
)

func TestPayloadIterator_BatteringRam(t *testing.T) {
	attack := &PayloadAttack{
		Attack: AttackBatteringRam,
		Payloads: map[string]value.Value{
			"username": value.List([]value.Value{value.String("admin"), value.String("root")}),
		},
	}
	it := NewPayloadIterator(attack)
	assert.Len(t, it.Sets(), 2)
	assert.Equal(t, "admin", it.Sets()[0]["username"])
}

func TestPayloadIterator_PitchFork(t *testing.T) {
	attack := &PayloadAttack{
		Attack: AttackPitchFork,
		Payloads: map[string]value.Value{
			"username": value.List([]value.Value{value.String("admin"), value.String("root")}),
			"password": value.List([]value.Value{value.String("pass1"), value.String("pass2")}),
		},
	}
	it := NewPayloadIterator(attack)
	assert.Len(t, it.Sets(), 2)
	assert.Equal(t, "admin", it.Sets()[0]["username"])
	assert.Equal(t, "pass1", it.Sets()[0]["password"])
}

func TestPayloadIterator_ClusterBomb(t *testing.T) {
	attack := &PayloadAttack{
		Attack: AttackClusterBomb,
		Payloads: map[string]value.Value{
			"a": value.List([]value.Value{value.String("1"), value.String("2")}),
			"b": value.List([]value.Value{value.String("x"), value.String("y")}),
		},
	}
	it := NewPayloadIterator(attack)
	assert.Len(t, it.Sets(), 4)
}

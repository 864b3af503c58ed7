package kv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_IncrCreatesAndAccumulates(t *testing.T) {
	m := New()

	assert.Equal(t, int64(1), m.Incr("page_views", 1))
	assert.Equal(t, int64(3), m.Incr("page_views", 2))
	assert.Equal(t, int64(3), m.GetInt("page_views"))
}

func TestMap_SetIfAbsent(t *testing.T) {
	m := New()

	assert.True(t, m.SetIfAbsent("email", String("a@example.com")))
	assert.False(t, m.SetIfAbsent("email", String("b@example.com")))
	assert.Equal(t, "a@example.com", m.GetString("email"))
}

func TestMap_JSONRoundTripPreservesKinds(t *testing.T) {
	m := New()
	m.Set("count", Int(7))
	m.Set("score", Float(1.5))
	m.Set("name", String("lead"))
	m.Set("active", Bool(true))

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Map
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, KindInt, back["count"].Kind())
	assert.Equal(t, int64(7), back.GetInt("count"))
	assert.Equal(t, KindFloat, back["score"].Kind())
	assert.Equal(t, 1.5, back["score"].Float())
	assert.Equal(t, "lead", back.GetString("name"))
	assert.True(t, back["active"].Bool())
}

func TestValue_EqualAcrossNumericKinds(t *testing.T) {
	assert.True(t, Int(2).Equal(Float(2.0)))
	assert.False(t, Int(2).Equal(Float(2.5)))
	assert.False(t, String("2").Equal(Int(2)))
	assert.True(t, Bool(true).Equal(Bool(true)))
}

func TestFromAny_SniffsWholeFloatsAsInts(t *testing.T) {
	m := FromAny(map[string]any{
		"views":  float64(4),
		"ratio":  0.25,
		"email":  "x@example.com",
		"nested": map[string]any{"dropped": true},
	})

	assert.Equal(t, KindInt, m["views"].Kind())
	assert.Equal(t, int64(4), m.GetInt("views"))
	assert.Equal(t, KindFloat, m["ratio"].Kind())
	_, ok := m.Get("nested")
	assert.False(t, ok)
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m := New()
	m.Set("a", Int(1))

	c := m.Clone()
	c.Incr("a", 1)

	assert.Equal(t, int64(1), m.GetInt("a"))
	assert.Equal(t, int64(2), c.GetInt("a"))
}
